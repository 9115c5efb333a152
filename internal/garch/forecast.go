package garch

import (
	"math"
	"time"

	"ticker-strategy-lab/internal/analytics"
	"ticker-strategy-lab/internal/domain"
)

// DefaultHorizon is the forecast length in days.
const DefaultHorizon = 30

// Forecast returns the expected conditional volatility for each of the next
// horizon steps, in original units. Future squared residuals are replaced
// by their expectation, the forecast variance.
func (f *Fit) Forecast(horizon int) []float64 {
	if horizon <= 0 {
		return nil
	}
	n := len(f.sigma2)
	eSq := make([]float64, n+horizon)
	s2 := make([]float64, n+horizon)
	for t := 0; t < n; t++ {
		eSq[t] = f.resid[t] * f.resid[t]
		s2[t] = f.sigma2[t]
	}

	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		t := n + h
		v := f.Omega
		for i, a := range f.Alpha {
			if lag := t - i - 1; lag >= 0 {
				v += a * eSq[lag]
			}
		}
		for j, b := range f.Beta {
			if lag := t - j - 1; lag >= 0 {
				v += b * s2[lag]
			}
		}
		s2[t] = v
		eSq[t] = v
		out[h] = math.Sqrt(v) / scale
	}
	return out
}

// Report is a fitted model over a price series with its forecast.
type Report struct {
	Ticker        string
	Fit           *Fit
	Dates         []time.Time // dates of Fit.Volatility
	Prices        []float64   // closes aligned to Dates
	Forecast      []float64
	ForecastDates []time.Time // calendar days after the last close
	Correlation   float64     // price vs conditional volatility
}

// Analyze fits GARCH(p,q) to the log returns of series and forecasts
// horizon days ahead.
func Analyze(series *domain.PriceSeries, p, q, horizon int) (*Report, error) {
	fit, err := FitModel(series.LogReturns(), p, q)
	if err != nil {
		return nil, err
	}
	return newReport(series, fit, horizon), nil
}

func newReport(series *domain.PriceSeries, fit *Fit, horizon int) *Report {
	// log returns start at the second close
	tail := series.Slice(1, series.Len())
	dates := tail.Dates()
	prices := tail.Closes()

	last := series.Last().Date
	forecastDates := make([]time.Time, horizon)
	for i := range forecastDates {
		forecastDates[i] = last.AddDate(0, 0, i+1)
	}

	return &Report{
		Ticker:        series.Ticker(),
		Fit:           fit,
		Dates:         dates,
		Prices:        prices,
		Forecast:      fit.Forecast(horizon),
		ForecastDates: forecastDates,
		Correlation:   analytics.Correlation(prices, fit.Volatility),
	}
}
