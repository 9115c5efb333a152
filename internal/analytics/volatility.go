package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"ticker-strategy-lab/internal/domain"
)

// Trend labels the sign of the mean log return.
type Trend string

// Trend values.
const (
	TrendPositive Trend = "positive"
	TrendNegative Trend = "negative"
)

// VolatilityLevel buckets the rescaled volatility gauge.
type VolatilityLevel string

// Gauge buckets over the 0..100 scale.
const (
	VolatilityLow    VolatilityLevel = "low"
	VolatilityMedium VolatilityLevel = "medium"
	VolatilityHigh   VolatilityLevel = "high"
)

// volatilityGaugeScale maps a daily log-return deviation onto 0..100.
const volatilityGaugeScale = 2000

// VolatilityReport summarizes daily log returns.
type VolatilityReport struct {
	Ticker          string
	Returns         int     // number of log returns
	DailyStd        float64 // sample std of log returns
	Frequency       float64 // share of days with |r| > DailyStd
	MeanLogReturn   float64
	Trend           Trend
	Gauge           float64 // DailyStd rescaled onto 0..100 (may exceed 100)
	Level           VolatilityLevel
	ConsecutiveDays int
	UpProb          float64 // share of ConsecutiveDays-long all-up windows
	DownProb        float64
}

// Volatility builds a VolatilityReport. consecutiveDays selects the run
// length used for the up/down probabilities.
func Volatility(series *domain.PriceSeries, consecutiveDays int) VolatilityReport {
	report := VolatilityReport{
		Ticker:          series.Ticker(),
		ConsecutiveDays: consecutiveDays,
		DailyStd:        math.NaN(),
		Frequency:       math.NaN(),
		MeanLogReturn:   math.NaN(),
		Gauge:           math.NaN(),
	}
	closes := series.Closes()
	report.UpProb, report.DownProb = ConsecutiveProbability(closes, consecutiveDays)

	returns := dropNaN(series.LogReturns())
	report.Returns = len(returns)
	if len(returns) < 2 {
		report.Trend = TrendNegative
		return report
	}

	mean, std := stat.MeanStdDev(returns, nil)
	report.DailyStd = std
	report.MeanLogReturn = mean

	exceed := 0
	for _, r := range returns {
		if math.Abs(r) > std {
			exceed++
		}
	}
	report.Frequency = float64(exceed) / float64(len(returns))

	report.Trend = TrendNegative
	if mean > 0 {
		report.Trend = TrendPositive
	}

	report.Gauge = std * volatilityGaugeScale
	switch {
	case report.Gauge < 33:
		report.Level = VolatilityLow
	case report.Gauge < 66:
		report.Level = VolatilityMedium
	default:
		report.Level = VolatilityHigh
	}
	return report
}
