package forecast

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"ticker-strategy-lab/internal/domain"
)

func epochDays(d time.Time) float64 { return float64(d.Unix()) / 86400 }

func build(t *testing.T, start time.Time, n int, f func(i int, d time.Time) float64) *domain.PriceSeries {
	t.Helper()
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = f(i, start.AddDate(0, 0, i))
	}
	s, err := domain.DailySeries("SPY", start, closes)
	if err != nil {
		t.Fatalf("DailySeries failed: %v", err)
	}
	return s
}

func trendAndYear(i int, d time.Time) float64 {
	return 100 + 0.05*float64(i) + 5*math.Sin(2*math.Pi*epochDays(d)/yearDays)
}

func TestAnalyze_RecoversTrendAndYearlyCycle(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	series := build(t, start, 3*365, trendAndYear)

	rep, err := Analyze(series, Config{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if rep.Ticker != "SPY" {
		t.Errorf("Ticker = %q", rep.Ticker)
	}
	if want := 0.05 * yearDays; math.Abs(rep.Slope-want) > 0.1 {
		t.Errorf("Slope = %v, want %v", rep.Slope, want)
	}
	if rep.Sigma > 0.05 {
		t.Errorf("Sigma = %v, want near zero", rep.Sigma)
	}
	if len(rep.Fitted) != series.Len() {
		t.Fatalf("len(Fitted) = %d, want %d", len(rep.Fitted), series.Len())
	}
	for i, p := range rep.Fitted {
		if want := trendAndYear(i, p.Date); math.Abs(p.Yhat-want) > 0.05 {
			t.Fatalf("Fitted[%d] = %v, want %v", i, p.Yhat, want)
		}
	}

	if len(rep.Forecast) != DefaultMonths {
		t.Fatalf("len(Forecast) = %d, want %d", len(rep.Forecast), DefaultMonths)
	}
	for _, p := range rep.Forecast {
		i := int(p.Date.Sub(start).Hours() / 24)
		if want := trendAndYear(i, p.Date); math.Abs(p.Yhat-want) > 0.1 {
			t.Errorf("forecast %s = %v, want %v", p.Date.Format(domain.DateLayout), p.Yhat, want)
		}
	}

	if len(rep.Yearly) != 365 {
		t.Fatalf("len(Yearly) = %d, want 365", len(rep.Yearly))
	}
	// the yearly curve carries the sinusoid, the weekly one is flat
	for _, doy := range []int{0, 90, 200, 300} {
		d := refYear.AddDate(0, 0, doy)
		if want := 5 * math.Sin(2*math.Pi*epochDays(d)/yearDays); math.Abs(rep.Yearly[doy]-want) > 0.1 {
			t.Errorf("Yearly[%d] = %v, want %v", doy, rep.Yearly[doy], want)
		}
	}
	for _, w := range rep.Weekly {
		if math.Abs(w.Effect) > 0.05 {
			t.Errorf("weekly effect %s = %v, want near zero", w.Weekday, w.Effect)
		}
	}
}

func TestAnalyze_WeeklyCycleOnShortHistory(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	weekly := func(_ int, d time.Time) float64 {
		return 50 + 2*math.Sin(2*math.Pi*epochDays(d)/weekDays)
	}
	series := build(t, start, 60, weekly)

	rep, err := Analyze(series, Config{Months: 2})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if rep.Yearly != nil {
		t.Errorf("Yearly = %d values, want none below a year of history", len(rep.Yearly))
	}
	if len(rep.Weekly) != 7 {
		t.Fatalf("len(Weekly) = %d, want 7", len(rep.Weekly))
	}
	if rep.Weekly[0].Weekday != time.Monday || rep.Weekly[6].Weekday != time.Sunday {
		t.Errorf("weekdays run %s..%s, want Monday..Sunday", rep.Weekly[0].Weekday, rep.Weekly[6].Weekday)
	}
	for i, w := range rep.Weekly {
		d := refMonday.AddDate(0, 0, i)
		if want := 2 * math.Sin(2*math.Pi*epochDays(d)/weekDays); math.Abs(w.Effect-want) > 0.05 {
			t.Errorf("%s effect = %v, want %v", w.Weekday, w.Effect, want)
		}
	}
	if len(rep.Forecast) != 2 {
		t.Fatalf("len(Forecast) = %d, want 2", len(rep.Forecast))
	}
	if got := rep.Forecast[0].Date.Format(domain.DateLayout); got != "2024-04-30" {
		t.Errorf("first forecast date = %s, want 2024-04-30", got)
	}
}

func TestAnalyze_BandCoversNoise(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	series := build(t, start, 730, func(i int, _ time.Time) float64 {
		return 200 + 0.1*float64(i) + rng.NormFloat64()
	})

	rep, err := Analyze(series, Config{Interval: 0.8})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if rep.Sigma < 0.8 || rep.Sigma > 1.2 {
		t.Errorf("Sigma = %v, want about 1", rep.Sigma)
	}

	closes := series.Closes()
	inside := 0
	for i, p := range rep.Fitted {
		if p.Lower > p.Yhat || p.Upper < p.Yhat {
			t.Fatalf("band of %s does not bracket yhat", p.Date)
		}
		if closes[i] >= p.Lower && closes[i] <= p.Upper {
			inside++
		}
	}
	if cover := float64(inside) / float64(len(closes)); cover < 0.7 || cover > 0.9 {
		t.Errorf("in-sample coverage = %v, want about 0.8", cover)
	}

	p := rep.Forecast[0]
	if half := p.Upper - p.Yhat; math.Abs(half-1.2816*rep.Sigma) > 0.01 {
		t.Errorf("band half width = %v, want %v", half, 1.2816*rep.Sigma)
	}
}

func TestFit_Errors(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	flat := func(int, time.Time) float64 { return 10 }

	if _, err := Fit(build(t, start, MinPoints-1, flat), Config{}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("short series: expected ErrInsufficientData, got %v", err)
	}
	// 60 weekly closes carry the default 28 coefficients but not 68
	weeklyCloses := make([]domain.PricePoint, 60)
	for i := range weeklyCloses {
		weeklyCloses[i] = domain.PricePoint{Date: start.AddDate(0, 0, 7*i), Close: 10 + float64(i)}
	}
	sparse := domain.MustPriceSeries("SPY", weeklyCloses)
	if _, err := Fit(sparse, Config{}); err != nil {
		t.Errorf("weekly closes with default orders: %v", err)
	}
	if _, err := Fit(sparse, Config{YearlyOrder: 30}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("too many coefficients: expected ErrInsufficientData, got %v", err)
	}

	for name, cfg := range map[string]Config{
		"interval": {Interval: 1.5},
		"months":   {Months: -1},
		"order":    {WeeklyOrder: -2},
	} {
		if _, err := Fit(build(t, start, 30, flat), cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestMonthEnds(t *testing.T) {
	tests := []struct {
		after string
		n     int
		want  []string
	}{
		{"2024-03-15", 2, []string{"2024-03-31", "2024-04-30"}},
		{"2024-01-31", 2, []string{"2024-02-29", "2024-03-31"}},
		{"2024-11-30", 3, []string{"2024-12-31", "2025-01-31", "2025-02-28"}},
		{"2024-05-01", 0, nil},
	}
	for _, tt := range tests {
		after, _ := time.Parse(domain.DateLayout, tt.after)
		got := MonthEnds(after, tt.n)
		if len(got) != len(tt.want) {
			t.Fatalf("MonthEnds(%s, %d) = %v, want %v", tt.after, tt.n, got, tt.want)
		}
		for i, d := range got {
			if d.Format(domain.DateLayout) != tt.want[i] {
				t.Errorf("MonthEnds(%s)[%d] = %s, want %s", tt.after, i, d.Format(domain.DateLayout), tt.want[i])
			}
		}
	}
}
