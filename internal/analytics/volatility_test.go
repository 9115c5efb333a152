package analytics

import (
	"math"
	"testing"
	"time"

	"ticker-strategy-lab/internal/domain"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestVolatility(t *testing.T) {
	series, err := domain.DailySeries("^IXIC", day0, []float64{100, 110, 99, 108.9})
	if err != nil {
		t.Fatalf("DailySeries failed: %v", err)
	}

	report := Volatility(series, 2)

	if report.Returns != 3 {
		t.Errorf("expected 3 returns, got %d", report.Returns)
	}
	r := []float64{math.Log(1.1), math.Log(0.9), math.Log(1.1)}
	mean := (r[0] + r[1] + r[2]) / 3
	if math.Abs(report.MeanLogReturn-mean) > eps {
		t.Errorf("expected mean %v, got %v", mean, report.MeanLogReturn)
	}
	if report.Trend != TrendPositive {
		t.Errorf("expected positive trend, got %s", report.Trend)
	}
	// every |r| is below the sample std here
	if report.Frequency != 0 {
		t.Errorf("expected frequency 0, got %v", report.Frequency)
	}
	if math.Abs(report.Gauge-report.DailyStd*2000) > eps || report.Level != VolatilityHigh {
		t.Errorf("unexpected gauge %v level %s", report.Gauge, report.Level)
	}
}

func TestVolatility_FrequencyAndLowLevel(t *testing.T) {
	closes := []float64{100, 100.1, 100.2, 100.3, 101.3}
	series, _ := domain.DailySeries("X", day0, closes)

	report := Volatility(series, 3)

	// one large move among four returns
	if math.Abs(report.Frequency-0.25) > eps {
		t.Errorf("expected frequency 0.25, got %v", report.Frequency)
	}
	if report.Level != VolatilityLow {
		t.Errorf("expected low level, got %s (gauge %v)", report.Level, report.Gauge)
	}
	if math.Abs(report.UpProb-0.5) > eps {
		t.Errorf("expected up probability 0.5, got %v", report.UpProb)
	}
}

func TestVolatility_ShortSeries(t *testing.T) {
	series, _ := domain.DailySeries("X", day0, []float64{100, 101})

	report := Volatility(series, 2)
	if !math.IsNaN(report.DailyStd) || report.Trend != TrendNegative {
		t.Errorf("expected undefined report, got %+v", report)
	}
}
