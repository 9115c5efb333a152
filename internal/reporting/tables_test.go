package reporting

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"ticker-strategy-lab/internal/analytics"
	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/forecast"
	"ticker-strategy-lab/internal/garch"
	"ticker-strategy-lab/internal/montecarlo"
	"ticker-strategy-lab/internal/portfolio"
)

func walk(t *testing.T, ticker string, seed uint64, n int) *domain.PriceSeries {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+3))
	closes := make([]float64, n)
	price := 50.0
	for i := range closes {
		price *= math.Exp(0.01 * rng.NormFloat64())
		closes[i] = price
	}
	s, err := domain.DailySeries(ticker, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), closes)
	if err != nil {
		t.Fatalf("DailySeries failed: %v", err)
	}
	return s
}

func TestRenderGarchMarkdown(t *testing.T) {
	rep, err := garch.Analyze(walk(t, "SPY", 1, 120), 1, 1, 3)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	sel := &garch.Selection{
		Best: rep.Fit,
		Candidates: []garch.Candidate{
			{P: 1, Q: 1, AIC: rep.Fit.AIC},
			{P: 2, Q: 1, Err: errors.New("boom")},
		},
	}

	md := RenderGarchMarkdown(rep, sel)
	for _, want := range []string{
		"# GARCH(1,1): SPY",
		"| alpha[1] |",
		"| beta[1] |",
		"## Forecast",
		"| 2024-04-30 |", // first day after the 120th close
		"## Order Selection",
		"| 2 | 1 | failed: boom |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderForecastMarkdown(t *testing.T) {
	rep, err := forecast.Analyze(walk(t, "SPY", 2, 400), forecast.Config{Months: 3})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	md := RenderForecastMarkdown(rep)
	for _, want := range []string{
		"# Forecast: SPY",
		"Interval: 80.00%",
		"| Date | Forecast | Lower | Upper |",
		"| 2025-02-28 |", // first month end after the 400th close
		"| 2025-04-30 |",
		"## Weekly Seasonality",
		"| Monday |",
		"## Yearly Seasonality",
		"| December |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "| 2025-05-31 |") {
		t.Error("forecast runs past the requested months")
	}
}

func TestMonthlyMeans(t *testing.T) {
	yearly := make([]float64, 365)
	for i := range yearly {
		if i >= 31 && i < 59 {
			yearly[i] = 2 // February
		}
	}
	means := monthlyMeans(yearly)
	if means[1] != 2 || means[0] != 0 || means[2] != 0 {
		t.Errorf("monthlyMeans = %v", means)
	}
}

func TestRenderMonteCarloMarkdown(t *testing.T) {
	res, err := montecarlo.Simulate(montecarlo.Config{LastPrice: 100, Mu: 0, Sigma: 0.02, Days: 5, Paths: 40, Seed: 1})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	md := RenderMonteCarloMarkdown("SPY", res, 4)
	if !strings.Contains(md, "40 paths over 5 days") {
		t.Error("missing path count line")
	}
	if !strings.Contains(md, "Last close: 100.00") {
		t.Error("missing last close")
	}
	section := md[strings.Index(md, "## Final Price Histogram"):]
	// header, separator and 4 bins
	if rows := strings.Count(section, "\n|"); rows != 6 {
		t.Errorf("histogram rows = %d, want 6", rows)
	}
}

func TestRenderPortfolioMarkdown(t *testing.T) {
	returns, err := portfolio.ReturnsMatrix(walk(t, "SPY", 1, 60), walk(t, "TLT", 2, 60))
	if err != nil {
		t.Fatalf("ReturnsMatrix failed: %v", err)
	}
	sweep, err := portfolio.SweepRiskFactors(returns, 2, 1000)
	if err != nil {
		t.Fatalf("SweepRiskFactors failed: %v", err)
	}

	md := RenderPortfolioMarkdown(sweep)
	if !strings.Contains(md, "# Portfolio: SPY, TLT") {
		t.Error("missing title")
	}
	if !strings.Contains(md, "| Rank | Risk Factor | SPY | TLT | Final Value | Max Drawdown |") {
		t.Error("missing header")
	}
	if !strings.Contains(md, "Leverage: 2.00 | Initial: 1000.00") {
		t.Error("missing sweep settings")
	}
	if !strings.Contains(md, "\n| 1 | ") || !strings.Contains(md, "\n| 10 | ") {
		t.Error("expected ten ranked rows")
	}
}

func TestRenderPerformanceMarkdown(t *testing.T) {
	rows := []analytics.PerformanceRow{
		{Name: "Technology", Ticker: "XLK", Period: "1M", Change: 3.456, OK: true},
		{Name: "Energy", Ticker: "XLE", Period: "1M"},
	}
	md := RenderPerformanceMarkdown("Sectors", rows)

	if !strings.Contains(md, "| Technology | XLK | 1M | 3.46% |") {
		t.Errorf("unexpected row formatting:\n%s", md)
	}
	if !strings.Contains(md, "| Energy | XLE | 1M | n/a |") {
		t.Error("missing n/a row")
	}

	if md := RenderPerformanceMarkdown("Empty", nil); !strings.Contains(md, "No price data available.") {
		t.Error("expected empty notice")
	}
}
