package garch

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"ticker-strategy-lab/internal/domain"
)

// simulate draws n returns from a GARCH(1,1) process with a fixed seed.
func simulate(n int, omega, alpha, beta float64) []float64 {
	rng := rand.New(rand.NewPCG(7, 11))
	out := make([]float64, n)
	s2 := omega / (1 - alpha - beta)
	prev := 0.0
	for t := range out {
		s2 = omega + alpha*prev*prev + beta*s2
		out[t] = math.Sqrt(s2) * rng.NormFloat64()
		prev = out[t]
	}
	return out
}

func TestFitModel_InsufficientData(t *testing.T) {
	_, err := FitModel([]float64{0.01, -0.02, 0.03, math.NaN()}, 1, 1)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestFitModel_InvalidOrder(t *testing.T) {
	_, err := FitModel(simulate(50, 1e-5, 0.1, 0.8), 0, 1)
	if !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestFitModel_Constraints(t *testing.T) {
	returns := simulate(800, 2e-6, 0.1, 0.85)

	fit, err := FitModel(returns, 1, 1)
	if err != nil {
		t.Fatalf("FitModel failed: %v", err)
	}

	if fit.Omega <= 0 {
		t.Errorf("expected positive omega, got %v", fit.Omega)
	}
	for _, a := range fit.Alpha {
		if a < 0 {
			t.Errorf("negative alpha %v", a)
		}
	}
	if p := fit.Persistence(); p >= 1 || p < 0 {
		t.Errorf("persistence out of range: %v", p)
	}
	if len(fit.Volatility) != len(returns) {
		t.Errorf("expected %d volatilities, got %d", len(returns), len(fit.Volatility))
	}
	if want := 2*float64(fit.NumParams()) - 2*fit.LogLikelihood; math.Abs(fit.AIC-want) > 1e-9 {
		t.Errorf("AIC %v does not match 2k-2LL %v", fit.AIC, want)
	}
	for _, v := range fit.Volatility {
		if !(v > 0) {
			t.Fatalf("non-positive conditional volatility %v", v)
		}
	}
}

func TestFitModel_Deterministic(t *testing.T) {
	returns := simulate(300, 2e-6, 0.1, 0.85)

	a, err := FitModel(returns, 1, 1)
	if err != nil {
		t.Fatalf("FitModel failed: %v", err)
	}
	b, err := FitModel(returns, 1, 1)
	if err != nil {
		t.Fatalf("FitModel failed: %v", err)
	}
	if a.AIC != b.AIC || a.Omega != b.Omega {
		t.Errorf("fits differ: %v vs %v", a.AIC, b.AIC)
	}
}

func TestForecast_ConvergesToUnconditional(t *testing.T) {
	fit := &Fit{
		P: 1, Q: 1,
		Omega:  0.1,
		Alpha:  []float64{0.1},
		Beta:   []float64{0.8},
		resid:  []float64{2},
		sigma2: []float64{1.5},
	}

	got := fit.Forecast(200)
	if len(got) != 200 {
		t.Fatalf("expected 200 steps, got %d", len(got))
	}

	// 0.1 + 0.1*4 + 0.8*1.5 = 1.7
	if want := math.Sqrt(1.7) / scale; math.Abs(got[0]-want) > 1e-12 {
		t.Errorf("step 1: expected %v, got %v", want, got[0])
	}
	// long run: sqrt(0.1 / (1 - 0.9)) = 1
	if want := fit.UnconditionalVolatility(); math.Abs(got[199]-want) > 1e-9 || math.Abs(want-0.01) > 1e-12 {
		t.Errorf("expected convergence to %v, got %v", want, got[199])
	}
	if fit.Forecast(0) != nil {
		t.Error("expected nil forecast for zero horizon")
	}
}

func TestSelectByAIC(t *testing.T) {
	returns := simulate(300, 2e-6, 0.1, 0.85)

	sel, err := SelectByAIC(returns, 2, 2)
	if err != nil {
		t.Fatalf("SelectByAIC failed: %v", err)
	}
	if len(sel.Candidates) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(sel.Candidates))
	}

	order := [][2]int{{1, 1}, {1, 2}, {2, 1}, {2, 2}}
	best := math.Inf(1)
	for i, c := range sel.Candidates {
		if c.P != order[i][0] || c.Q != order[i][1] {
			t.Errorf("candidate %d: expected (%d,%d), got (%d,%d)", i, order[i][0], order[i][1], c.P, c.Q)
		}
		if c.Err == nil && c.AIC < best {
			best = c.AIC
		}
	}
	if sel.Best.AIC != best {
		t.Errorf("expected best AIC %v, got %v", best, sel.Best.AIC)
	}

	if _, err := SelectByAIC(returns, 0, 1); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
	if _, err := SelectByAIC(returns[:5], 1, 1); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestAnalyze(t *testing.T) {
	returns := simulate(120, 2e-6, 0.1, 0.85)
	closes := make([]float64, len(returns)+1)
	closes[0] = 100
	for i, r := range returns {
		closes[i+1] = closes[i] * math.Exp(r)
	}
	day0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := domain.DailySeries("^IXIC", day0, closes)
	if err != nil {
		t.Fatalf("DailySeries failed: %v", err)
	}

	report, err := Analyze(series, 1, 1, DefaultHorizon)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(report.Dates) != len(report.Fit.Volatility) || len(report.Prices) != len(report.Dates) {
		t.Errorf("misaligned report: %d dates, %d vols", len(report.Dates), len(report.Fit.Volatility))
	}
	if len(report.Forecast) != DefaultHorizon || len(report.ForecastDates) != DefaultHorizon {
		t.Fatalf("expected %d forecast steps", DefaultHorizon)
	}
	if !report.ForecastDates[0].Equal(series.Last().Date.AddDate(0, 0, 1)) {
		t.Errorf("forecast should start the day after the last close, got %v", report.ForecastDates[0])
	}
	if report.Correlation < -1 || report.Correlation > 1 {
		t.Errorf("correlation out of range: %v", report.Correlation)
	}
}
