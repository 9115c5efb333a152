package strategy

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ticker-strategy-lab/internal/domain"
)

const tol = 1e-9

var jan8 = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

func mustDaily(t *testing.T, start time.Time, closes ...float64) *domain.PriceSeries {
	t.Helper()
	s, err := domain.DailySeries("TEST", start, closes)
	if err != nil {
		t.Fatalf("DailySeries failed: %v", err)
	}
	return s
}

func dipParams(threshold, contribution float64) domain.StrategyParameters {
	return domain.NewStrategyParameters(
		domain.Param{Name: domain.ParamThreshold, Value: threshold},
		domain.Param{Name: domain.ParamContribution, Value: contribution},
	)
}

func TestSimulate_TraceLengthMatchesSeries(t *testing.T) {
	series := mustDaily(t, jan8, 100, 97, 99, 95, 101, 102, 90)
	ctx := context.Background()

	strategies := []struct {
		s      Strategy
		params domain.StrategyParameters
	}{
		{NewDipBuyStrategy(domain.StrategyConfig{InitialValue: 1000, Leverage: 3}), dipParams(-0.02, 100)},
		{NewLeveragedHoldStrategy(domain.StrategyConfig{InitialValue: 1000}), domain.NewStrategyParameters(domain.Param{Name: domain.ParamLeverage, Value: 2})},
		{NewHedgeStrategy(domain.StrategyConfig{PositionValue: 1000, TotalCapital: 100000}), domain.NewStrategyParameters(
			domain.Param{Name: domain.ParamLeverage, Value: 2},
			domain.Param{Name: domain.ParamInverseLeverage, Value: 3},
			domain.Param{Name: domain.ParamHedgeMultiplier, Value: 1},
		)},
	}

	for _, tc := range strategies {
		trace, err := tc.s.Simulate(ctx, series, tc.params)
		if err != nil {
			t.Fatalf("%s: Simulate failed: %v", tc.s.Type(), err)
		}
		if trace.Len() != series.Len() || len(trace.Dates) != series.Len() {
			t.Errorf("%s: expected %d values, got %d", tc.s.Type(), series.Len(), trace.Len())
		}
	}
}

func TestSimulate_BuyAndHoldIdentity(t *testing.T) {
	closes := []float64{100, 103, 98, 105, 104, 110}
	series := mustDaily(t, jan8, closes...)
	ctx := context.Background()

	hold := NewLeveragedHoldStrategy(domain.StrategyConfig{InitialValue: 1000, Leverage: 1})
	// threshold below any possible log return: never triggers
	dip := NewDipBuyStrategy(domain.StrategyConfig{InitialValue: 1000, Leverage: 1})

	for _, c := range []domain.Compounding{domain.CompoundingLog, domain.CompoundingSimple} {
		hold.Compounding = c
		dip.Compounding = c

		holdTrace, err := hold.Simulate(ctx, series, domain.StrategyParameters{})
		if err != nil {
			t.Fatalf("hold Simulate failed: %v", err)
		}
		dipTrace, err := dip.Simulate(ctx, series, dipParams(-10, 100))
		if err != nil {
			t.Fatalf("dip Simulate failed: %v", err)
		}

		expected := 1000.0
		for i := range closes {
			if i > 0 {
				expected *= 1 + (closes[i]/closes[i-1] - 1)
			}
			if math.Abs(holdTrace.Values[i]-expected) > tol {
				t.Errorf("%s hold day %d: expected %v, got %v", c, i, expected, holdTrace.Values[i])
			}
			if math.Abs(dipTrace.Values[i]-expected) > tol {
				t.Errorf("%s dip day %d: expected %v, got %v", c, i, expected, dipTrace.Values[i])
			}
		}
		if len(dipTrace.Buys) != 0 {
			t.Errorf("%s: expected no buys, got %d", c, len(dipTrace.Buys))
		}
	}
}

func TestSimulate_LogLeverageExact(t *testing.T) {
	series := mustDaily(t, jan8, 100, 110, 121)
	hold := NewLeveragedHoldStrategy(domain.StrategyConfig{InitialValue: 1000})

	trace, err := hold.Simulate(context.Background(), series,
		domain.NewStrategyParameters(domain.Param{Name: domain.ParamLeverage, Value: 2}))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	day2 := 1000 * math.Exp(2*math.Log(1.1))
	day3 := day2 * math.Exp(2*math.Log(121.0/110.0))
	if math.Abs(trace.Values[1]-day2) > tol {
		t.Errorf("day 2: expected %v, got %v", day2, trace.Values[1])
	}
	if math.Abs(trace.Values[2]-day3) > tol {
		t.Errorf("day 3: expected %v, got %v", day3, trace.Values[2])
	}
}

func TestSimulate_SimpleCompoundingFloorsAtZero(t *testing.T) {
	series := mustDaily(t, jan8, 100, 50, 100)
	hold := NewLeveragedHoldStrategy(domain.StrategyConfig{InitialValue: 1000, Leverage: 3, Compounding: domain.CompoundingSimple})

	trace, err := hold.Simulate(context.Background(), series, domain.StrategyParameters{})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	// -50% at 3x wipes out the position; it stays at zero afterwards
	if trace.Values[1] != 0 || trace.Values[2] != 0 {
		t.Errorf("expected [1000 0 0], got %v", trace.Values)
	}
}

func TestDipBuy_ContributionAndTrigger(t *testing.T) {
	// Jan 8..12; contribution lands on Jan 10, dip on Jan 11
	series := mustDaily(t, jan8, 100, 100, 100, 90, 90)
	dip := NewDipBuyStrategy(domain.StrategyConfig{InitialValue: 1000, Leverage: 1})

	trace, err := dip.Simulate(context.Background(), series, dipParams(-0.05, 500))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	wantReserve := []float64{0, 0, 500, 0, 0}
	for i, r := range wantReserve {
		if trace.Reserve[i] != r {
			t.Errorf("reserve day %d: expected %v, got %v", i, r, trace.Reserve[i])
		}
	}

	if len(trace.Buys) != 1 {
		t.Fatalf("expected 1 buy, got %d", len(trace.Buys))
	}
	buy := trace.Buys[0]
	if !buy.Date.Equal(jan8.AddDate(0, 0, 3)) || buy.Amount != 500 {
		t.Errorf("unexpected buy %+v", buy)
	}
	if math.Abs(buy.ValueAfter-1400) > tol || math.Abs(trace.Final()-1400) > tol {
		t.Errorf("expected value 1400 after buy, got %v (final %v)", buy.ValueAfter, trace.Final())
	}
	if trace.Injected != 500 {
		t.Errorf("expected 500 injected, got %v", trace.Injected)
	}
}

func TestDipBuy_ContributionWhenDayMissing(t *testing.T) {
	// No trading on Jan 10 or Feb 10: contributions land on the next trading day
	series := domain.MustPriceSeries("TEST", []domain.PricePoint{
		{Date: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), Close: 100},
		{Date: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), Close: 100},
		{Date: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), Close: 100},
		{Date: time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), Close: 100},
		{Date: time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC), Close: 100},
	})
	dip := NewDipBuyStrategy(domain.StrategyConfig{InitialValue: 1000})

	trace, err := dip.Simulate(context.Background(), series, dipParams(-10, 100))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	want := []float64{0, 100, 100, 200, 200}
	for i, r := range want {
		if trace.Reserve[i] != r {
			t.Errorf("reserve day %d: expected %v, got %v", i, r, trace.Reserve[i])
		}
	}
}

func TestDipBuy_NoContributionOnFirstDay(t *testing.T) {
	// Series starts after the contribution day: April gets nothing, May does
	series := domain.MustPriceSeries("TEST", []domain.PricePoint{
		{Date: time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), Close: 100},
		{Date: time.Date(2024, 4, 16, 0, 0, 0, 0, time.UTC), Close: 100},
		{Date: time.Date(2024, 4, 17, 0, 0, 0, 0, time.UTC), Close: 100},
		{Date: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), Close: 100},
	})
	dip := NewDipBuyStrategy(domain.StrategyConfig{InitialValue: 1000, Leverage: 1})

	trace, err := dip.Simulate(context.Background(), series, dipParams(0, 500))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	wantValues := []float64{1000, 1000, 1000, 1500}
	wantReserve := []float64{0, 0, 0, 0}
	for i := range wantValues {
		if math.Abs(trace.Values[i]-wantValues[i]) > tol || trace.Reserve[i] != wantReserve[i] {
			t.Errorf("day %d: expected value %v reserve %v, got %v %v",
				i, wantValues[i], wantReserve[i], trace.Values[i], trace.Reserve[i])
		}
	}
	if len(trace.Buys) != 1 || !trace.Buys[0].Date.Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected a single buy on May 10, got %+v", trace.Buys)
	}
}

func TestDipBuy_ZeroCapNeverBuys(t *testing.T) {
	series := mustDaily(t, jan8, 100, 100, 100, 80, 60, 40)
	zero := 0.0
	dip := NewDipBuyStrategy(domain.StrategyConfig{InitialValue: 1000, MaxInjection: &zero})

	for _, threshold := range []float64{-0.5, -0.1, 0, 0.5} {
		trace, err := dip.Simulate(context.Background(), series, dipParams(threshold, 1000))
		if err != nil {
			t.Fatalf("Simulate failed: %v", err)
		}
		if len(trace.Buys) != 0 || trace.Injected != 0 {
			t.Errorf("threshold %v: expected no buys, got %d", threshold, len(trace.Buys))
		}
	}
}

func TestDipBuy_CapLimitsInjection(t *testing.T) {
	series := mustDaily(t, jan8, 100, 100, 100, 90, 80)
	capAmount := 300.0
	dip := NewDipBuyStrategy(domain.StrategyConfig{InitialValue: 1000, MaxInjection: &capAmount})

	trace, err := dip.Simulate(context.Background(), series, dipParams(-0.05, 500))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(trace.Buys) != 1 || trace.Buys[0].Amount != 300 {
		t.Fatalf("expected one buy of 300, got %+v", trace.Buys)
	}
	if trace.Reserve[4] != 200 {
		t.Errorf("expected 200 left in reserve, got %v", trace.Reserve[4])
	}
}

func TestDipBuy_MissingParameter(t *testing.T) {
	series := mustDaily(t, jan8, 100, 101)
	dip := NewDipBuyStrategy(domain.StrategyConfig{InitialValue: 1000})

	_, err := dip.Simulate(context.Background(), series,
		domain.NewStrategyParameters(domain.Param{Name: domain.ParamThreshold, Value: -0.01}))
	if !errors.Is(err, ErrMissingParameter) {
		t.Errorf("expected ErrMissingParameter, got %v", err)
	}
}

func hedgeParams(lev, inv, mult float64) domain.StrategyParameters {
	return domain.NewStrategyParameters(
		domain.Param{Name: domain.ParamLeverage, Value: lev},
		domain.Param{Name: domain.ParamInverseLeverage, Value: inv},
		domain.Param{Name: domain.ParamHedgeMultiplier, Value: mult},
	)
}

func TestHedge_LegsSum(t *testing.T) {
	series := mustDaily(t, jan8, 100, 110)
	hedge := NewHedgeStrategy(domain.StrategyConfig{PositionValue: 1000, TotalCapital: 10000})

	trace, err := hedge.Simulate(context.Background(), series, hedgeParams(2, 1, 1))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	long, short := trace.Legs[domain.LegLong], trace.Legs[domain.LegHedge]
	if long[0] != 1000 || short[0] != 2000 {
		t.Errorf("unexpected initial legs long=%v hedge=%v", long[0], short[0])
	}
	if math.Abs(long[1]-1200) > tol || math.Abs(short[1]-1800) > tol {
		t.Errorf("unexpected legs long=%v hedge=%v", long[1], short[1])
	}
	if math.Abs(trace.Final()-3000) > tol {
		t.Errorf("expected total 3000, got %v", trace.Final())
	}
}

func TestHedge_InfeasibleOverCapital(t *testing.T) {
	series := mustDaily(t, jan8, 100, 110)
	hedge := NewHedgeStrategy(domain.StrategyConfig{PositionValue: 1000, TotalCapital: 2500})

	_, err := hedge.Simulate(context.Background(), series, hedgeParams(2, 1, 1))
	if !errors.Is(err, ErrInfeasible) {
		t.Errorf("expected ErrInfeasible, got %v", err)
	}
}

func TestHedge_InverseLegFloorsAtZero(t *testing.T) {
	series := mustDaily(t, jan8, 100, 110, 100)
	hedge := NewHedgeStrategy(domain.StrategyConfig{PositionValue: 1000, TotalCapital: 10000})

	trace, err := hedge.Simulate(context.Background(), series, hedgeParams(1, 20, 1))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	short := trace.Legs[domain.LegHedge]
	if short[0] != 50 || short[1] != 0 || short[2] != 0 {
		t.Errorf("expected hedge leg [50 0 0], got %v", short)
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	series := mustDaily(t, jan8, 100, 97, 99, 95, 101, 102, 90, 93, 94, 91)
	dip := NewDipBuyStrategy(domain.StrategyConfig{InitialValue: 1000, Leverage: 8})

	first, err := dip.Simulate(context.Background(), series, dipParams(-0.02, 300))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	for run := 0; run < 5; run++ {
		again, _ := dip.Simulate(context.Background(), series, dipParams(-0.02, 300))
		for i := range first.Values {
			if first.Values[i] != again.Values[i] {
				t.Fatalf("run %d: value %d differs", run, i)
			}
		}
	}
}

func TestSimulate_EmptySeries(t *testing.T) {
	hold := NewLeveragedHoldStrategy(domain.StrategyConfig{InitialValue: 1000})
	empty := domain.MustPriceSeries("TEST", nil)

	if _, err := hold.Simulate(context.Background(), empty, domain.StrategyParameters{}); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}
}

func TestSimulate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hold := NewLeveragedHoldStrategy(domain.StrategyConfig{InitialValue: 1000})
	if _, err := hold.Simulate(ctx, mustDaily(t, jan8, 1, 2), domain.StrategyParameters{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
