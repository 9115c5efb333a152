package strategy

import (
	"context"
	"fmt"
	"math"

	"ticker-strategy-lab/internal/domain"
)

// HedgeStrategy holds a leveraged long position and an inverse-leveraged
// hedge sized relative to the long exposure.
//
//	hedge = position * leverage / |inverse_leverage| * hedge_multiplier
//
// A combination is infeasible when position + hedge exceeds total capital.
// Both legs compound daily with SIMPLE returns by default; the inverse leg
// applies -|inverse_leverage| to the underlying's return.
type HedgeStrategy struct {
	PositionValue float64
	TotalCapital  float64
	Compounding   domain.Compounding
}

// NewHedgeStrategy creates a HedgeStrategy; compounding defaults to SIMPLE.
func NewHedgeStrategy(cfg domain.StrategyConfig) *HedgeStrategy {
	return &HedgeStrategy{
		PositionValue: cfg.PositionValue,
		TotalCapital:  cfg.TotalCapital,
		Compounding:   compoundingOr(cfg.Compounding, domain.DefaultCompounding(domain.StrategyTypeHedge)),
	}
}

// Type returns HEDGE.
func (s *HedgeStrategy) Type() domain.StrategyType {
	return domain.StrategyTypeHedge
}

// HedgeAmount returns the hedge notional for the given knobs.
func (s *HedgeStrategy) HedgeAmount(leverage, inverse, multiplier float64) float64 {
	return s.PositionValue * leverage / math.Abs(inverse) * multiplier
}

// Simulate runs both legs over the series and records their sum.
func (s *HedgeStrategy) Simulate(ctx context.Context, series *domain.PriceSeries, params domain.StrategyParameters) (*domain.SimulationTrace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return nil, ErrEmptySeries
	}

	leverage, err := requireParam(params, domain.ParamLeverage)
	if err != nil {
		return nil, err
	}
	inverse, err := requireParam(params, domain.ParamInverseLeverage)
	if err != nil {
		return nil, err
	}
	multiplier, err := requireParam(params, domain.ParamHedgeMultiplier)
	if err != nil {
		return nil, err
	}
	if inverse == 0 {
		return nil, fmt.Errorf("%w: inverse leverage is zero", ErrInfeasible)
	}

	hedge := s.HedgeAmount(leverage, inverse, multiplier)
	if s.PositionValue+hedge > s.TotalCapital {
		return nil, fmt.Errorf("%w: position %.2f + hedge %.2f > capital %.2f",
			ErrInfeasible, s.PositionValue, hedge, s.TotalCapital)
	}

	trace := newTrace(series)
	long := make([]float64, series.Len())
	short := make([]float64, series.Len())

	longValue, hedgeValue := s.PositionValue, hedge
	for i := 0; i < series.Len(); i++ {
		if i > 0 {
			prev, cur := series.At(i-1).Close, series.At(i).Close
			longValue = compound(longValue, leverage, prev, cur, s.Compounding)
			hedgeValue = compound(hedgeValue, -math.Abs(inverse), prev, cur, s.Compounding)
		}
		long[i] = longValue
		short[i] = hedgeValue
		trace.Values[i] = longValue + hedgeValue
	}

	trace.Legs = map[string][]float64{
		domain.LegLong:  long,
		domain.LegHedge: short,
	}
	return trace, nil
}

// Ensure HedgeStrategy implements Strategy
var _ Strategy = (*HedgeStrategy)(nil)
