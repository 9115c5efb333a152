package strategy

import (
	"context"

	"ticker-strategy-lab/internal/domain"
)

// LeveragedHoldStrategy buys once and holds a daily-rebalanced leveraged position.
type LeveragedHoldStrategy struct {
	InitialValue float64
	Leverage     float64 // used when the grid does not sweep leverage
	Compounding  domain.Compounding
}

// NewLeveragedHoldStrategy creates a LeveragedHoldStrategy; compounding defaults to LOG.
func NewLeveragedHoldStrategy(cfg domain.StrategyConfig) *LeveragedHoldStrategy {
	return &LeveragedHoldStrategy{
		InitialValue: cfg.InitialValue,
		Leverage:     cfg.EffectiveLeverage(),
		Compounding:  compoundingOr(cfg.Compounding, domain.DefaultCompounding(domain.StrategyTypeLeveragedHold)),
	}
}

// Type returns LEVERAGED_HOLD.
func (s *LeveragedHoldStrategy) Type() domain.StrategyType {
	return domain.StrategyTypeLeveragedHold
}

// Simulate compounds the leveraged return from day 1 onward.
func (s *LeveragedHoldStrategy) Simulate(ctx context.Context, series *domain.PriceSeries, params domain.StrategyParameters) (*domain.SimulationTrace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return nil, ErrEmptySeries
	}

	leverage := s.Leverage
	if v, ok := params.Get(domain.ParamLeverage); ok {
		leverage = v
	}

	trace := newTrace(series)
	value := s.InitialValue
	for i := 0; i < series.Len(); i++ {
		if i > 0 {
			value = compound(value, leverage, series.At(i-1).Close, series.At(i).Close, s.Compounding)
		}
		trace.Values[i] = value
	}
	return trace, nil
}

// Ensure LeveragedHoldStrategy implements Strategy
var _ Strategy = (*LeveragedHoldStrategy)(nil)
