package strategy

import (
	"context"
	"math"

	"ticker-strategy-lab/internal/domain"
)

// DipBuyStrategy accumulates a monthly contribution in a reserve and injects
// it into the leveraged position when the underlying drops by at least the
// threshold in one day.
//
// Swept parameters: threshold (log return), contribution (per month).
// An optional "leverage" parameter overrides the configured leverage.
type DipBuyStrategy struct {
	InitialValue    float64
	Leverage        float64
	ContributionDay int
	MaxInjection    *float64 // nil = unlimited
	Compounding     domain.Compounding
}

// NewDipBuyStrategy creates a DipBuyStrategy; compounding defaults to LOG.
func NewDipBuyStrategy(cfg domain.StrategyConfig) *DipBuyStrategy {
	return &DipBuyStrategy{
		InitialValue:    cfg.InitialValue,
		Leverage:        cfg.EffectiveLeverage(),
		ContributionDay: cfg.EffectiveContributionDay(),
		MaxInjection:    cfg.MaxInjection,
		Compounding:     compoundingOr(cfg.Compounding, domain.DefaultCompounding(domain.StrategyTypeDipBuy)),
	}
}

// Type returns DIP_BUY.
func (s *DipBuyStrategy) Type() domain.StrategyType {
	return domain.StrategyTypeDipBuy
}

// Simulate runs the fold. Per trading day:
//  1. on the first trading day of a month whose day-of-month is >= ContributionDay,
//     add the contribution to the reserve (never on day 0)
//  2. apply the leveraged return
//  3. if the unleveraged log return <= threshold and the reserve is positive,
//     inject min(reserve, remaining cap) and record a buy
//  4. record value and reserve
func (s *DipBuyStrategy) Simulate(ctx context.Context, series *domain.PriceSeries, params domain.StrategyParameters) (*domain.SimulationTrace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return nil, ErrEmptySeries
	}

	threshold, err := requireParam(params, domain.ParamThreshold)
	if err != nil {
		return nil, err
	}
	contribution, err := requireParam(params, domain.ParamContribution)
	if err != nil {
		return nil, err
	}
	leverage := s.Leverage
	if v, ok := params.Get(domain.ParamLeverage); ok {
		leverage = v
	}

	trace := newTrace(series)
	trace.Reserve = make([]float64, series.Len())

	value := s.InitialValue
	reserve := 0.0
	injected := 0.0
	lastMonth := -1 // year*12+month of the last contribution

	for i := 0; i < series.Len(); i++ {
		p := series.At(i)

		// 1. contribution; day 0 has no return and claims its month's slot unpaid
		if month := p.Date.Year()*12 + int(p.Date.Month()); month != lastMonth && p.Date.Day() >= s.ContributionDay {
			if i > 0 {
				reserve += contribution
			}
			lastMonth = month
		}

		if i > 0 {
			prev := series.At(i - 1).Close

			// 2. leveraged return
			value = compound(value, leverage, prev, p.Close, s.Compounding)

			// 3. trigger
			if math.Log(p.Close/prev) <= threshold && reserve > 0 {
				amount := reserve
				if s.MaxInjection != nil {
					amount = math.Min(amount, *s.MaxInjection-injected)
				}
				if amount > 0 {
					value += amount
					reserve -= amount
					injected += amount
					trace.Buys = append(trace.Buys, domain.BuyEvent{
						Date:       p.Date,
						Amount:     amount,
						ValueAfter: value,
					})
				}
			}
		}

		// 4. record
		trace.Values[i] = value
		trace.Reserve[i] = reserve
	}

	trace.Injected = injected
	return trace, nil
}

// Ensure DipBuyStrategy implements Strategy
var _ Strategy = (*DipBuyStrategy)(nil)
