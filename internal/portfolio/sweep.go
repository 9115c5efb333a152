package portfolio

import (
	"fmt"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/metrics"
)

// ParamRiskFactor names the swept knob in sweep results.
const ParamRiskFactor = "risk_factor"

// RiskSweep is the evaluation of every integer risk factor.
type RiskSweep struct {
	Leverage float64
	Initial  float64
	Weights  []*Weights             // index r-1
	Values   [][]float64            // leveraged value path per risk factor
	Ranked   []*domain.ScoredResult // best first
}

// Best returns the winning weights.
func (s *RiskSweep) Best() *Weights {
	return s.Weights[s.Ranked[0].Index]
}

// SweepRiskFactors optimizes r = 1..10, values each allocation with
// leverage and ranks them by final value. Ties keep the lower factor.
func SweepRiskFactors(r *Returns, leverage, initial float64) (*RiskSweep, error) {
	sweep := &RiskSweep{Leverage: leverage, Initial: initial}
	for rf := MinRiskFactor; rf <= MaxRiskFactor; rf++ {
		w, err := OptimizeReturns(r, float64(rf))
		if err != nil {
			return nil, fmt.Errorf("risk factor %d: %w", rf, err)
		}
		values, err := LeveragedValue(r, w.Values, leverage, initial)
		if err != nil {
			return nil, err
		}

		trace := &domain.SimulationTrace{Dates: r.Dates, Values: values}
		sweep.Weights = append(sweep.Weights, w)
		sweep.Values = append(sweep.Values, values)
		sweep.Ranked = append(sweep.Ranked, &domain.ScoredResult{
			Index:       rf - MinRiskFactor,
			Params:      domain.NewStrategyParameters(domain.Param{Name: ParamRiskFactor, Value: float64(rf)}),
			Score:       metrics.FinalValueScorer(trace),
			FinalValue:  trace.Final(),
			MaxDrawdown: metrics.MaxDrawdown(values),
		})
	}
	domain.RankResults(sweep.Ranked)
	return sweep, nil
}
