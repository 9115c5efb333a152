package strategy

import (
	"fmt"
	"math"

	"ticker-strategy-lab/internal/domain"
)

// compound applies one day's leveraged return to value.
//   - LOG:    value * exp(leverage * ln(cur/prev))
//   - SIMPLE: value * (1 + leverage * (cur/prev - 1)), floored at 0
func compound(value, leverage, prev, cur float64, c domain.Compounding) float64 {
	if c == domain.CompoundingSimple {
		next := value * (1 + leverage*(cur/prev-1))
		if next < 0 {
			return 0
		}
		return next
	}
	return value * math.Exp(leverage*math.Log(cur/prev))
}

// requireParam returns a named parameter or ErrMissingParameter.
func requireParam(params domain.StrategyParameters, name string) (float64, error) {
	v, ok := params.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	return v, nil
}

// newTrace allocates a trace sized to the series.
func newTrace(series *domain.PriceSeries) *domain.SimulationTrace {
	return &domain.SimulationTrace{
		Dates:  series.Dates(),
		Values: make([]float64, series.Len()),
	}
}

// compoundingOr returns c, or def when c is unset.
func compoundingOr(c, def domain.Compounding) domain.Compounding {
	if c == "" {
		return def
	}
	return c
}
