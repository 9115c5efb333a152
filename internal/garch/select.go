package garch

import (
	"errors"
	"fmt"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/grid"
)

// orderSweep tags the (p, q) candidate grid.
const orderSweep domain.StrategyType = "GARCH_ORDER"

// Candidate is one attempted order of a selection.
type Candidate struct {
	P, Q int
	AIC  float64
	Err  error
}

// Selection is the outcome of an order search.
type Selection struct {
	Best       *Fit
	Candidates []Candidate // enumeration order
}

// SelectByAIC fits every order p in [1, maxP], q in [1, maxQ] and keeps the
// lowest AIC. Ties keep the earlier candidate; failed fits are skipped.
func SelectByAIC(returns []float64, maxP, maxQ int) (*Selection, error) {
	if maxP < 1 || maxQ < 1 {
		return nil, fmt.Errorf("%w: maxP=%d maxQ=%d", ErrInvalidOrder, maxP, maxQ)
	}
	g, err := grid.New(orderSweep,
		grid.Dimension{Name: "p", Range: grid.Range{Min: 1, Max: float64(maxP), Step: 1}},
		grid.Dimension{Name: "q", Range: grid.Range{Min: 1, Max: float64(maxQ), Step: 1}},
	)
	if err != nil {
		return nil, err
	}

	sel := &Selection{Candidates: make([]Candidate, 0, g.Size())}
	var lastErr error
	for _, params := range g.All() {
		p, q := int(params.MustGet("p")), int(params.MustGet("q"))

		fit, err := FitModel(returns, p, q)
		if err != nil {
			if errors.Is(err, ErrInsufficientData) {
				return nil, err
			}
			lastErr = err
			sel.Candidates = append(sel.Candidates, Candidate{P: p, Q: q, Err: err})
			continue
		}
		sel.Candidates = append(sel.Candidates, Candidate{P: p, Q: q, AIC: fit.AIC})
		if sel.Best == nil || fit.AIC < sel.Best.AIC {
			sel.Best = fit
		}
	}

	if sel.Best == nil {
		return nil, fmt.Errorf("no GARCH order converged: %w", lastErr)
	}
	return sel, nil
}

// AnalyzeBest selects the order by AIC and reports it over series.
func AnalyzeBest(series *domain.PriceSeries, maxP, maxQ, horizon int) (*Report, *Selection, error) {
	sel, err := SelectByAIC(series.LogReturns(), maxP, maxQ)
	if err != nil {
		return nil, nil, err
	}
	return newReport(series, sel.Best, horizon), sel, nil
}
