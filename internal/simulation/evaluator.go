package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/grid"
	"ticker-strategy-lab/internal/metrics"
	"ticker-strategy-lab/internal/strategy"
)

// Evaluation is the scored output of one grid over one series.
type Evaluation struct {
	Results    []*domain.ScoredResult // feasible results, best first; traces not retained
	GridSize   int
	Infeasible int
}

// Best returns the top result, or nil when no result has a numeric score.
func (e *Evaluation) Best() *domain.ScoredResult {
	if len(e.Results) == 0 || math.IsNaN(e.Results[0].Score) {
		return nil
	}
	return e.Results[0]
}

// ProgressFunc receives (done, total, infeasible) counts while a grid is evaluated.
// Calls are serialized.
type ProgressFunc func(done, total, infeasible int)

// Evaluator scores every combination of a grid in parallel.
type Evaluator struct {
	parallelism int
}

// NewEvaluator creates an evaluator; parallelism <= 0 uses runtime.NumCPU().
func NewEvaluator(parallelism int) *Evaluator {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	return &Evaluator{parallelism: parallelism}
}

// Evaluate simulates each combination of g with strat and scores it.
// Infeasible combinations are counted and excluded. Any other simulation
// error aborts the evaluation. Results are ranked by score DESC, index ASC,
// so the outcome does not depend on parallelism.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	series *domain.PriceSeries,
	g *grid.Grid,
	strat strategy.Strategy,
	scorer metrics.Scorer,
	progress ProgressFunc,
) (*Evaluation, error) {
	size := g.Size()
	slots := make([]*domain.ScoredResult, size)

	var (
		mu         sync.Mutex
		done       int
		infeasible int
	)
	step := size / 100
	if step < 1 {
		step = 1
	}
	report := func(wasInfeasible bool) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if wasInfeasible {
			infeasible++
		}
		if progress != nil && (done%step == 0 || done == size) {
			progress(done, size, infeasible)
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.parallelism)

	for i := 0; i < size; i++ {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			params, err := g.At(i)
			if err != nil {
				return err
			}

			trace, err := strat.Simulate(egCtx, series, params)
			if errors.Is(err, strategy.ErrInfeasible) {
				report(true)
				return nil
			}
			if err != nil {
				return fmt.Errorf("combination %d (%s): %w", i, params, err)
			}

			slots[i] = scoreTrace(i, params, trace, scorer)
			report(false)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	results := make([]*domain.ScoredResult, 0, size)
	for _, r := range slots {
		if r != nil {
			results = append(results, r)
		}
	}
	domain.RankResults(results)

	return &Evaluation{
		Results:    results,
		GridSize:   size,
		Infeasible: infeasible,
	}, nil
}

// scoreTrace summarizes a trace; the trace itself is dropped to bound memory.
func scoreTrace(index int, params domain.StrategyParameters, trace *domain.SimulationTrace, scorer metrics.Scorer) *domain.ScoredResult {
	return &domain.ScoredResult{
		Index:       index,
		Params:      params,
		Score:       scorer(trace),
		FinalValue:  trace.Final(),
		MaxDrawdown: metrics.MaxDrawdown(trace.Values),
		Injected:    trace.Injected,
		BuyCount:    len(trace.Buys),
	}
}

// attachTraces re-simulates results to restore their traces.
// Simulation is deterministic, so the traces match the scored ones.
func attachTraces(ctx context.Context, series *domain.PriceSeries, strat strategy.Strategy, results []*domain.ScoredResult) error {
	for _, r := range results {
		trace, err := strat.Simulate(ctx, series, r.Params)
		if err != nil {
			return fmt.Errorf("replay combination %d: %w", r.Index, err)
		}
		r.Trace = trace
	}
	return nil
}
