package metrics

import (
	"context"
	"errors"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage"
)

// ErrNoResults is returned when a run has no stored results to aggregate.
var ErrNoResults = errors.New("no results available for aggregation")

// Aggregator computes sweep aggregates from persisted results.
type Aggregator struct {
	sweepStore storage.SweepStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(sweepStore storage.SweepStore) *Aggregator {
	return &Aggregator{sweepStore: sweepStore}
}

// ComputeAggregate loads all stored results of a run and summarizes their scores.
// The infeasible count is derived from the run's grid size.
// Returns ErrNoResults if the run has no results.
func (a *Aggregator) ComputeAggregate(ctx context.Context, runID string) (*domain.SweepAggregate, error) {
	run, err := a.sweepStore.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	results, err := a.sweepStore.GetResults(ctx, runID, 0)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	infeasible := run.GridSize - len(results)
	if infeasible < 0 {
		infeasible = 0
	}
	return computeFromResults(results, infeasible), nil
}
