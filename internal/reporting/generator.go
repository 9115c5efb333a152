package reporting

import (
	"context"
	"errors"
	"time"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/metrics"
	"ticker-strategy-lab/internal/storage"
)

// Build assembles a report from an in-memory evaluation. series may be nil
// when no data was available; results are expected best first.
func Build(series *domain.PriceSeries, outcome *domain.OptimizationOutcome, results []*domain.ScoredResult, aggregate *domain.SweepAggregate) *Report {
	r := &Report{
		GeneratedAt: time.Now().UTC(),
		Results:     resultRows(results),
		Aggregate:   aggregate,
	}
	if outcome != nil {
		r.RunID = outcome.RunID
		r.Ticker = outcome.Ticker
		r.Strategy = outcome.Strategy
		r.Status = outcome.Status
		r.GridSize = outcome.GridSize
		r.Evaluated = outcome.Evaluated
		r.Infeasible = outcome.Infeasible
		if outcome.HasResult() {
			best := resultRow(1, outcome.Best)
			r.Best = &best
		}
	}
	if series != nil {
		r.DataSummary = summarizeSeries(series)
		if r.Ticker == "" {
			r.Ticker = series.Ticker()
		}
	}
	return r
}

func summarizeSeries(series *domain.PriceSeries) DataSummary {
	if series.Len() == 0 {
		return DataSummary{}
	}
	first, last := series.First(), series.Last()
	return DataSummary{
		Points:     series.Len(),
		Start:      first.Date,
		End:        last.Date,
		FirstClose: first.Close,
		LastClose:  last.Close,
		ChangePct:  (last.Close - first.Close) / first.Close * 100,
	}
}

func resultRows(results []*domain.ScoredResult) []ResultRow {
	rows := make([]ResultRow, len(results))
	for i, res := range results {
		rows[i] = resultRow(i+1, res)
	}
	return rows
}

func resultRow(rank int, res *domain.ScoredResult) ResultRow {
	return ResultRow{
		Rank:        rank,
		ResultID:    res.ResultID,
		GridIndex:   res.Index,
		Params:      res.Params.String(),
		Score:       res.Score,
		FinalValue:  res.FinalValue,
		MaxDrawdown: res.MaxDrawdown,
		Injected:    res.Injected,
		BuyCount:    res.BuyCount,
	}
}

// Generator produces reports from stored sweeps.
type Generator struct {
	sweepStore storage.SweepStore
	aggregator *metrics.Aggregator
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(sweepStore storage.SweepStore) *Generator {
	return &Generator{
		sweepStore: sweepStore,
		aggregator: metrics.NewAggregator(sweepStore),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate rebuilds the report of a persisted run. limit caps the ranked
// results (<= 0 for all). Stored results carry no traces, so the report has
// no data summary unless series is given.
func (g *Generator) Generate(ctx context.Context, runID string, limit int, series *domain.PriceSeries) (*Report, error) {
	run, err := g.sweepStore.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	results, err := g.sweepStore.GetResults(ctx, runID, limit)
	if err != nil {
		return nil, err
	}

	agg, err := g.aggregator.ComputeAggregate(ctx, runID)
	if err != nil && !errors.Is(err, metrics.ErrNoResults) {
		return nil, err
	}

	outcome := &domain.OptimizationOutcome{
		RunID:      run.RunID,
		Ticker:     run.Ticker,
		Strategy:   run.Strategy,
		Status:     run.Status,
		GridSize:   run.GridSize,
	}
	if agg != nil {
		outcome.Evaluated = agg.Count
		outcome.Infeasible = agg.Infeasible
	}
	if run.Status == domain.OutcomeOK && len(results) > 0 {
		outcome.Best = results[0]
	}

	r := Build(series, outcome, results, agg)
	r.GeneratedAt = g.now()
	return r, nil
}
