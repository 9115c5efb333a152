package domain

import (
	"math"
	"sort"
	"time"
)

// BuyEvent records one reserve injection.
type BuyEvent struct {
	Date       time.Time
	Amount     float64 // injected amount
	ValueAfter float64 // portfolio value right after the injection
}

// Leg names recorded by multi-position strategies.
const (
	LegLong  = "long"
	LegHedge = "hedge"
)

// SimulationTrace is the per-combination output of a simulator.
// len(Values) always equals the series length.
type SimulationTrace struct {
	Dates    []time.Time
	Values   []float64            // portfolio value per trading day
	Reserve  []float64            // side wallet per trading day (nil when unused)
	Buys     []BuyEvent           // discrete buy events in date order
	Legs     map[string][]float64 // per-position values (nil when single position)
	Injected float64              // total injected from reserve
}

// Len returns the number of traced days.
func (t *SimulationTrace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Values)
}

// Final returns the last traced value.
func (t *SimulationTrace) Final() float64 {
	if t == nil || len(t.Values) == 0 {
		return 0
	}
	return t.Values[len(t.Values)-1]
}

// ScoredResult is one evaluated grid point.
type ScoredResult struct {
	ResultID    string
	Index       int // position in grid enumeration order; tie-break key
	Params      StrategyParameters
	Trace       *SimulationTrace
	Score       float64
	FinalValue  float64
	MaxDrawdown float64
	Injected    float64
	BuyCount    int
}

// Better reports whether a ranks ahead of b: higher score first, then lower
// grid index. NaN scores rank after every number.
func (r *ScoredResult) Better(b *ScoredResult) bool {
	an, bn := math.IsNaN(r.Score), math.IsNaN(b.Score)
	switch {
	case an != bn:
		return bn
	case !an && r.Score != b.Score:
		return r.Score > b.Score
	default:
		return r.Index < b.Index
	}
}

// RankResults sorts results best first in place.
func RankResults(results []*ScoredResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Better(results[j])
	})
}

// OutcomeStatus classifies an evaluation.
type OutcomeStatus string

// Outcome statuses. None of them is a fault.
const (
	OutcomeOK                 OutcomeStatus = "OK"
	OutcomeInsufficientData   OutcomeStatus = "INSUFFICIENT_DATA"
	OutcomeNoFeasibleStrategy OutcomeStatus = "NO_FEASIBLE_STRATEGY"
)

// OptimizationOutcome is the best result of a sweep.
// Best is nil unless Status is OutcomeOK.
type OptimizationOutcome struct {
	RunID      string
	Ticker     string
	Strategy   StrategyType
	Status     OutcomeStatus
	Best       *ScoredResult
	GridSize   int
	Evaluated  int
	Infeasible int
}

// HasResult reports whether a best strategy was selected.
func (o *OptimizationOutcome) HasResult() bool {
	return o != nil && o.Status == OutcomeOK && o.Best != nil
}

// SweepRun is persisted metadata of one evaluation request.
type SweepRun struct {
	RunID     string
	Ticker    string
	Strategy  StrategyType
	Start     time.Time
	End       time.Time
	GridSize  int
	Status    OutcomeStatus
	BestScore *float64
	BestParam string
	CreatedAt time.Time
}

// SweepAggregate summarizes the score distribution of a sweep.
type SweepAggregate struct {
	Count      int
	Infeasible int
	ScoreMean  float64
	ScoreMed   float64
	ScoreP10   float64
	ScoreP90   float64
	ScoreMin   float64
	ScoreMax   float64
	ScoreStd   float64
}
