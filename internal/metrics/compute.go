package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"ticker-strategy-lab/internal/domain"
)

// ErrUnknownScorer is returned by ScorerByName for an unrecognized name.
var ErrUnknownScorer = errors.New("unknown scorer")

// Scorer reduces a trace to a scalar. Higher is better.
type Scorer func(trace *domain.SimulationTrace) float64

// Scorer names accepted by ScorerByName.
const (
	ScorerFinalValue      = "final_value"
	ScorerDrawdownPenalty = "drawdown_penalty"
)

// FinalValueScorer scores a trace by its last value.
func FinalValueScorer(trace *domain.SimulationTrace) float64 {
	return trace.Final()
}

// DrawdownPenaltyScorer scores final * (1 - penalty * maxDrawdown).
// penalty 0 is equivalent to FinalValueScorer.
func DrawdownPenaltyScorer(penalty float64) Scorer {
	return func(trace *domain.SimulationTrace) float64 {
		return trace.Final() * (1 - penalty*MaxDrawdown(trace.Values))
	}
}

// ScorerByName resolves a configured scorer.
func ScorerByName(name string, penalty float64) (Scorer, error) {
	switch name {
	case "", ScorerFinalValue:
		return FinalValueScorer, nil
	case ScorerDrawdownPenalty:
		return DrawdownPenaltyScorer(penalty), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownScorer, name)
	}
}

// MaxDrawdown returns max over t of (runningPeak - v[t]) / runningPeak.
// Non-positive peaks are skipped. A non-decreasing series yields exactly 0.
func MaxDrawdown(values []float64) float64 {
	peak := math.Inf(-1)
	maxDrawdown := 0.0

	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// CAGR returns (final/initial)^(1/years) - 1.
// Returns NaN when initial or years is not positive.
func CAGR(initial, final, years float64) float64 {
	if initial <= 0 || years <= 0 {
		return math.NaN()
	}
	return math.Pow(final/initial, 1/years) - 1
}

// Years returns the trace span in years of 365.25 days.
func Years(trace *domain.SimulationTrace) float64 {
	if trace.Len() < 2 {
		return 0
	}
	return trace.Dates[len(trace.Dates)-1].Sub(trace.Dates[0]).Hours() / 24 / 365.25
}

// computeFromResults summarizes the score distribution of feasible results.
// NaN scores are excluded from the distribution.
func computeFromResults(results []*domain.ScoredResult, infeasible int) *domain.SweepAggregate {
	scores := make([]float64, 0, len(results))
	for _, r := range results {
		if !math.IsNaN(r.Score) {
			scores = append(scores, r.Score)
		}
	}

	agg := &domain.SweepAggregate{
		Count:      len(results),
		Infeasible: infeasible,
	}
	n := len(scores)
	if n == 0 {
		return agg
	}

	sorted := make([]float64, n)
	copy(sorted, scores)
	sort.Float64s(sorted)

	mean := computeMean(scores)
	agg.ScoreMean = mean
	agg.ScoreMed = computePercentile(sorted, 0.50)
	agg.ScoreP10 = computePercentile(sorted, 0.10)
	agg.ScoreP90 = computePercentile(sorted, 0.90)
	agg.ScoreMin = sorted[0]
	agg.ScoreMax = sorted[n-1]
	agg.ScoreStd = computeStddev(scores, mean)
	return agg
}

// Summarize computes the sweep aggregate over in-memory results.
func Summarize(results []*domain.ScoredResult, infeasible int) *domain.SweepAggregate {
	return computeFromResults(results, infeasible)
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
