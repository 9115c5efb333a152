// Package analytics computes price indicators over daily series.
//
// All routines are stateless. Degenerate inputs (too few points, zero
// variance) yield NaN rather than an error.
package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// DefaultRSIWindow is the conventional RSI lookback.
const DefaultRSIWindow = 14

// Moving average windows reported by MovingAverages.
const (
	ShortWindow  = 10
	MediumWindow = 50
	LongWindow   = 200
)

// MovingAverage returns the trailing simple mean over window points.
// Entries before the window fills are NaN.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}

// MovingAverages holds the short, medium and long trailing means.
type MovingAverages struct {
	MA10  []float64
	MA50  []float64
	MA200 []float64
}

// Latest returns the last value of each average (NaN when not filled).
func (m MovingAverages) Latest() (ma10, ma50, ma200 float64) {
	return last(m.MA10), last(m.MA50), last(m.MA200)
}

// ComputeMovingAverages computes the 10/50/200 day averages of closes.
func ComputeMovingAverages(closes []float64) MovingAverages {
	return MovingAverages{
		MA10:  MovingAverage(closes, ShortWindow),
		MA50:  MovingAverage(closes, MediumWindow),
		MA200: MovingAverage(closes, LongWindow),
	}
}

// RSI returns the relative strength index with Wilder smoothing.
// The first value appears at index window; earlier entries are NaN.
func RSI(closes []float64, window int) []float64 {
	out := nanSlice(len(closes))
	if window <= 0 || len(closes) <= window {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= window; i++ {
		g, l := gainLoss(closes[i] - closes[i-1])
		avgGain += g
		avgLoss += l
	}
	avgGain /= float64(window)
	avgLoss /= float64(window)
	out[window] = rsiFrom(avgGain, avgLoss)

	w := float64(window)
	for i := window + 1; i < len(closes); i++ {
		g, l := gainLoss(closes[i] - closes[i-1])
		avgGain = (avgGain*(w-1) + g) / w
		avgLoss = (avgLoss*(w-1) + l) / w
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

// RSISimple returns the RSI computed from plain rolling means of gains
// and losses over window deltas.
func RSISimple(closes []float64, window int) []float64 {
	out := nanSlice(len(closes))
	if window <= 0 || len(closes) <= window {
		return out
	}

	var sumGain, sumLoss float64
	for i := 1; i < len(closes); i++ {
		g, l := gainLoss(closes[i] - closes[i-1])
		sumGain += g
		sumLoss += l
		if i > window {
			og, ol := gainLoss(closes[i-window] - closes[i-window-1])
			sumGain -= og
			sumLoss -= ol
		}
		if i >= window {
			out[i] = rsiFrom(sumGain/float64(window), sumLoss/float64(window))
		}
	}
	return out
}

func gainLoss(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

// rsiFrom maps average gain/loss to 0..100. A window without losses
// reads 100; a flat window is undefined.
func rsiFrom(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return math.NaN()
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// SharpeRatio returns the annualized mean/std ratio of simple daily returns.
// NaN when fewer than two returns exist or their deviation is zero.
func SharpeRatio(closes []float64) float64 {
	r := pctChange(closes)
	if len(r) < 2 {
		return math.NaN()
	}
	mean, std := stat.MeanStdDev(r, nil)
	if std == 0 || math.IsNaN(std) {
		return math.NaN()
	}
	return mean / std * math.Sqrt(TradingDaysPerYear)
}

// HistoricalVolatility returns the annualized standard deviation of simple
// daily returns, in percent.
func HistoricalVolatility(closes []float64) float64 {
	r := pctChange(closes)
	if len(r) < 2 {
		return math.NaN()
	}
	return stat.StdDev(r, nil) * math.Sqrt(TradingDaysPerYear) * 100
}

// Correlation returns the Pearson correlation of a and b over their common
// prefix. NaN when fewer than two pairs exist.
func Correlation(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n < 2 {
		return math.NaN()
	}
	return stat.Correlation(a[:n], b[:n], nil)
}

// ConsecutiveProbability returns the share of windows of days trading
// sessions that closed up (and down) on every session.
// The first session has no prior close and counts as neither.
func ConsecutiveProbability(closes []float64, days int) (up, down float64) {
	// The leading close only seeds the first return; flags start one later.
	rows := len(closes) - 1
	windows := rows - days + 1
	if days <= 0 || windows <= 0 {
		return math.NaN(), math.NaN()
	}

	upFlags := make([]bool, rows)
	downFlags := make([]bool, rows)
	for j := 1; j < rows; j++ {
		diff := closes[j+1] - closes[j]
		upFlags[j] = diff > 0
		downFlags[j] = diff < 0
	}

	return float64(countRuns(upFlags, days)) / float64(windows),
		float64(countRuns(downFlags, days)) / float64(windows)
}

// countRuns counts positions ending a run of at least n true flags.
func countRuns(flags []bool, n int) int {
	count, run := 0, 0
	for _, f := range flags {
		if f {
			run++
		} else {
			run = 0
		}
		if run >= n {
			count++
		}
	}
	return count
}

// pctChange returns close[i]/close[i-1]-1 for i >= 1.
func pctChange(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out
}

// dropNaN returns xs without NaN entries.
func dropNaN(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}
