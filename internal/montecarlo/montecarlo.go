// Package montecarlo simulates future price paths from i.i.d. normal
// log returns.
package montecarlo

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"ticker-strategy-lab/internal/domain"
)

// ErrInvalidInput is returned for non-positive sizes or invalid moments.
var ErrInvalidInput = errors.New("invalid monte carlo input")

// Defaults
const (
	DefaultDays  = 30
	DefaultPaths = 1000
	DefaultBins  = 100
	MaxDays      = 365
	MaxPaths     = 10000
)

// Config parameterizes one simulation.
type Config struct {
	LastPrice float64 `json:"last_price" validate:"gt=0"`
	Mu        float64 `json:"mu"`
	Sigma     float64 `json:"sigma" validate:"gte=0"`
	Days      int     `json:"days" validate:"gte=1,lte=365"`
	Paths     int     `json:"paths" validate:"gte=1,lte=10000"`
	Seed      uint64  `json:"seed"`
}

func (c Config) validate() error {
	switch {
	case !(c.LastPrice > 0):
		return fmt.Errorf("%w: last price %v", ErrInvalidInput, c.LastPrice)
	case math.IsNaN(c.Mu) || math.IsInf(c.Mu, 0):
		return fmt.Errorf("%w: mu %v", ErrInvalidInput, c.Mu)
	case !(c.Sigma >= 0) || math.IsInf(c.Sigma, 0):
		return fmt.Errorf("%w: sigma %v", ErrInvalidInput, c.Sigma)
	case c.Days < 1 || c.Days > MaxDays:
		return fmt.Errorf("%w: days %d", ErrInvalidInput, c.Days)
	case c.Paths < 1 || c.Paths > MaxPaths:
		return fmt.Errorf("%w: paths %d", ErrInvalidInput, c.Paths)
	}
	return nil
}

// Result holds every simulated path. Paths[i][0] is the last observed price
// and Paths[i][Days] the final simulated price.
type Result struct {
	Config Config
	Paths  [][]float64
}

// Simulate draws Paths paths of Days daily log-return shocks.
// The same Config (including Seed) always yields the same paths.
func Simulate(cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	shock := distuv.Normal{Mu: cfg.Mu, Sigma: cfg.Sigma, Src: rng}

	paths := make([][]float64, cfg.Paths)
	for i := range paths {
		path := make([]float64, cfg.Days+1)
		path[0] = cfg.LastPrice
		for d := 1; d <= cfg.Days; d++ {
			path[d] = path[d-1] * math.Exp(shock.Rand())
		}
		paths[i] = path
	}
	return &Result{Config: cfg, Paths: paths}, nil
}

// Estimate returns the mean and sample deviation of the series log returns.
func Estimate(series *domain.PriceSeries) (mu, sigma float64, err error) {
	returns := make([]float64, 0, series.Len())
	for _, r := range series.LogReturns() {
		if !math.IsNaN(r) {
			returns = append(returns, r)
		}
	}
	if len(returns) < 2 {
		return 0, 0, fmt.Errorf("%w: need at least 3 closes, have %d", ErrInvalidInput, series.Len())
	}
	mu, sigma = stat.MeanStdDev(returns, nil)
	return mu, sigma, nil
}

// FromSeries estimates the return moments of series and simulates from its
// last close.
func FromSeries(series *domain.PriceSeries, days, paths int, seed uint64) (*Result, error) {
	mu, sigma, err := Estimate(series)
	if err != nil {
		return nil, err
	}
	return Simulate(Config{
		LastPrice: series.Last().Close,
		Mu:        mu,
		Sigma:     sigma,
		Days:      days,
		Paths:     paths,
		Seed:      seed,
	})
}

// FinalPrices returns the last price of every path.
func (r *Result) FinalPrices() []float64 {
	out := make([]float64, len(r.Paths))
	for i, p := range r.Paths {
		out[i] = p[len(p)-1]
	}
	return out
}

// Summary describes the final price distribution.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"` // population deviation
	P5     float64 `json:"p5"`
	P95    float64 `json:"p95"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes Summary over the final prices.
func (r *Result) Summarize() Summary {
	final := r.FinalPrices()
	sort.Float64s(final)

	mean, variance := stat.PopMeanVariance(final, nil)
	return Summary{
		Mean:   mean,
		Median: median(final),
		Std:    math.Sqrt(variance),
		P5:     stat.Quantile(0.05, stat.LinInterp, final, nil),
		P95:    stat.Quantile(0.95, stat.LinInterp, final, nil),
		Min:    final[0],
		Max:    final[len(final)-1],
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Bin is one histogram bucket [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram buckets the final prices into n equal-width bins spanning
// [min, max]. The maximum falls in the last bin.
func (r *Result) Histogram(n int) []Bin {
	if n <= 0 {
		n = DefaultBins
	}
	final := r.FinalPrices()
	sort.Float64s(final)
	lo, hi := final[0], final[len(final)-1]
	if hi == lo {
		return []Bin{{Lower: lo, Upper: hi, Count: len(final)}}
	}

	dividers := make([]float64, n+1)
	width := (hi - lo) / float64(n)
	for i := range dividers {
		dividers[i] = lo + width*float64(i)
	}
	// Histogram requires the last divider strictly above the maximum.
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, final, nil)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	return bins
}
