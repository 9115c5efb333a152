// Package portfolio builds long-only mean-variance allocations over several
// tickers and evaluates them with leverage.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"ticker-strategy-lab/internal/domain"
)

// Errors
var (
	ErrNoAssets          = errors.New("portfolio requires at least one asset")
	ErrNoCommonDates     = errors.New("assets share fewer than three trading days")
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Risk factor bounds.
const (
	MinRiskFactor = 1
	MaxRiskFactor = 10
)

// Returns is a date-aligned matrix of simple returns, one column per ticker.
type Returns struct {
	Tickers []string
	Dates   []time.Time // Dates[i] is the close that ends return row i
	Data    *mat.Dense  // len(Dates) x len(Tickers)
}

// ReturnsMatrix aligns series on the dates all of them trade (inner join)
// and computes simple returns between consecutive common dates.
func ReturnsMatrix(series ...*domain.PriceSeries) (*Returns, error) {
	if len(series) == 0 {
		return nil, ErrNoAssets
	}

	counts := make(map[time.Time]int)
	closes := make([]map[time.Time]float64, len(series))
	for i, s := range series {
		closes[i] = make(map[time.Time]float64, s.Len())
		for _, p := range s.Points() {
			closes[i][p.Date] = p.Close
			counts[p.Date]++
		}
	}

	var common []time.Time
	for _, p := range series[0].Points() {
		if counts[p.Date] == len(series) {
			common = append(common, p.Date)
		}
	}
	// two returns are the minimum for a sample covariance
	if len(common) < 3 {
		return nil, ErrNoCommonDates
	}

	rows := len(common) - 1
	data := mat.NewDense(rows, len(series), nil)
	for j := range series {
		for i := 0; i < rows; i++ {
			prev, cur := closes[j][common[i]], closes[j][common[i+1]]
			data.Set(i, j, cur/prev-1)
		}
	}

	tickers := make([]string, len(series))
	for i, s := range series {
		tickers[i] = s.Ticker()
	}
	return &Returns{Tickers: tickers, Dates: common[1:], Data: data}, nil
}

// Moments returns the per-asset mean return and the sample covariance.
func (r *Returns) Moments() (*mat.VecDense, *mat.SymDense) {
	_, n := r.Data.Dims()
	mean := mat.NewVecDense(n, nil)
	for j := 0; j < n; j++ {
		mean.SetVec(j, stat.Mean(mat.Col(nil, j, r.Data), nil))
	}
	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, r.Data, nil)
	return mean, cov
}

// Weights is a long-only, fully invested allocation.
type Weights struct {
	Tickers    []string  `json:"tickers"`
	Values     []float64 `json:"weights"`
	RiskFactor float64   `json:"risk_factor"`
	Iterations int       `json:"iterations"`
}

// Get returns the weight of ticker.
func (w *Weights) Get(ticker string) float64 {
	for i, t := range w.Tickers {
		if t == ticker {
			return w.Values[i]
		}
	}
	return 0
}

// Solver settings for Optimize.
const (
	maxIterations = 20000
	tolerance     = 1e-12
)

// Optimize solves min 0.5 wᵀPw + qᵀw subject to w >= 0, sum(w) = 1, with
// P = cov*(10-r)/9 and q = -mean*r/10 for risk factor r clamped to [1, 10].
// A higher risk factor trades variance for expected return.
func Optimize(mean *mat.VecDense, cov *mat.SymDense, riskFactor float64) (*Weights, error) {
	n := mean.Len()
	if n == 0 {
		return nil, ErrNoAssets
	}
	if cov.SymmetricDim() != n {
		return nil, fmt.Errorf("%w: mean %d, covariance %d", ErrDimensionMismatch, n, cov.SymmetricDim())
	}
	r := math.Max(MinRiskFactor, math.Min(MaxRiskFactor, riskFactor))

	P := mat.NewSymDense(n, nil)
	P.ScaleSym((MaxRiskFactor-r)/9, cov)
	q := mat.NewVecDense(n, nil)
	q.ScaleVec(-r/MaxRiskFactor, mean)

	// Without a quadratic term the optimum is the vertex of the best mean.
	lipschitz := mat.Norm(P, 2)
	if lipschitz == 0 {
		return vertexWeights(q, r), nil
	}
	// 1/L step with L bounded above by the Frobenius norm of P.
	step := 1 / lipschitz

	w := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		w.SetVec(i, 1/float64(n))
	}
	grad := mat.NewVecDense(n, nil)
	next := mat.NewVecDense(n, nil)

	it := 0
	for ; it < maxIterations; it++ {
		grad.MulVec(P, w)
		grad.AddVec(grad, q)
		next.AddScaledVec(w, -step, grad)
		projectSimplex(next.RawVector().Data)

		delta := 0.0
		for i := 0; i < n; i++ {
			delta = math.Max(delta, math.Abs(next.AtVec(i)-w.AtVec(i)))
		}
		w.CopyVec(next)
		if delta < tolerance {
			break
		}
	}

	return &Weights{
		Values:     append([]float64(nil), w.RawVector().Data...),
		RiskFactor: r,
		Iterations: it,
	}, nil
}

// vertexWeights puts everything on the smallest linear cost. Ties keep the
// first asset.
func vertexWeights(q *mat.VecDense, r float64) *Weights {
	best := 0
	for i := 1; i < q.Len(); i++ {
		if q.AtVec(i) < q.AtVec(best) {
			best = i
		}
	}
	values := make([]float64, q.Len())
	values[best] = 1
	return &Weights{Values: values, RiskFactor: r}
}

// projectSimplex replaces v with its Euclidean projection onto
// {x : x >= 0, sum(x) = 1}.
func projectSimplex(v []float64) {
	n := len(v)
	u := append([]float64(nil), v...)
	// descending insertion sort; n is the asset count
	for i := 1; i < n; i++ {
		for j := i; j > 0 && u[j] > u[j-1]; j-- {
			u[j], u[j-1] = u[j-1], u[j]
		}
	}

	cum, theta := 0.0, 0.0
	for i := 0; i < n; i++ {
		cum += u[i]
		t := (cum - 1) / float64(i+1)
		if u[i]-t > 0 {
			theta = t
		}
	}
	for i := range v {
		v[i] = math.Max(v[i]-theta, 0)
	}
}

// OptimizeReturns optimizes over the moments of r and labels the weights.
func OptimizeReturns(r *Returns, riskFactor float64) (*Weights, error) {
	mean, cov := r.Moments()
	w, err := Optimize(mean, cov, riskFactor)
	if err != nil {
		return nil, err
	}
	w.Tickers = append([]string(nil), r.Tickers...)
	return w, nil
}

// LeveragedValue compounds the weighted portfolio return times leverage:
// value[i] = initial * prod_{k<=i}(1 + leverage * sum_j w_j r_kj), floored
// at zero once the portfolio is wiped out.
func LeveragedValue(r *Returns, weights []float64, leverage, initial float64) ([]float64, error) {
	rows, cols := r.Data.Dims()
	if len(weights) != cols {
		return nil, fmt.Errorf("%w: %d weights for %d assets", ErrDimensionMismatch, len(weights), cols)
	}

	portfolio := mat.NewVecDense(rows, nil)
	portfolio.MulVec(r.Data, mat.NewVecDense(cols, append([]float64(nil), weights...)))

	out := make([]float64, rows)
	v := initial
	for i := 0; i < rows; i++ {
		v *= 1 + leverage*portfolio.AtVec(i)
		if v < 0 {
			v = 0
		}
		out[i] = v
	}
	return out, nil
}
