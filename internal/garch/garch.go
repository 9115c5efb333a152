// Package garch fits GARCH(p,q) volatility models with a constant mean.
//
// Returns are scaled by 100 before estimation so the optimizer works on
// values of order one; every output is reported in the original units.
package garch

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Errors
var (
	ErrInsufficientData = errors.New("insufficient returns for GARCH estimation")
	ErrInvalidOrder     = errors.New("invalid GARCH order")
	ErrNoConvergence    = errors.New("GARCH optimizer failed")
)

// MinReturns is the shortest return series accepted by FitModel.
const MinReturns = 10

// scale is applied to returns before estimation.
const scale = 100.0

// penalty replaces non-finite likelihoods during optimization.
const penalty = 1e10

// Fit is an estimated GARCH(p,q) model.
// P counts ARCH terms (lagged squared residuals), Q counts GARCH terms
// (lagged variances).
type Fit struct {
	P, Q  int
	Mu    float64   // mean return, original units
	Omega float64   // variance intercept, scaled units
	Alpha []float64 // len P
	Beta  []float64 // len Q

	LogLikelihood float64 // scaled units
	AIC           float64
	BIC           float64
	N             int

	// Volatility is the in-sample conditional standard deviation, original units.
	Volatility []float64

	resid  []float64 // scaled residuals
	sigma2 []float64 // scaled conditional variances
}

// NumParams returns the number of estimated parameters.
func (f *Fit) NumParams() int { return 2 + f.P + f.Q }

// Persistence returns sum(alpha) + sum(beta).
func (f *Fit) Persistence() float64 {
	s := 0.0
	for _, a := range f.Alpha {
		s += a
	}
	for _, b := range f.Beta {
		s += b
	}
	return s
}

// UnconditionalVolatility returns the long-run daily volatility in original
// units, or NaN for a non-stationary fit.
func (f *Fit) UnconditionalVolatility() float64 {
	p := f.Persistence()
	if p >= 1 {
		return math.NaN()
	}
	return math.Sqrt(f.Omega/(1-p)) / scale
}

// FitModel estimates GARCH(p,q) by Gaussian maximum likelihood.
// NaN returns are dropped. p must be at least 1 and q non-negative.
func FitModel(returns []float64, p, q int) (*Fit, error) {
	if p < 1 || q < 0 {
		return nil, fmt.Errorf("%w: p=%d q=%d", ErrInvalidOrder, p, q)
	}
	y := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !math.IsNaN(r) {
			y = append(y, r*scale)
		}
	}
	if len(y) < MinReturns {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(y), MinReturns)
	}

	m := &model{y: y, p: p, q: q, backcast: stat.Variance(y, nil)}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			ll := m.logLikelihood(m.unpack(x))
			if math.IsNaN(ll) || math.IsInf(ll, 0) {
				return penalty
			}
			return -ll
		},
	}
	settings := &optimize.Settings{
		MajorIterations: 5000,
		FuncEvaluations: 50000,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-9, Iterations: 200},
	}

	res, err := optimize.Minimize(problem, m.initial(), settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}

	est := m.unpack(res.X)
	resid, sigma2 := m.filter(est)
	ll := m.logLikelihood(est)
	k := float64(2 + p + q)
	n := float64(len(y))

	vol := make([]float64, len(sigma2))
	for i, s2 := range sigma2 {
		vol[i] = math.Sqrt(s2) / scale
	}

	return &Fit{
		P:             p,
		Q:             q,
		Mu:            est.mu / scale,
		Omega:         est.omega,
		Alpha:         est.alpha,
		Beta:          est.beta,
		LogLikelihood: ll,
		AIC:           2*k - 2*ll,
		BIC:           k*math.Log(n) - 2*ll,
		N:             len(y),
		Volatility:    vol,
		resid:         resid,
		sigma2:        sigma2,
	}, nil
}

type params struct {
	mu, omega   float64
	alpha, beta []float64
}

type model struct {
	y        []float64
	p, q     int
	backcast float64
}

// Optimizer coordinates: [mu, log(omega), z_1..z_{p+q}] with
// coefficient_i = exp(z_i) / (1 + sum exp(z_j)), which keeps every
// coefficient non-negative and their sum below one.
func (m *model) unpack(x []float64) params {
	pr := params{
		mu:    x[0],
		omega: math.Exp(clamp(x[1])),
		alpha: make([]float64, m.p),
		beta:  make([]float64, m.q),
	}
	denom := 1.0
	for _, z := range x[2:] {
		denom += math.Exp(clamp(z))
	}
	for i := range pr.alpha {
		pr.alpha[i] = math.Exp(clamp(x[2+i])) / denom
	}
	for j := range pr.beta {
		pr.beta[j] = math.Exp(clamp(x[2+m.p+j])) / denom
	}
	return pr
}

// initial starts from persistence 0.9 split 0.1 ARCH / 0.8 GARCH.
func (m *model) initial() []float64 {
	alphaTotal, betaTotal := 0.1, 0.8
	if m.q == 0 {
		alphaTotal, betaTotal = 0.3, 0
	}
	total := alphaTotal + betaTotal

	x := make([]float64, 2+m.p+m.q)
	x[0] = stat.Mean(m.y, nil)
	x[1] = math.Log(m.backcast * (1 - total))
	for i := 0; i < m.p; i++ {
		x[2+i] = math.Log(alphaTotal / float64(m.p) / (1 - total))
	}
	for j := 0; j < m.q; j++ {
		x[2+m.p+j] = math.Log(betaTotal / float64(m.q) / (1 - total))
	}
	return x
}

// filter runs the variance recursion. Pre-sample squared residuals and
// variances use the sample variance.
func (m *model) filter(pr params) (resid, sigma2 []float64) {
	n := len(m.y)
	resid = make([]float64, n)
	sigma2 = make([]float64, n)
	for t := range m.y {
		resid[t] = m.y[t] - pr.mu
	}
	for t := 0; t < n; t++ {
		s := pr.omega
		for i, a := range pr.alpha {
			lag := t - i - 1
			if lag < 0 {
				s += a * m.backcast
			} else {
				s += a * resid[lag] * resid[lag]
			}
		}
		for j, b := range pr.beta {
			lag := t - j - 1
			if lag < 0 {
				s += b * m.backcast
			} else {
				s += b * sigma2[lag]
			}
		}
		sigma2[t] = s
	}
	return resid, sigma2
}

func (m *model) logLikelihood(pr params) float64 {
	resid, sigma2 := m.filter(pr)
	ll := 0.0
	for t := range resid {
		if !(sigma2[t] > 0) {
			return math.Inf(-1)
		}
		ll -= 0.5 * (math.Log(2*math.Pi) + math.Log(sigma2[t]) + resid[t]*resid[t]/sigma2[t])
	}
	return ll
}

func clamp(z float64) float64 {
	return math.Max(-30, math.Min(30, z))
}
