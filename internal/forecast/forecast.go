// Package forecast projects closing prices with an additive model: a linear
// trend plus yearly and weekly Fourier seasonality, fitted by penalized
// least squares.
//
// Closes are divided by their largest absolute value and time is mapped onto
// [0,1] over the history before fitting, so the penalty acts on values of
// order one. Every output is reported in the original units.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"ticker-strategy-lab/internal/domain"
)

// Errors
var (
	ErrInsufficientData = errors.New("insufficient closes for forecast")
	ErrInvalidConfig    = errors.New("invalid forecast config")
	ErrSingular         = errors.New("forecast design matrix is singular")
)

const (
	// MinPoints is the shortest series accepted by Fit.
	MinPoints = 14

	DefaultMonths      = 12
	DefaultYearlyOrder = 10
	DefaultWeeklyOrder = 3
	DefaultInterval    = 0.8
)

const (
	yearDays = 365.25
	weekDays = 7.0

	// yearly terms need a full cycle of history, weekly terms two
	minYearlySpan = 365.0
	minWeeklySpan = 14.0

	// ridge is added to the diagonal of the seasonal block of X'X.
	ridge = 1e-3
)

// Config tunes Fit and Analyze. Zero values select defaults.
type Config struct {
	Months      int     // month-end dates forecast after the last close
	YearlyOrder int     // Fourier pairs with a 365.25 day period
	WeeklyOrder int     // Fourier pairs with a 7 day period
	Interval    float64 // central coverage of the uncertainty band, in (0,1)
}

func (c Config) withDefaults() Config {
	if c.Months == 0 {
		c.Months = DefaultMonths
	}
	if c.YearlyOrder == 0 {
		c.YearlyOrder = DefaultYearlyOrder
	}
	if c.WeeklyOrder == 0 {
		c.WeeklyOrder = DefaultWeeklyOrder
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Months < 0:
		return fmt.Errorf("%w: months %d", ErrInvalidConfig, c.Months)
	case c.YearlyOrder < 0 || c.WeeklyOrder < 0:
		return fmt.Errorf("%w: fourier orders %d/%d", ErrInvalidConfig, c.YearlyOrder, c.WeeklyOrder)
	case c.Interval <= 0 || c.Interval >= 1:
		return fmt.Errorf("%w: interval %v", ErrInvalidConfig, c.Interval)
	}
	return nil
}

// Point is a prediction with its uncertainty band.
type Point struct {
	Date  time.Time
	Yhat  float64
	Lower float64
	Upper float64
}

// Model is a fitted trend plus seasonality model.
type Model struct {
	start  time.Time
	span   float64 // days from the first to the last close
	yScale float64

	// effective orders; zero when the history is too short for the term
	yearly, weekly int

	beta  []float64 // scaled units
	sigma float64   // residual standard deviation, original units
	z     float64   // normal quantile of the band edge
}

// Fit estimates the model over the closes of series.
func Fit(series *domain.PriceSeries, cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := series.Len()
	if n < MinPoints {
		return nil, fmt.Errorf("%w: need %d closes, got %d", ErrInsufficientData, MinPoints, n)
	}

	dates := series.Dates()
	closes := series.Closes()
	m := &Model{
		start: dates[0],
		span:  dates[n-1].Sub(dates[0]).Hours() / 24,
		z:     distuv.UnitNormal.Quantile(0.5 + cfg.Interval/2),
	}
	if m.span >= minYearlySpan {
		m.yearly = cfg.YearlyOrder
	}
	if m.span >= minWeeklySpan {
		m.weekly = cfg.WeeklyOrder
	}
	for _, c := range closes {
		m.yScale = math.Max(m.yScale, math.Abs(c))
	}
	if m.yScale == 0 {
		m.yScale = 1
	}

	p := m.columns()
	if n <= p {
		return nil, fmt.Errorf("%w: %d closes for %d coefficients", ErrInsufficientData, n, p)
	}

	x := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, d := range dates {
		x.SetRow(i, m.features(d))
		y.SetVec(i, closes[i]/m.yScale)
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	for j := 2; j < p; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+ridge)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, ErrSingular
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("solve normal equations: %w", err)
		}
	}
	m.beta = make([]float64, p)
	for j := range m.beta {
		m.beta[j] = beta.AtVec(j)
	}

	var ssr float64
	for i, d := range dates {
		r := closes[i] - m.mean(d)
		ssr += r * r
	}
	m.sigma = math.Sqrt(ssr / float64(n-p))
	return m, nil
}

func (m *Model) columns() int {
	return 2 + 2*m.yearly + 2*m.weekly
}

// features is the design row of date d: intercept, trend, yearly pairs,
// weekly pairs.
func (m *Model) features(d time.Time) []float64 {
	row := make([]float64, 0, m.columns())
	row = append(row, 1, m.trendTime(d))
	row = fourier(row, d, yearDays, m.yearly)
	return fourier(row, d, weekDays, m.weekly)
}

func (m *Model) trendTime(d time.Time) float64 {
	return d.Sub(m.start).Hours() / 24 / m.span
}

// fourier appends sin/cos pairs of the given period. The phase counts days
// since the Unix epoch so components do not depend on the history start.
func fourier(row []float64, d time.Time, period float64, order int) []float64 {
	t := float64(d.Unix()) / 86400
	for k := 1; k <= order; k++ {
		a := 2 * math.Pi * float64(k) * t / period
		row = append(row, math.Sin(a), math.Cos(a))
	}
	return row
}

func (m *Model) mean(d time.Time) float64 {
	var v float64
	for j, f := range m.features(d) {
		v += m.beta[j] * f
	}
	return v * m.yScale
}

// Predict returns the fitted value of d with its uncertainty band.
func (m *Model) Predict(d time.Time) Point {
	yhat := m.mean(d)
	band := m.z * m.sigma
	return Point{Date: d, Yhat: yhat, Lower: yhat - band, Upper: yhat + band}
}

// Sigma is the residual standard deviation in price units.
func (m *Model) Sigma() float64 { return m.sigma }

// Slope is the trend change per year in price units.
func (m *Model) Slope() float64 {
	return m.beta[1] * m.yScale / m.span * yearDays
}

// seasonal evaluates one block of Fourier coefficients at d.
func (m *Model) seasonal(d time.Time, offset int, period float64, order int) float64 {
	var v float64
	for j, f := range fourier(nil, d, period, order) {
		v += m.beta[offset+j] * f
	}
	return v * m.yScale
}

// WeekdayEffect is the weekly seasonal term of one weekday.
type WeekdayEffect struct {
	Weekday time.Weekday
	Effect  float64
}

// refMonday and refYear anchor the component curves; 2017 starts on a
// Sunday and is not a leap year.
var (
	refMonday = time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)
	refYear   = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Weekly returns the weekly component from Monday to Sunday, or nil when
// the model has no weekly term.
func (m *Model) Weekly() []WeekdayEffect {
	if m.weekly == 0 {
		return nil
	}
	offset := 2 + 2*m.yearly
	out := make([]WeekdayEffect, 7)
	for i := range out {
		d := refMonday.AddDate(0, 0, i)
		out[i] = WeekdayEffect{Weekday: d.Weekday(), Effect: m.seasonal(d, offset, weekDays, m.weekly)}
	}
	return out
}

// Yearly returns the yearly component for each day of a non-leap year,
// indexed by day of year minus one, or nil when the model has no yearly term.
func (m *Model) Yearly() []float64 {
	if m.yearly == 0 {
		return nil
	}
	out := make([]float64, 365)
	for i := range out {
		out[i] = m.seasonal(refYear.AddDate(0, 0, i), 2, yearDays, m.yearly)
	}
	return out
}

// Report is a fitted model over a price series with its forecast.
type Report struct {
	Ticker   string
	Config   Config
	Slope    float64 // trend per year
	Sigma    float64
	Fitted   []Point // one per close
	Forecast []Point // month ends after the last close
	Weekly   []WeekdayEffect
	Yearly   []float64
}

// Analyze fits the model to series and forecasts cfg.Months month ends.
func Analyze(series *domain.PriceSeries, cfg Config) (*Report, error) {
	cfg = cfg.withDefaults()
	m, err := Fit(series, cfg)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Ticker: series.Ticker(),
		Config: cfg,
		Slope:  m.Slope(),
		Sigma:  m.Sigma(),
		Weekly: m.Weekly(),
		Yearly: m.Yearly(),
	}
	rep.Fitted = make([]Point, series.Len())
	for i, d := range series.Dates() {
		rep.Fitted[i] = m.Predict(d)
	}
	for _, d := range MonthEnds(series.Last().Date, cfg.Months) {
		rep.Forecast = append(rep.Forecast, m.Predict(d))
	}
	return rep, nil
}

// MonthEnds returns the last day of the n months ending strictly after
// after.
func MonthEnds(after time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	y, mo, _ := after.Date()
	loc := after.Location()
	first := 1
	if !time.Date(y, mo+1, 0, 0, 0, 0, 0, loc).After(after) {
		first = 2
	}
	out := make([]time.Time, n)
	for i := range out {
		// day 0 of the next month is the last day of this one
		out[i] = time.Date(y, mo+time.Month(first+i), 0, 0, 0, 0, 0, loc)
	}
	return out
}
