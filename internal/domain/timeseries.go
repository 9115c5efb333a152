package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInvalidSeries is returned when price points violate series invariants.
var ErrInvalidSeries = errors.New("invalid price series")

// PricePoint is one trading day's close.
type PricePoint struct {
	Date  time.Time // trading day (UTC midnight)
	Close float64   // close price, > 0
}

// PriceSeries is an ordered, immutable sequence of daily closes for a ticker.
// Dates are strictly increasing with no duplicates.
type PriceSeries struct {
	ticker string
	points []PricePoint
}

// NewPriceSeries builds a series from unordered points.
// Points are sorted by date; duplicate dates and non-positive closes are rejected.
func NewPriceSeries(ticker string, points []PricePoint) (*PriceSeries, error) {
	sorted := make([]PricePoint, len(points))
	copy(sorted, points)
	for i := range sorted {
		sorted[i].Date = TruncateDay(sorted[i].Date)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i, p := range sorted {
		if !(p.Close > 0) || math.IsInf(p.Close, 0) {
			return nil, fmt.Errorf("%w: close %v on %s", ErrInvalidSeries, p.Close, p.Date.Format(DateLayout))
		}
		if i > 0 && !p.Date.After(sorted[i-1].Date) {
			return nil, fmt.Errorf("%w: duplicate date %s", ErrInvalidSeries, p.Date.Format(DateLayout))
		}
	}

	return &PriceSeries{ticker: ticker, points: sorted}, nil
}

// MustPriceSeries is NewPriceSeries for fixtures; it panics on invalid input.
func MustPriceSeries(ticker string, points []PricePoint) *PriceSeries {
	s, err := NewPriceSeries(ticker, points)
	if err != nil {
		panic(err)
	}
	return s
}

// DailySeries builds a series of consecutive calendar days starting at start.
// Used by fixtures and CSV loaders that carry no gaps.
func DailySeries(ticker string, start time.Time, closes []float64) (*PriceSeries, error) {
	points := make([]PricePoint, len(closes))
	day := TruncateDay(start)
	for i, c := range closes {
		points[i] = PricePoint{Date: day.AddDate(0, 0, i), Close: c}
	}
	return NewPriceSeries(ticker, points)
}

// Ticker returns the series symbol.
func (s *PriceSeries) Ticker() string { return s.ticker }

// Len returns the number of trading days.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

// At returns the i-th point.
func (s *PriceSeries) At(i int) PricePoint { return s.points[i] }

// Points returns a copy of all points.
func (s *PriceSeries) Points() []PricePoint {
	out := make([]PricePoint, len(s.points))
	copy(out, s.points)
	return out
}

// Dates returns a copy of the trading dates.
func (s *PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Date
	}
	return out
}

// Closes returns a copy of the close prices.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Close
	}
	return out
}

// First returns the first point. Series must be non-empty.
func (s *PriceSeries) First() PricePoint { return s.points[0] }

// Last returns the last point. Series must be non-empty.
func (s *PriceSeries) Last() PricePoint { return s.points[len(s.points)-1] }

// LogReturns returns ln(close[i]/close[i-1]) aligned to the series.
// Index 0 is NaN (undefined).
func (s *PriceSeries) LogReturns() []float64 {
	out := make([]float64, len(s.points))
	for i := range s.points {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(s.points[i].Close / s.points[i-1].Close)
	}
	return out
}

// SimpleReturns returns close[i]/close[i-1] - 1 aligned to the series.
// Index 0 is NaN (undefined).
func (s *PriceSeries) SimpleReturns() []float64 {
	out := make([]float64, len(s.points))
	for i := range s.points {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = s.points[i].Close/s.points[i-1].Close - 1
	}
	return out
}

// Between returns the sub-series within [start, end] (inclusive).
func (s *PriceSeries) Between(start, end time.Time) *PriceSeries {
	start, end = TruncateDay(start), TruncateDay(end)
	var out []PricePoint
	for _, p := range s.points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return &PriceSeries{ticker: s.ticker, points: out}
}

// Slice returns the sub-series of points [from, to), clamped to the
// series bounds. An inverted range is empty.
func (s *PriceSeries) Slice(from, to int) *PriceSeries {
	from = max(from, 0)
	to = min(to, len(s.points))
	if from >= to {
		return &PriceSeries{ticker: s.ticker}
	}
	out := make([]PricePoint, to-from)
	copy(out, s.points[from:to])
	return &PriceSeries{ticker: s.ticker, points: out}
}

// DateLayout is the canonical day format used in keys and reports.
const DateLayout = "2006-01-02"

// TruncateDay normalizes t to UTC midnight.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SeriesKey identifies one provider request.
type SeriesKey struct {
	Ticker string
	Start  time.Time
	End    time.Time
}

// NewSeriesKey normalizes dates to days.
func NewSeriesKey(ticker string, start, end time.Time) SeriesKey {
	return SeriesKey{Ticker: ticker, Start: TruncateDay(start), End: TruncateDay(end)}
}

// String renders ticker|start|end.
func (k SeriesKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Ticker, k.Start.Format(DateLayout), k.End.Format(DateLayout))
}
