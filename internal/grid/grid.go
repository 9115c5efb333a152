// Package grid enumerates strategy parameter grids.
package grid

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"ticker-strategy-lab/internal/domain"
)

// Grid errors
var (
	ErrNoDimensions       = errors.New("grid requires at least one dimension")
	ErrDuplicateDimension = errors.New("duplicate grid dimension")
	ErrIndexOutOfRange    = errors.New("grid index out of range")
	ErrUnknownPreset      = errors.New("no preset grid for strategy type")
	ErrInvalidRange       = errors.New("grid range bounds must be finite")
	ErrTooLarge           = errors.New("grid exceeds maximum combinations")
)

// MaxCombinations is the largest grid New accepts. Callers may enforce a
// lower limit with CheckLimit.
const MaxCombinations = 10_000_000

var validate = validator.New(validator.WithRequiredStructEnabled())

// Range describes the values of one dimension: either an explicit list
// or an arithmetic progression Min, Min+Step, ... up to Max.
type Range struct {
	Min       float64   `yaml:"min" json:"min"`
	Max       float64   `yaml:"max" json:"max"`
	Step      float64   `yaml:"step" json:"step"`
	Exclusive bool      `yaml:"exclusive" json:"exclusive"` // Max excluded (half-open, like arange)
	Values    []float64 `yaml:"values" json:"values"`       // explicit list; overrides Min/Max/Step
}

// Dimension is one named parameter axis.
type Dimension struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Range Range  `yaml:"range" json:"range"`
}

// Grid is the Cartesian product of its dimensions.
// Enumeration nests outer-to-inner in declaration order (last dimension varies fastest).
type Grid struct {
	Type       domain.StrategyType `validate:"required"`
	Dimensions []Dimension         `validate:"required,min=1,dive"`

	values [][]float64
	size   int
}

// New builds a validated grid and materializes each dimension's value list.
func New(typ domain.StrategyType, dims ...Dimension) (*Grid, error) {
	g := &Grid{Type: typ, Dimensions: dims}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	lens := make([]int, len(dims))
	for i, d := range dims {
		lens[i] = d.Range.Len()
	}
	size, err := checkedProduct(lens, MaxCombinations)
	if err != nil {
		return nil, err
	}

	g.values = make([][]float64, len(dims))
	for i, d := range dims {
		g.values[i] = d.Range.Expand()
	}
	g.size = size
	return g, nil
}

// checkedProduct multiplies lens, failing with ErrTooLarge when any factor
// or the product exceeds limit. An empty dimension makes the product 0.
func checkedProduct(lens []int, limit int) (int, error) {
	for _, l := range lens {
		if l > limit {
			return 0, fmt.Errorf("%w: dimension of %d values (limit %d)", ErrTooLarge, l, limit)
		}
	}
	n := 1
	for _, l := range lens {
		if l == 0 {
			return 0, nil
		}
	}
	for _, l := range lens {
		if l > limit/n {
			return 0, fmt.Errorf("%w: more than %d combinations", ErrTooLarge, limit)
		}
		n *= l
	}
	return n, nil
}

// CheckLimit reports ErrTooLarge when the grid has more than limit
// combinations. A limit <= 0 disables the check.
func (g *Grid) CheckLimit(limit int) error {
	if limit > 0 && g.Size() > limit {
		return fmt.Errorf("%w: %d combinations (limit %d)", ErrTooLarge, g.Size(), limit)
	}
	return nil
}

// Validate checks the grid has named, unique dimensions.
func (g *Grid) Validate() error {
	if len(g.Dimensions) == 0 {
		return ErrNoDimensions
	}
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("validate grid: %w", err)
	}

	seen := make(map[string]struct{}, len(g.Dimensions))
	for _, d := range g.Dimensions {
		if _, ok := seen[d.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateDimension, d.Name)
		}
		seen[d.Name] = struct{}{}
		if !d.Range.finite() {
			return fmt.Errorf("%w: %s", ErrInvalidRange, d.Name)
		}
	}
	return nil
}

func (r Range) finite() bool {
	for _, v := range append([]float64{r.Min, r.Max, r.Step}, r.Values...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Len returns the number of values Expand produces without materializing
// them. Progressions longer than MaxCombinations report MaxCombinations+1.
func (r Range) Len() int {
	if r.Values != nil {
		return len(r.Values)
	}
	if !r.finite() || r.Min > r.Max {
		return 0
	}
	if r.Min == r.Max {
		if r.Exclusive {
			return 0
		}
		return 1
	}
	if r.Step <= 0 {
		return 0
	}

	span := decimal.NewFromFloat(r.Max).Sub(decimal.NewFromFloat(r.Min)).Div(decimal.NewFromFloat(r.Step))
	if span.GreaterThanOrEqual(decimal.NewFromInt(MaxCombinations)) {
		return MaxCombinations + 1
	}
	if r.Exclusive {
		return int(span.Ceil().IntPart())
	}
	return int(span.Floor().IntPart()) + 1
}

// Expand returns the concrete values of the range.
// An inverted or zero-step range (with Min != Max) is empty.
func (r Range) Expand() []float64 {
	if r.Values != nil {
		out := make([]float64, len(r.Values))
		copy(out, r.Values)
		return out
	}
	n := r.Len()
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []float64{r.Min}
	}

	lo := decimal.NewFromFloat(r.Min)
	step := decimal.NewFromFloat(r.Step)
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, lo.Add(step.Mul(decimal.NewFromInt(int64(i)))).InexactFloat64())
	}
	return out
}

// Size returns the number of combinations (0 if any dimension is empty).
func (g *Grid) Size() int {
	return g.size
}

// Values returns a copy of the expanded values of dimension i.
func (g *Grid) Values(i int) []float64 {
	out := make([]float64, len(g.values[i]))
	copy(out, g.values[i])
	return out
}

// At decodes the i-th combination in enumeration order.
func (g *Grid) At(i int) (domain.StrategyParameters, error) {
	size := g.Size()
	if i < 0 || i >= size {
		return domain.StrategyParameters{}, fmt.Errorf("%w: %d (size %d)", ErrIndexOutOfRange, i, size)
	}

	params := make([]domain.Param, len(g.Dimensions))
	rem := i
	for d := len(g.Dimensions) - 1; d >= 0; d-- {
		vs := g.values[d]
		params[d] = domain.Param{Name: g.Dimensions[d].Name, Value: vs[rem%len(vs)]}
		rem /= len(vs)
	}
	return domain.NewStrategyParameters(params...), nil
}

// All lazily enumerates every combination with its index.
// The sequence is restartable and identical on every iteration.
func (g *Grid) All() iter.Seq2[int, domain.StrategyParameters] {
	return func(yield func(int, domain.StrategyParameters) bool) {
		size := g.Size()
		if size == 0 {
			return
		}

		cursor := make([]int, len(g.values))
		params := make([]domain.Param, len(g.values))
		for idx := 0; idx < size; idx++ {
			for d := range cursor {
				params[d] = domain.Param{Name: g.Dimensions[d].Name, Value: g.values[d][cursor[d]]}
			}
			if !yield(idx, domain.NewStrategyParameters(params...)) {
				return
			}

			// odometer: advance innermost dimension first
			for d := len(cursor) - 1; d >= 0; d-- {
				cursor[d]++
				if cursor[d] < len(g.values[d]) {
					break
				}
				cursor[d] = 0
			}
		}
	}
}

// Linspace returns n evenly spaced values over [start, stop].
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	a := decimal.NewFromFloat(start)
	step := decimal.NewFromFloat(stop).Sub(a).Div(decimal.NewFromInt(int64(n - 1)))
	out := make([]float64, n)
	for i := range out {
		out[i] = a.Add(step.Mul(decimal.NewFromInt(int64(i)))).InexactFloat64()
	}
	out[n-1] = stop
	return out
}

// Canonical renders the expanded grid canonically ("TYPE;name=v1/v2;...").
// Grids enumerating the same combinations render identically.
func (g *Grid) Canonical() string {
	var b strings.Builder
	b.WriteString(string(g.Type))
	for i, d := range g.Dimensions {
		b.WriteString(";")
		b.WriteString(d.Name)
		b.WriteString("=")
		for j, v := range g.values[i] {
			if j > 0 {
				b.WriteString("/")
			}
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	return b.String()
}
