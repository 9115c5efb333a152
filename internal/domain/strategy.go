package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StrategyType selects the simulator used for a grid.
type StrategyType string

// Strategy type constants
const (
	StrategyTypeDipBuy        StrategyType = "DIP_BUY"        // threshold-triggered cost averaging
	StrategyTypeHedge         StrategyType = "HEDGE"          // leveraged long + inverse hedge
	StrategyTypeLeveragedHold StrategyType = "LEVERAGED_HOLD" // leveraged buy-and-hold
)

// ParseStrategyType accepts canonical names and lowercase aliases.
func ParseStrategyType(s string) (StrategyType, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case string(StrategyTypeDipBuy), "DIP":
		return StrategyTypeDipBuy, nil
	case string(StrategyTypeHedge):
		return StrategyTypeHedge, nil
	case string(StrategyTypeLeveragedHold), "HOLD":
		return StrategyTypeLeveragedHold, nil
	default:
		return "", fmt.Errorf("unknown strategy type %q", s)
	}
}

// Compounding is the return convention applied to the running value.
type Compounding string

// Compounding conventions. A single run never mixes them.
const (
	// CompoundingLog: value *= exp(leverage * ln(p[i]/p[i-1])).
	CompoundingLog Compounding = "LOG"
	// CompoundingSimple: value *= 1 + leverage * (p[i]/p[i-1] - 1).
	CompoundingSimple Compounding = "SIMPLE"
)

// Parameter names used by the built-in strategies.
const (
	ParamThreshold       = "threshold"
	ParamContribution    = "contribution"
	ParamLeverage        = "leverage"
	ParamInverseLeverage = "inverse_leverage"
	ParamHedgeMultiplier = "hedge_multiplier"
)

// Param is one named knob value.
type Param struct {
	Name  string
	Value float64
}

// StrategyParameters is an immutable, ordered tuple of knob values.
type StrategyParameters struct {
	params []Param
}

// NewStrategyParameters copies params into an immutable tuple.
func NewStrategyParameters(params ...Param) StrategyParameters {
	cp := make([]Param, len(params))
	copy(cp, params)
	return StrategyParameters{params: cp}
}

// Len returns the number of knobs.
func (p StrategyParameters) Len() int { return len(p.params) }

// Params returns a copy of the knobs in declaration order.
func (p StrategyParameters) Params() []Param {
	out := make([]Param, len(p.params))
	copy(out, p.params)
	return out
}

// Get returns the value for name.
func (p StrategyParameters) Get(name string) (float64, bool) {
	for _, kv := range p.params {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return 0, false
}

// MustGet returns the value for name and panics when it is absent.
// Use it only where the grid guarantees the knob exists.
func (p StrategyParameters) MustGet(name string) float64 {
	v, ok := p.Get(name)
	if !ok {
		panic(fmt.Sprintf("strategy parameter %q not set", name))
	}
	return v
}

// With returns a copy with name set to value (appended when absent).
func (p StrategyParameters) With(name string, value float64) StrategyParameters {
	out := p.Params()
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return StrategyParameters{params: out}
		}
	}
	return StrategyParameters{params: append(out, Param{Name: name, Value: value})}
}

// String renders "name=value,..." in declaration order.
func (p StrategyParameters) String() string {
	parts := make([]string, len(p.params))
	for i, kv := range p.params {
		parts[i] = kv.Name + "=" + strconv.FormatFloat(kv.Value, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Key renders the tuple independent of declaration order: "name=value"
// pairs sorted by name and joined by ";". Equal tuples share a key.
func (p StrategyParameters) Key() string {
	parts := make([]string, len(p.params))
	for i, kv := range p.params {
		parts[i] = kv.Name + "=" + strconv.FormatFloat(kv.Value, 'g', -1, 64)
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// StrategyConfig holds the fixed (non-swept) knobs of a run.
type StrategyConfig struct {
	Type        StrategyType
	Compounding Compounding // empty selects the strategy default

	InitialValue float64 // starting portfolio value
	Leverage     float64 // fixed leverage when not swept (DIP_BUY); 0 means 1

	// DIP_BUY
	ContributionDay int      // day of month the contribution lands; 0 means 10
	MaxInjection    *float64 // cap on cumulative injections; nil = unlimited

	// HEDGE
	PositionValue float64 // value of the leveraged long position
	TotalCapital  float64 // budget: position + hedge must not exceed it
}

// DefaultContributionDay is the day of month contributions land on.
const DefaultContributionDay = 10

// EffectiveLeverage returns Leverage or 1 when unset.
func (c StrategyConfig) EffectiveLeverage() float64 {
	if c.Leverage == 0 {
		return 1
	}
	return c.Leverage
}

// DefaultCompounding returns the convention a strategy type uses when the
// config leaves it unset: SIMPLE for HEDGE, LOG otherwise.
func DefaultCompounding(t StrategyType) Compounding {
	if t == StrategyTypeHedge {
		return CompoundingSimple
	}
	return CompoundingLog
}

// EffectiveCompounding returns Compounding or the type's default.
func (c StrategyConfig) EffectiveCompounding() Compounding {
	if c.Compounding == "" {
		return DefaultCompounding(c.Type)
	}
	return c.Compounding
}

// EffectiveContributionDay returns ContributionDay or the default.
func (c StrategyConfig) EffectiveContributionDay() int {
	if c.ContributionDay <= 0 {
		return DefaultContributionDay
	}
	return c.ContributionDay
}

// ParseStrategyParameters parses the String() form back into parameters.
func ParseStrategyParameters(s string) (StrategyParameters, error) {
	if s == "" {
		return StrategyParameters{}, nil
	}
	parts := strings.Split(s, ",")
	params := make([]Param, 0, len(parts))
	for _, part := range parts {
		name, raw, ok := strings.Cut(part, "=")
		if !ok || name == "" {
			return StrategyParameters{}, fmt.Errorf("malformed parameter %q", part)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return StrategyParameters{}, fmt.Errorf("parameter %s: %w", name, err)
		}
		params = append(params, Param{Name: name, Value: v})
	}
	return StrategyParameters{params: params}, nil
}
