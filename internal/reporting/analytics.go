package reporting

import (
	"sort"

	"ticker-strategy-lab/internal/analytics"
	"ticker-strategy-lab/internal/decision"
	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/garch"
	"ticker-strategy-lab/internal/montecarlo"
)

// Section names used as keys of AnalyticsSection.Errors.
const (
	SectionDecision   = "decision"
	SectionGarch      = "garch"
	SectionMonteCarlo = "montecarlo"
)

// AnalyticsOptions tunes BuildAnalytics. Zero values select defaults.
type AnalyticsOptions struct {
	Risk            int
	ConsecutiveDays int
	GarchP, GarchQ  int
	Horizon         int
	MCDays          int
	MCPaths         int
	Seed            uint64
}

func (o AnalyticsOptions) withDefaults() AnalyticsOptions {
	if o.Risk == 0 {
		o.Risk = decision.DefaultRisk
	}
	if o.ConsecutiveDays <= 0 {
		o.ConsecutiveDays = 3
	}
	// an unset order is GARCH(1,1); GarchQ = 0 with GarchP set is ARCH(p)
	if o.GarchP <= 0 {
		o.GarchP, o.GarchQ = 1, 1
	}
	if o.GarchQ < 0 {
		o.GarchQ = 0
	}
	if o.Horizon <= 0 {
		o.Horizon = garch.DefaultHorizon
	}
	if o.MCDays <= 0 {
		o.MCDays = montecarlo.DefaultDays
	}
	if o.MCPaths <= 0 {
		o.MCPaths = montecarlo.DefaultPaths
	}
	return o
}

// BuildAnalytics runs every indicator report over series. A failing part is
// left nil and its error recorded; the section itself is always returned.
func BuildAnalytics(series *domain.PriceSeries, opts AnalyticsOptions) *AnalyticsSection {
	opts = opts.withDefaults()
	a := &AnalyticsSection{
		Ticker:  series.Ticker(),
		MCDays:  opts.MCDays,
		MCPaths: opts.MCPaths,
		Errors:  make(map[string]string),
	}

	if res, err := decision.Index(series, opts.Risk); err != nil {
		a.Errors[SectionDecision] = err.Error()
	} else {
		a.Decision = res
	}

	vol := analytics.Volatility(series, opts.ConsecutiveDays)
	a.Volatility = &vol

	if rep, err := garch.Analyze(series, opts.GarchP, opts.GarchQ, opts.Horizon); err != nil {
		a.Errors[SectionGarch] = err.Error()
	} else {
		a.Garch = rep
	}

	if sim, err := montecarlo.FromSeries(series, opts.MCDays, opts.MCPaths, opts.Seed); err != nil {
		a.Errors[SectionMonteCarlo] = err.Error()
	} else {
		sum := sim.Summarize()
		a.MonteCarlo = &sum
	}

	return a
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
