package reporting

import (
	"time"

	"ticker-strategy-lab/internal/analytics"
	"ticker-strategy-lab/internal/decision"
	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/garch"
	"ticker-strategy-lab/internal/montecarlo"
)

// Report represents one sweep with its ranked results.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Ticker      string
	Strategy    domain.StrategyType
	Status      domain.OutcomeStatus

	// Data Summary (zero when the series was not available)
	DataSummary DataSummary

	// Grid accounting
	GridSize   int
	Evaluated  int
	Infeasible int

	// Best is nil unless Status is OK.
	Best *ResultRow

	// Results ranked best first
	Results []ResultRow

	// Score distribution of feasible results (nil when nothing was scored)
	Aggregate *domain.SweepAggregate

	// Analytics is optional and rendered after the sweep tables.
	Analytics *AnalyticsSection
}

// DataSummary describes the evaluated price series.
type DataSummary struct {
	Points     int
	Start      time.Time
	End        time.Time
	FirstClose float64
	LastClose  float64
	ChangePct  float64
}

// ResultRow represents one row in the ranked results table.
type ResultRow struct {
	Rank        int
	ResultID    string
	GridIndex   int
	Params      string
	Score       float64
	FinalValue  float64
	MaxDrawdown float64
	Injected    float64
	BuyCount    int
}

// AnalyticsSection collects the indicator reports of one ticker.
// Any part may be nil when its input was insufficient; Errors says why.
type AnalyticsSection struct {
	Ticker     string
	Decision   *decision.DecisionResult
	Volatility *analytics.VolatilityReport
	Garch      *garch.Report
	MonteCarlo *montecarlo.Summary
	MCDays     int
	MCPaths    int
	Errors     map[string]string
}
