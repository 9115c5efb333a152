package reporting

import (
	"time"

	"ticker-strategy-lab/internal/domain"
)

// ChartPayload is the JSON document a front end plots for one sweep: the
// price history overlaid with the best strategy's value trace.
type ChartPayload struct {
	Ticker   string               `json:"ticker"`
	Strategy domain.StrategyType  `json:"strategy"`
	Status   domain.OutcomeStatus `json:"status"`
	Params   map[string]float64   `json:"params,omitempty"`
	Dates    []string             `json:"dates"`
	Closes   []float64            `json:"closes"`
	Values   []float64            `json:"values,omitempty"`
	Reserve  []float64            `json:"reserve,omitempty"`
	Legs     map[string][]float64 `json:"legs,omitempty"`
	Buys     []ChartBuy           `json:"buys,omitempty"`
}

// ChartBuy marks one injection on the value line.
type ChartBuy struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Value  float64 `json:"value"`
}

// BuildChart assembles a chart from a series and the best traced result.
// best may be nil (or carry no trace), in which case only prices are set.
func BuildChart(series *domain.PriceSeries, outcome *domain.OptimizationOutcome, best *domain.ScoredResult) *ChartPayload {
	c := &ChartPayload{}
	if outcome != nil {
		c.Ticker = outcome.Ticker
		c.Strategy = outcome.Strategy
		c.Status = outcome.Status
	}
	if series != nil {
		if c.Ticker == "" {
			c.Ticker = series.Ticker()
		}
		c.Dates = formatDates(series.Dates())
		c.Closes = series.Closes()
	}
	if best == nil {
		return c
	}

	c.Params = make(map[string]float64, best.Params.Len())
	for _, p := range best.Params.Params() {
		c.Params[p.Name] = p.Value
	}
	if t := best.Trace; t != nil {
		c.Values = t.Values
		c.Reserve = t.Reserve
		c.Legs = t.Legs
		for _, b := range t.Buys {
			c.Buys = append(c.Buys, ChartBuy{
				Date:   b.Date.Format(domain.DateLayout),
				Amount: b.Amount,
				Value:  b.ValueAfter,
			})
		}
	}
	return c
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(domain.DateLayout)
	}
	return out
}
