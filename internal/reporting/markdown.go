package reporting

import (
	"fmt"
	"strings"
	"time"

	"ticker-strategy-lab/internal/decision"
	"ticker-strategy-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Strategy Sweep Report: %s\n\n", r.Ticker))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Strategy: %s | Status: %s\n\n", r.RunID, r.Strategy, r.Status))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	if r.DataSummary.Points > 0 {
		d := r.DataSummary
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Trading Days | %d |\n", d.Points))
		sb.WriteString(fmt.Sprintf("| Start | %s |\n", d.Start.Format(domain.DateLayout)))
		sb.WriteString(fmt.Sprintf("| End | %s |\n", d.End.Format(domain.DateLayout)))
		sb.WriteString(fmt.Sprintf("| First Close | %s |\n", formatMoney(d.FirstClose)))
		sb.WriteString(fmt.Sprintf("| Last Close | %s |\n", formatMoney(d.LastClose)))
		sb.WriteString(fmt.Sprintf("| Change | %s%% |\n", formatFloat(d.ChangePct, 2)))
	} else {
		sb.WriteString("No price data available.\n")
	}
	sb.WriteString("\n")

	// Grid
	sb.WriteString("## Grid\n\n")
	sb.WriteString(fmt.Sprintf("Combinations: %d | Evaluated: %d | Infeasible: %d\n\n", r.GridSize, r.Evaluated, r.Infeasible))

	// Best Strategy
	sb.WriteString("## Best Strategy\n\n")
	switch {
	case r.Best != nil:
		sb.WriteString(fmt.Sprintf("Parameters: `%s`\n\n", r.Best.Params))
		sb.WriteString(fmt.Sprintf("Final value: %s | Score: %s | Max drawdown: %s | Injected: %s | Buys: %d\n\n",
			formatMoney(r.Best.FinalValue), formatFloat(r.Best.Score, 4), formatPct(r.Best.MaxDrawdown),
			formatMoney(r.Best.Injected), r.Best.BuyCount))
	case r.Status == domain.OutcomeInsufficientData:
		sb.WriteString("Not enough price history to evaluate the grid.\n\n")
	default:
		sb.WriteString("No feasible strategy in the grid.\n\n")
	}

	// Ranked Results
	sb.WriteString("## Ranked Results\n\n")
	if len(r.Results) > 0 {
		sb.WriteString("| Rank | Index | Parameters | Score | Final Value | MaxDD | Injected | Buys |\n")
		sb.WriteString("|------|-------|------------|-------|-------------|-------|----------|------|\n")
		for _, row := range r.Results {
			sb.WriteString(fmt.Sprintf("| %d | %d | %s | %s | %s | %s | %s | %d |\n",
				row.Rank, row.GridIndex, row.Params, formatFloat(row.Score, 4), formatMoney(row.FinalValue),
				formatPct(row.MaxDrawdown), formatMoney(row.Injected), row.BuyCount))
		}
	} else {
		sb.WriteString("No results available.\n")
	}
	sb.WriteString("\n")

	// Score Distribution
	sb.WriteString("## Score Distribution\n\n")
	if a := r.Aggregate; a != nil && a.Count > 0 {
		sb.WriteString("| Count | Mean | Median | P10 | P90 | Min | Max | Std |\n")
		sb.WriteString("|-------|------|--------|-----|-----|-----|-----|-----|\n")
		sb.WriteString(fmt.Sprintf("| %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
			a.Count, a.ScoreMean, a.ScoreMed, a.ScoreP10, a.ScoreP90, a.ScoreMin, a.ScoreMax, a.ScoreStd))
	} else {
		sb.WriteString("No score distribution available.\n")
	}
	sb.WriteString("\n")

	if r.Analytics != nil {
		sb.WriteString(RenderAnalyticsMarkdown(r.Analytics))
	}

	return sb.String()
}

// RenderAnalyticsMarkdown renders the indicator section of a ticker.
func RenderAnalyticsMarkdown(a *AnalyticsSection) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Analytics: %s\n\n", a.Ticker))

	if a.Decision != nil {
		sb.WriteString("### Decision Index\n\n")
		sb.WriteString(fmt.Sprintf("Composite: %s | Outlook: %s | Risk preference: %d\n\n",
			formatFloat(a.Decision.Composite, 2), a.Decision.Outlook, a.Decision.RiskPreference))
		sb.WriteString("| Indicator | Raw | Normalized | Weight |\n")
		sb.WriteString("|-----------|-----|------------|--------|\n")
		for _, c := range a.Decision.Components {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.2f |\n",
				c.Indicator, formatFloat(c.Raw, 4), normalizedCell(c), c.Weight))
		}
		sb.WriteString("\n")
	}

	if v := a.Volatility; v != nil {
		sb.WriteString("### Volatility\n\n")
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Daily Std (log) | %s |\n", formatFloat(v.DailyStd, 6)))
		sb.WriteString(fmt.Sprintf("| Days Beyond Std | %s |\n", formatPct(v.Frequency)))
		sb.WriteString(fmt.Sprintf("| Mean Log Return | %s |\n", formatFloat(v.MeanLogReturn, 6)))
		sb.WriteString(fmt.Sprintf("| Trend | %s |\n", v.Trend))
		sb.WriteString(fmt.Sprintf("| Gauge | %s (%s) |\n", formatFloat(v.Gauge, 1), v.Level))
		sb.WriteString(fmt.Sprintf("| %d Days Up | %s |\n", v.ConsecutiveDays, formatPct(v.UpProb)))
		sb.WriteString(fmt.Sprintf("| %d Days Down | %s |\n", v.ConsecutiveDays, formatPct(v.DownProb)))
		sb.WriteString("\n")
	}

	if g := a.Garch; g != nil && g.Fit != nil {
		sb.WriteString("### GARCH\n\n")
		sb.WriteString(fmt.Sprintf("Order: (%d,%d) | AIC: %s | Persistence: %s\n\n",
			g.Fit.P, g.Fit.Q, formatFloat(g.Fit.AIC, 2), formatFloat(g.Fit.Persistence(), 4)))
		sb.WriteString(fmt.Sprintf("Price/volatility correlation: %s\n\n", formatFloat(g.Correlation, 2)))
		if n := len(g.Forecast); n > 0 {
			sb.WriteString(fmt.Sprintf("Forecast volatility: day 1 %s, day %d %s\n\n",
				formatFloat(g.Forecast[0], 6), n, formatFloat(g.Forecast[n-1], 6)))
		}
	}

	if m := a.MonteCarlo; m != nil {
		sb.WriteString("### Monte Carlo\n\n")
		sb.WriteString(fmt.Sprintf("%d paths over %d days\n\n", a.MCPaths, a.MCDays))
		sb.WriteString("| Mean | Median | Std | P5 | P95 |\n")
		sb.WriteString("|------|--------|-----|----|-----|\n")
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			formatMoney(m.Mean), formatMoney(m.Median), formatMoney(m.Std), formatMoney(m.P5), formatMoney(m.P95)))
		sb.WriteString("\n")
	}

	if len(a.Errors) > 0 {
		sb.WriteString("### Unavailable\n\n")
		for _, name := range sortedKeys(a.Errors) {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", name, a.Errors[name]))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func normalizedCell(c decision.ComponentResult) string {
	if !c.Used {
		return "n/a"
	}
	return formatFloat(c.Normalized, 2)
}
