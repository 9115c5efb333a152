package decision

import (
	"fmt"
	"math"
	"strings"
)

// RenderMarkdown renders DecisionResult as Markdown string.
func RenderMarkdown(result *DecisionResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Investment Decision Index: %s\n\n", result.Ticker))
	sb.WriteString(fmt.Sprintf("Risk preference: %d\n\n", result.RiskPreference))
	sb.WriteString(fmt.Sprintf("## Outlook: %s\n\n", result.Outlook))
	sb.WriteString(fmt.Sprintf("Composite score: %s\n\n", formatScore(result.Composite)))

	// Components table
	sb.WriteString("## Components\n\n")
	sb.WriteString("| # | Indicator | Raw | Normalized | Weight |\n")
	sb.WriteString("|---|-----------|-----|------------|--------|\n")
	for i, c := range result.Components {
		normalized := "n/a"
		if c.Used {
			normalized = formatScore(c.Normalized)
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %.2f |\n",
			i+1, c.Indicator, formatScore(c.Raw), normalized, c.Weight))
	}
	sb.WriteString("\n")

	skipped := 0
	for _, c := range result.Components {
		if !c.Used {
			skipped++
		}
	}
	if skipped > 0 {
		sb.WriteString(fmt.Sprintf("%d indicator(s) undefined for this window and excluded from the composite.\n", skipped))
	}

	return sb.String()
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
