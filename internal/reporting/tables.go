package reporting

import (
	"fmt"
	"strings"
	"time"

	"ticker-strategy-lab/internal/analytics"
	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/forecast"
	"ticker-strategy-lab/internal/garch"
	"ticker-strategy-lab/internal/montecarlo"
	"ticker-strategy-lab/internal/portfolio"
)

// RenderGarchMarkdown renders a fitted model, its forecast and, when sel is
// not nil, the order search.
func RenderGarchMarkdown(rep *garch.Report, sel *garch.Selection) string {
	var sb strings.Builder
	f := rep.Fit

	sb.WriteString(fmt.Sprintf("# GARCH(%d,%d): %s\n\n", f.P, f.Q, rep.Ticker))
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| mu | %s |\n", formatFloat(f.Mu, 6)))
	sb.WriteString(fmt.Sprintf("| omega | %s |\n", formatFloat(f.Omega, 6)))
	for i, a := range f.Alpha {
		sb.WriteString(fmt.Sprintf("| alpha[%d] | %s |\n", i+1, formatFloat(a, 4)))
	}
	for j, b := range f.Beta {
		sb.WriteString(fmt.Sprintf("| beta[%d] | %s |\n", j+1, formatFloat(b, 4)))
	}
	sb.WriteString(fmt.Sprintf("| persistence | %s |\n", formatFloat(f.Persistence(), 4)))
	sb.WriteString(fmt.Sprintf("| long-run volatility | %s |\n", formatFloat(f.UnconditionalVolatility(), 6)))
	sb.WriteString(fmt.Sprintf("| log likelihood | %s |\n", formatFloat(f.LogLikelihood, 2)))
	sb.WriteString(fmt.Sprintf("| AIC | %s |\n", formatFloat(f.AIC, 2)))
	sb.WriteString(fmt.Sprintf("| BIC | %s |\n", formatFloat(f.BIC, 2)))
	sb.WriteString(fmt.Sprintf("| observations | %d |\n", f.N))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Price/volatility correlation: %s\n\n", formatFloat(rep.Correlation, 2)))

	if len(rep.Forecast) > 0 {
		sb.WriteString("## Forecast\n\n")
		sb.WriteString("| Date | Volatility |\n")
		sb.WriteString("|------|------------|\n")
		for i, v := range rep.Forecast {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", rep.ForecastDates[i].Format(domain.DateLayout), formatFloat(v, 6)))
		}
		sb.WriteString("\n")
	}

	if sel != nil {
		sb.WriteString("## Order Selection\n\n")
		sb.WriteString("| p | q | AIC |\n")
		sb.WriteString("|---|---|-----|\n")
		for _, c := range sel.Candidates {
			aic := formatFloat(c.AIC, 2)
			if c.Err != nil {
				aic = "failed: " + c.Err.Error()
			}
			sb.WriteString(fmt.Sprintf("| %d | %d | %s |\n", c.P, c.Q, aic))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderForecastMarkdown renders the month-end forecast of a trend and
// seasonality model with its seasonal components. The yearly curve is shown
// as the mean effect of each calendar month.
func RenderForecastMarkdown(rep *forecast.Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Forecast: %s\n\n", rep.Ticker))
	sb.WriteString(fmt.Sprintf("Trend: %s per year | Residual std: %s | Interval: %s\n\n",
		formatMoney(rep.Slope), formatMoney(rep.Sigma), formatPct(rep.Config.Interval)))

	sb.WriteString("| Date | Forecast | Lower | Upper |\n")
	sb.WriteString("|------|----------|-------|-------|\n")
	for _, p := range rep.Forecast {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			p.Date.Format(domain.DateLayout), formatMoney(p.Yhat), formatMoney(p.Lower), formatMoney(p.Upper)))
	}
	sb.WriteString("\n")

	if len(rep.Weekly) > 0 {
		sb.WriteString("## Weekly Seasonality\n\n")
		sb.WriteString("| Weekday | Effect |\n")
		sb.WriteString("|---------|--------|\n")
		for _, w := range rep.Weekly {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", w.Weekday, formatMoney(w.Effect)))
		}
		sb.WriteString("\n")
	}

	if len(rep.Yearly) > 0 {
		sb.WriteString("## Yearly Seasonality\n\n")
		sb.WriteString("| Month | Effect |\n")
		sb.WriteString("|-------|--------|\n")
		for m, v := range monthlyMeans(rep.Yearly) {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", time.Month(m+1), formatMoney(v)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// monthlyMeans averages a day-of-year curve of a non-leap year by month.
func monthlyMeans(yearly []float64) [12]float64 {
	var sums [12]float64
	var counts [12]int
	day := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range yearly {
		m := day.AddDate(0, 0, i).Month() - 1
		sums[m] += v
		counts[m]++
	}
	for m := range sums {
		if counts[m] > 0 {
			sums[m] /= float64(counts[m])
		}
	}
	return sums
}

// RenderMonteCarloMarkdown renders the final price distribution of a
// simulation with an n-bin histogram.
func RenderMonteCarloMarkdown(ticker string, res *montecarlo.Result, bins int) string {
	var sb strings.Builder
	cfg := res.Config
	sum := res.Summarize()

	sb.WriteString(fmt.Sprintf("# Monte Carlo: %s\n\n", ticker))
	sb.WriteString(fmt.Sprintf("Last close: %s | mu: %s | sigma: %s | Seed: %d\n\n",
		formatMoney(cfg.LastPrice), formatFloat(cfg.Mu, 6), formatFloat(cfg.Sigma, 6), cfg.Seed))
	sb.WriteString(fmt.Sprintf("%d paths over %d days\n\n", cfg.Paths, cfg.Days))

	sb.WriteString("| Mean | Median | Std | P5 | P95 | Min | Max |\n")
	sb.WriteString("|------|--------|-----|----|-----|-----|-----|\n")
	sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n\n",
		formatMoney(sum.Mean), formatMoney(sum.Median), formatMoney(sum.Std),
		formatMoney(sum.P5), formatMoney(sum.P95), formatMoney(sum.Min), formatMoney(sum.Max)))

	sb.WriteString("## Final Price Histogram\n\n")
	sb.WriteString("| From | To | Paths |\n")
	sb.WriteString("|------|----|-------|\n")
	for _, b := range res.Histogram(bins) {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", formatMoney(b.Lower), formatMoney(b.Upper), b.Count))
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderPortfolioMarkdown renders every allocation of a risk factor sweep,
// best first.
func RenderPortfolioMarkdown(sweep *portfolio.RiskSweep) string {
	var sb strings.Builder
	best := sweep.Best()

	sb.WriteString(fmt.Sprintf("# Portfolio: %s\n\n", strings.Join(best.Tickers, ", ")))
	sb.WriteString(fmt.Sprintf("Leverage: %s | Initial: %s\n\n", formatFloat(sweep.Leverage, 2), formatMoney(sweep.Initial)))

	sb.WriteString("| Rank | Risk Factor |")
	for _, t := range best.Tickers {
		sb.WriteString(" " + t + " |")
	}
	sb.WriteString(" Final Value | Max Drawdown |\n")
	sb.WriteString("|------|-------------|")
	sb.WriteString(strings.Repeat("------|", len(best.Tickers)))
	sb.WriteString("-------------|--------------|\n")

	for i, r := range sweep.Ranked {
		w := sweep.Weights[r.Index]
		sb.WriteString(fmt.Sprintf("| %d | %s |", i+1, formatFloat(w.RiskFactor, 0)))
		for _, v := range w.Values {
			sb.WriteString(" " + formatPct(v) + " |")
		}
		sb.WriteString(fmt.Sprintf(" %s | %s |\n", formatMoney(r.FinalValue), formatPct(r.MaxDrawdown)))
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderPerformanceMarkdown renders sector or company performance rows.
// Rows without data render as "n/a".
func RenderPerformanceMarkdown(title string, rows []analytics.PerformanceRow) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	if len(rows) == 0 {
		sb.WriteString("No price data available.\n")
		return sb.String()
	}
	sb.WriteString("| Name | Ticker | Period | Change |\n")
	sb.WriteString("|------|--------|--------|--------|\n")
	for _, r := range rows {
		change := "n/a"
		if r.OK {
			change = formatFloat(r.Change, 2) + "%"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", r.Name, r.Ticker, r.Period, change))
	}
	sb.WriteString("\n")

	return sb.String()
}
