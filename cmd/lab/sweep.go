package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/grid"
	"ticker-strategy-lab/internal/metrics"
	"ticker-strategy-lab/internal/reporting"
	"ticker-strategy-lab/internal/simulation"
	"ticker-strategy-lab/internal/strategy"
)

// Output formats of sweep reports.
const (
	formatMarkdown = "markdown"
	formatCSV      = "csv"
	formatChart    = "chart"
)

// sweepFlags holds the options shared by every strategy subcommand.
type sweepFlags struct {
	dates       dateFlags
	format      string
	compounding string
	initial     float64
	scorer      string
	penalty     float64
	analytics   bool
	risk        int
}

func (f *sweepFlags) register(cmd *cobra.Command) {
	f.dates.register(cmd)
	fs := cmd.Flags()
	fs.StringVarP(&f.format, "format", "f", formatMarkdown, "report format: markdown, csv or chart (JSON)")
	fs.StringVar(&f.compounding, "compounding", "", "LOG or SIMPLE (strategy default when empty)")
	fs.Float64Var(&f.initial, "initial", 10000, "initial portfolio value")
	fs.StringVar(&f.scorer, "scorer", metrics.ScorerFinalValue, "final_value or drawdown_penalty")
	fs.Float64Var(&f.penalty, "penalty", 0, "drawdown penalty weight for the drawdown_penalty scorer")
	fs.BoolVar(&f.analytics, "analytics", false, "append the indicator section to markdown reports")
	fs.IntVar(&f.risk, "risk", 3, "risk preference 1..5 of the decision index")
}

func newSweepCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evaluate a strategy over its parameter grid",
	}
	cmd.AddCommand(newDipCmd(c), newHedgeCmd(c), newHoldCmd(c), newReportCmd(c))
	return cmd
}

func newDipCmd(c *cli) *cobra.Command {
	var (
		f               sweepFlags
		maxContribution float64
		leverage        float64
		contributionDay int
		maxInjection    float64
	)
	cmd := &cobra.Command{
		Use:   "dip TICKER [TICKER...]",
		Short: "Buy fixed amounts after daily drops beyond a threshold",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := grid.DipBuyGrid(maxContribution)
			if err != nil {
				return err
			}
			cfg := domain.StrategyConfig{
				Type:            domain.StrategyTypeDipBuy,
				Leverage:        leverage,
				ContributionDay: contributionDay,
			}
			if maxInjection > 0 {
				cfg.MaxInjection = &maxInjection
			}
			return c.runSweep(cmd, args, g, cfg, &f)
		},
	}
	f.register(cmd)
	cmd.Flags().Float64Var(&maxContribution, "max-contribution", 1000, "largest contribution of the grid")
	cmd.Flags().Float64Var(&leverage, "leverage", 1, "fixed leverage of the position")
	cmd.Flags().IntVar(&contributionDay, "contribution-day", 10, "day of month the contribution lands")
	cmd.Flags().Float64Var(&maxInjection, "max-injection", 0, "cap on cumulative injections, 0 for none")
	return cmd
}

func newHedgeCmd(c *cli) *cobra.Command {
	var (
		f                       sweepFlags
		maxLeverage, maxInverse int
		position, capital       float64
	)
	cmd := &cobra.Command{
		Use:   "hedge TICKER [TICKER...]",
		Short: "Leveraged long position hedged with an inverse leg",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := grid.HedgeGrid(maxLeverage, maxInverse)
			if err != nil {
				return err
			}
			cfg := domain.StrategyConfig{
				Type:          domain.StrategyTypeHedge,
				PositionValue: position,
				TotalCapital:  capital,
			}
			return c.runSweep(cmd, args, g, cfg, &f)
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&maxLeverage, "max-leverage", 3, "largest long leverage of the grid")
	cmd.Flags().IntVar(&maxInverse, "max-inverse", 3, "largest inverse leverage of the grid")
	cmd.Flags().Float64Var(&position, "position", 10000, "value of the leveraged long position")
	cmd.Flags().Float64Var(&capital, "capital", 20000, "total capital for position and hedge")
	return cmd
}

func newHoldCmd(c *cli) *cobra.Command {
	var (
		f           sweepFlags
		maxLeverage int
	)
	cmd := &cobra.Command{
		Use:   "hold TICKER [TICKER...]",
		Short: "Leveraged buy-and-hold at each leverage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := grid.HoldGrid(maxLeverage)
			if err != nil {
				return err
			}
			return c.runSweep(cmd, args, g, domain.StrategyConfig{Type: domain.StrategyTypeLeveragedHold}, &f)
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&maxLeverage, "max-leverage", 3, "largest leverage of the grid")
	return cmd
}

// runSweep evaluates g for every ticker and writes one report per ticker.
func (c *cli) runSweep(cmd *cobra.Command, tickers []string, g *grid.Grid, cfg domain.StrategyConfig, f *sweepFlags) error {
	if f.format != formatMarkdown && len(tickers) > 1 {
		return fmt.Errorf("--format %s supports a single ticker", f.format)
	}
	switch f.format {
	case formatMarkdown, formatCSV, formatChart:
	default:
		return fmt.Errorf("unknown format %q", f.format)
	}

	cfg.InitialValue = f.initial
	cfg.Compounding = domain.Compounding(strings.ToUpper(f.compounding))
	if _, err := strategy.FromConfig(cfg); err != nil {
		return err
	}
	if _, err := metrics.ScorerByName(f.scorer, f.penalty); err != nil {
		return err
	}
	start, end, err := f.dates.resolve(c.now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := simulation.Request{
		Start:   start,
		End:     end,
		Grid:    g,
		Config:  cfg,
		Scorer:  f.scorer,
		Penalty: f.penalty,
	}
	results, err := a.Runner(c.source(a)).RunMulti(ctx, tickers, req)
	if err != nil {
		return err
	}

	var sb strings.Builder
	for _, res := range results {
		out, err := renderSweep(res, f)
		if err != nil {
			return err
		}
		sb.WriteString(out)
	}
	return c.write(sb.String())
}

func renderSweep(res *simulation.Result, f *sweepFlags) (string, error) {
	switch f.format {
	case formatCSV:
		return reporting.RenderCSV(reporting.Build(res.Series, res.Outcome, res.Top, res.Aggregate).Results)
	case formatChart:
		var best *domain.ScoredResult
		if res.Outcome.HasResult() {
			best = res.Outcome.Best
		}
		data, err := json.MarshalIndent(reporting.BuildChart(res.Series, res.Outcome, best), "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	}

	report := reporting.Build(res.Series, res.Outcome, res.Top, res.Aggregate)
	if f.analytics && res.Series != nil {
		report.Analytics = reporting.BuildAnalytics(res.Series, reporting.AnalyticsOptions{Risk: f.risk})
	}
	return reporting.RenderMarkdown(report), nil
}

func newReportCmd(c *cli) *cobra.Command {
	var (
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "report RUN_ID",
		Short: "Render a stored sweep run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := reporting.NewGenerator(a.SweepStore).Generate(ctx, args[0], limit, nil)
			if err != nil {
				return err
			}
			if format == formatCSV {
				out, err := reporting.RenderCSV(report.Results)
				if err != nil {
					return err
				}
				return c.write(out)
			}
			return c.write(reporting.RenderMarkdown(report))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", simulation.DefaultTopN, "ranked results to include")
	cmd.Flags().StringVarP(&format, "format", "f", formatMarkdown, "markdown or csv")
	return cmd
}
