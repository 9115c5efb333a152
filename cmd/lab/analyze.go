package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"ticker-strategy-lab/internal/app"
	"ticker-strategy-lab/internal/decision"
	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/forecast"
	"ticker-strategy-lab/internal/garch"
	"ticker-strategy-lab/internal/montecarlo"
	"ticker-strategy-lab/internal/reporting"
)

// fetch opens the app and loads one ticker over the flag dates.
func (c *cli) fetch(ctx context.Context, ticker string, dates *dateFlags) (*app.App, *domain.PriceSeries, error) {
	start, end, err := dates.resolve(c.now())
	if err != nil {
		return nil, nil, err
	}
	a, err := c.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	series, err := c.source(a).Fetch(ctx, ticker, start, end)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, series, nil
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	var (
		dates        dateFlags
		opts         reporting.AnalyticsOptions
		decisionOnly bool
	)
	cmd := &cobra.Command{
		Use:   "analyze TICKER",
		Short: "Decision index, volatility, GARCH and Monte Carlo summary of a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, series, err := c.fetch(cmd.Context(), args[0], &dates)
			if err != nil {
				return err
			}
			defer a.Close()

			if decisionOnly {
				res, err := decision.Index(series, opts.Risk)
				if err != nil {
					return err
				}
				return c.write(decision.RenderMarkdown(res))
			}
			if opts.Seed == 0 {
				opts.Seed = uint64(c.now().UnixNano())
			}
			return c.write(reporting.RenderAnalyticsMarkdown(reporting.BuildAnalytics(series, opts)))
		},
	}
	dates.register(cmd)
	fs := cmd.Flags()
	fs.IntVar(&opts.Risk, "risk", 3, "risk preference 1..5")
	fs.IntVar(&opts.ConsecutiveDays, "days", 3, "run length of the up/down probabilities")
	fs.IntVar(&opts.Horizon, "horizon", garch.DefaultHorizon, "GARCH forecast days")
	fs.IntVar(&opts.MCDays, "mc-days", montecarlo.DefaultDays, "Monte Carlo horizon")
	fs.IntVar(&opts.MCPaths, "mc-paths", montecarlo.DefaultPaths, "Monte Carlo paths")
	fs.Uint64Var(&opts.Seed, "seed", 0, "Monte Carlo seed, 0 seeds from the clock")
	fs.BoolVar(&decisionOnly, "decision", false, "print only the decision index breakdown")
	return cmd
}

func newGarchCmd(c *cli) *cobra.Command {
	var (
		dates      dateFlags
		p, q       int
		horizon    int
		selectBest bool
	)
	cmd := &cobra.Command{
		Use:   "garch TICKER",
		Short: "Fit a GARCH(p,q) model and forecast volatility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, series, err := c.fetch(cmd.Context(), args[0], &dates)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				rep *garch.Report
				sel *garch.Selection
			)
			if selectBest {
				rep, sel, err = garch.AnalyzeBest(series, p, q, horizon)
			} else {
				rep, err = garch.Analyze(series, p, q, horizon)
			}
			if err != nil {
				return err
			}
			return c.write(reporting.RenderGarchMarkdown(rep, sel))
		},
	}
	dates.register(cmd)
	fs := cmd.Flags()
	fs.IntVarP(&p, "p", "p", 1, "ARCH order (upper bound with --select)")
	fs.IntVarP(&q, "q", "q", 1, "GARCH order (upper bound with --select)")
	fs.IntVar(&horizon, "horizon", garch.DefaultHorizon, "forecast days")
	fs.BoolVar(&selectBest, "select", false, "pick the order with the lowest AIC")
	return cmd
}

func newForecastCmd(c *cli) *cobra.Command {
	var (
		dates dateFlags
		cfg   forecast.Config
	)
	cmd := &cobra.Command{
		Use:   "forecast TICKER",
		Short: "Project month-end closes from trend and yearly/weekly seasonality",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, series, err := c.fetch(cmd.Context(), args[0], &dates)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := forecast.Analyze(series, cfg)
			if err != nil {
				return err
			}
			return c.write(reporting.RenderForecastMarkdown(rep))
		},
	}
	dates.register(cmd)
	fs := cmd.Flags()
	fs.IntVar(&cfg.Months, "months", forecast.DefaultMonths, "month ends to forecast")
	fs.IntVar(&cfg.YearlyOrder, "yearly-order", forecast.DefaultYearlyOrder, "Fourier order of the yearly term")
	fs.IntVar(&cfg.WeeklyOrder, "weekly-order", forecast.DefaultWeeklyOrder, "Fourier order of the weekly term")
	fs.Float64Var(&cfg.Interval, "interval", forecast.DefaultInterval, "coverage of the uncertainty band")
	return cmd
}

func newMonteCarloCmd(c *cli) *cobra.Command {
	var (
		dates             dateFlags
		days, paths, bins int
		seed              uint64
	)
	cmd := &cobra.Command{
		Use:   "montecarlo TICKER",
		Short: "Simulate future closes from the historical log returns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, series, err := c.fetch(cmd.Context(), args[0], &dates)
			if err != nil {
				return err
			}
			defer a.Close()

			if seed == 0 {
				seed = uint64(c.now().UnixNano())
			}
			began := time.Now()
			res, err := montecarlo.FromSeries(series, days, paths, seed)
			if err != nil {
				return err
			}
			c.logger.Debug().Int("paths", paths).Dur("duration", time.Since(began)).Msg("simulation finished")
			return c.write(reporting.RenderMonteCarloMarkdown(series.Ticker(), res, bins))
		},
	}
	dates.register(cmd)
	fs := cmd.Flags()
	fs.IntVar(&days, "days", montecarlo.DefaultDays, "days to simulate")
	fs.IntVar(&paths, "paths", montecarlo.DefaultPaths, "number of paths")
	fs.IntVar(&bins, "bins", 20, "histogram bins")
	fs.Uint64Var(&seed, "seed", 0, "random seed, 0 seeds from the clock")
	return cmd
}
