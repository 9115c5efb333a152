package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ticker-strategy-lab/internal/analytics"
	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/portfolio"
	"ticker-strategy-lab/internal/provider"
	"ticker-strategy-lab/internal/reporting"
)

func newPortfolioCmd(c *cli) *cobra.Command {
	var (
		dates    dateFlags
		leverage float64
		initial  float64
	)
	cmd := &cobra.Command{
		Use:   "portfolio TICKER TICKER [TICKER...]",
		Short: "Mean-variance allocations for risk factors 1..10, ranked by leveraged value",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := dates.resolve(c.now())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			src := c.source(a)
			series := make([]*domain.PriceSeries, len(args))
			eg, egCtx := errgroup.WithContext(ctx)
			for i, ticker := range args {
				eg.Go(func() error {
					s, err := src.Fetch(egCtx, ticker, start, end)
					if err != nil {
						return fmt.Errorf("%s: %w", ticker, err)
					}
					series[i] = s
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}

			returns, err := portfolio.ReturnsMatrix(series...)
			if err != nil {
				return err
			}
			sweep, err := portfolio.SweepRiskFactors(returns, leverage, initial)
			if err != nil {
				return err
			}
			return c.write(reporting.RenderPortfolioMarkdown(sweep))
		},
	}
	dates.register(cmd)
	cmd.Flags().Float64Var(&leverage, "leverage", 1, "leverage applied to the portfolio return")
	cmd.Flags().Float64Var(&initial, "initial", 10000, "initial portfolio value")
	return cmd
}

func newSectorsCmd(c *cli) *cobra.Command {
	var (
		asOf   string
		sector string
		period string
	)
	cmd := &cobra.Command{
		Use:   "sectors",
		Short: "Sector ETF performance, or the ranked constituents of one sector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := domain.TruncateDay(c.now())
			if asOf != "" {
				t, err := time.Parse(domain.DateLayout, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q: %w", asOf, err)
				}
				day = t
			}
			periods := analytics.StandardPeriods(day)

			var (
				companies []analytics.Company
				tickers   []string
			)
			if sector != "" {
				companies = analytics.Constituents(sector)
				if len(companies) == 0 {
					return fmt.Errorf("unknown sector %q", sector)
				}
				for _, co := range companies {
					tickers = append(tickers, co.Ticker)
				}
			} else {
				tickers = analytics.SectorETFs()
			}

			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			src := c.source(a)
			from := day.AddDate(0, 0, -400)
			series := make(map[string]*domain.PriceSeries, len(tickers))
			for _, ticker := range tickers {
				s, err := src.Fetch(ctx, ticker, from, day)
				if errors.Is(err, provider.ErrNoData) {
					c.logger.Warn().Str("ticker", ticker).Msg("no price data")
					continue
				}
				if err != nil {
					return err
				}
				series[ticker] = s
			}

			if sector == "" {
				rows := analytics.SectorPerformance(series, day, periods)
				return c.write(reporting.RenderPerformanceMarkdown("Sector Performance as of "+day.Format(domain.DateLayout), rows))
			}

			for _, p := range periods {
				if p.Name == period {
					rows := analytics.RankCompanies(companies, series, day, p)
					return c.write(reporting.RenderPerformanceMarkdown(fmt.Sprintf("%s: %s performance", sector, p.Name), rows))
				}
			}
			return fmt.Errorf("unknown period %q", period)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation day (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&sector, "sector", "", "rank the constituents of this sector")
	cmd.Flags().StringVar(&period, "period", "1M", "lookback for --sector: 1W, 2W, 1M, 3M, 6M, 1Y or YTD")
	return cmd
}
