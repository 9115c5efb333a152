package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ticker-strategy-lab/internal/app"
	"ticker-strategy-lab/internal/config"
	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/provider"
)

// cli carries the persistent flags and the loaded configuration.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	outputPath string
	fromStore  bool

	cfg    config.Config
	logger zerolog.Logger
	now    func() time.Time
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr, now: time.Now}

	root := &cobra.Command{
		Use:           "lab",
		Short:         "Backtest leveraged strategy grids and analyze daily closes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "path to lab.yaml (defaults apply when empty)")
	pf.StringVar(&c.logLevel, "log-level", "", "override the configured log level")
	pf.StringVarP(&c.outputPath, "output", "o", "", "write the report to a file instead of stdout")
	pf.BoolVar(&c.fromStore, "from-store", false, "read prices from the price store instead of the provider")

	root.AddCommand(
		newSweepCmd(c),
		newAnalyzeCmd(c),
		newGarchCmd(c),
		newForecastCmd(c),
		newMonteCarloCmd(c),
		newPortfolioCmd(c),
		newSectorsCmd(c),
		newIngestCmd(c),
		newConfigCmd(c),
	)
	return root
}

// load reads the config file and builds the logger.
func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	c.cfg = cfg
	c.logger = app.NewLogger(cfg.LogLevel, c.stderr)
	return nil
}

// open connects the configured stores and price source.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	return app.Open(ctx, c.cfg, c.logger, nil)
}

// source returns the price provider selected by --from-store.
func (c *cli) source(a *app.App) provider.Provider {
	if c.fromStore {
		return a.StoreProvider()
	}
	return a.Provider
}

// write sends a rendered report to --output or stdout.
func (c *cli) write(content string) error {
	if c.outputPath == "" {
		_, err := io.WriteString(c.stdout, content)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(c.outputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", c.outputPath, err)
	}
	c.logger.Info().Str("path", c.outputPath).Msg("report written")
	return nil
}

// dateFlags are the --start/--end flags shared by every price command.
type dateFlags struct {
	start, end string
	lookback   int
}

func (d *dateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.start, "start", "", "first day (YYYY-MM-DD), defaults to --lookback days before --end")
	cmd.Flags().StringVar(&d.end, "end", "", "last day (YYYY-MM-DD), defaults to today")
	cmd.Flags().IntVar(&d.lookback, "lookback", 365, "days of history when --start is empty")
}

func (d *dateFlags) resolve(now time.Time) (time.Time, time.Time, error) {
	end := domain.TruncateDay(now)
	if d.end != "" {
		t, err := time.Parse(domain.DateLayout, d.end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q: %w", d.end, err)
		}
		end = t
	}
	start := end.AddDate(0, 0, -d.lookback)
	if d.start != "" {
		t, err := time.Parse(domain.DateLayout, d.start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q: %w", d.start, err)
		}
		start = t
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("--start %s is after --end %s",
			start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	}
	return start, end, nil
}
