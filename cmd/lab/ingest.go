package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ticker-strategy-lab/internal/config"
	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/provider"
	"ticker-strategy-lab/internal/storage"
)

func newIngestCmd(c *cli) *cobra.Command {
	var (
		dates   dateFlags
		tickers []string
		ticker  string
	)
	cmd := &cobra.Command{
		Use:   "ingest [FILE.csv...]",
		Short: "Load daily closes into the price store from CSV files or the provider",
		Long: "Each CSV file needs date and close columns; the ticker is the file name\n" +
			"without extension unless --ticker is given. With --tickers the histories are\n" +
			"fetched from the configured provider instead. Days already stored are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(tickers) == 0 {
				return fmt.Errorf("give CSV files or --tickers")
			}
			if ticker != "" && len(args) != 1 {
				return fmt.Errorf("--ticker needs exactly one file")
			}

			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, path := range args {
				name := ticker
				if name == "" {
					name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				points, err := readCSVFile(path)
				if err != nil {
					return err
				}
				if err := c.ingest(ctx, a.PriceStore, strings.ToUpper(name), points); err != nil {
					return err
				}
			}

			if len(tickers) > 0 {
				start, end, err := dates.resolve(c.now())
				if err != nil {
					return err
				}
				for _, t := range tickers {
					series, err := a.Provider.Fetch(ctx, t, start, end)
					if err != nil {
						return fmt.Errorf("fetch %s: %w", t, err)
					}
					if err := c.ingest(ctx, a.PriceStore, t, series.Points()); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	dates.register(cmd)
	cmd.Flags().StringSliceVar(&tickers, "tickers", nil, "fetch these tickers from the provider")
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker of a single CSV file")
	return cmd
}

func readCSVFile(path string) ([]domain.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	points, err := provider.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}

// ingest stores the points of ticker that are not stored yet.
func (c *cli) ingest(ctx context.Context, store storage.PriceSeriesStore, ticker string, points []domain.PricePoint) error {
	series, err := domain.NewPriceSeries(ticker, points)
	if err != nil {
		return fmt.Errorf("%s: %w", ticker, err)
	}
	if series.Len() == 0 {
		c.logger.Warn().Str("ticker", ticker).Msg("no points to ingest")
		return nil
	}

	existing, err := store.GetRange(ctx, ticker, series.First().Date, series.Last().Date)
	if err != nil {
		return fmt.Errorf("read stored %s: %w", ticker, err)
	}
	stored := make(map[string]bool, len(existing))
	for _, p := range existing {
		stored[p.Date.Format(domain.DateLayout)] = true
	}

	var fresh []domain.PricePoint
	for _, p := range series.Points() {
		if !stored[p.Date.Format(domain.DateLayout)] {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) > 0 {
		if err := store.InsertBulk(ctx, ticker, fresh); err != nil {
			return fmt.Errorf("store %s: %w", ticker, err)
		}
	}

	c.logger.Info().
		Str("ticker", ticker).
		Int("inserted", len(fresh)).
		Int("skipped", series.Len()-len(fresh)).
		Msg("ingested")
	_, err = fmt.Fprintf(c.stdout, "%s: %d inserted, %d already stored\n", ticker, len(fresh), series.Len()-len(fresh))
	return err
}

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create lab.yaml",
	}

	initCmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		// the file to load does not exist yet
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "lab.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(c.stdout, "wrote %s\n", path)
			return err
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(c.cfg)
			if err != nil {
				return err
			}
			return c.write(string(data))
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
