// Package app wires configured stores, providers and the sweep runner for
// the command line and the server.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"ticker-strategy-lab/internal/config"
	"ticker-strategy-lab/internal/observability"
	"ticker-strategy-lab/internal/provider"
	"ticker-strategy-lab/internal/simulation"
	"ticker-strategy-lab/internal/storage"
	chstore "ticker-strategy-lab/internal/storage/clickhouse"
	"ticker-strategy-lab/internal/storage/memory"
	"ticker-strategy-lab/internal/storage/migrations"
	pgstore "ticker-strategy-lab/internal/storage/postgres"
	"ticker-strategy-lab/internal/storage/sqlite"
)

// App holds every long-lived component built from a Config.
type App struct {
	Config     config.Config
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
	SweepStore storage.SweepStore
	PriceStore storage.PriceSeriesStore
	Provider   provider.Provider // network or CSV source behind the caches

	cacheDB *sqlite.DB // nil unless cache.sqlite_path is set
	closers []func()
}

// NewLogger returns a console logger at level. Unknown levels fall back to info.
func NewLogger(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

// Open connects the configured backends. metrics may be nil.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openProvider(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openStores creates the sweep and price stores for the configured backend.
func (a *App) openStores(ctx context.Context) error {
	sc := a.Config.Storage

	switch sc.Backend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, sc.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		pool.SetMetrics(a.Metrics)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		a.SweepStore = pgstore.NewSweepStore(pool)

	case config.BackendClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, sc.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		a.SweepStore = chstore.NewSweepStore(conn)
		a.PriceStore = chstore.NewPriceSeriesStore(conn)

	default:
		a.SweepStore = memory.NewSweepStore()
	}

	if path := a.Config.Cache.SQLitePath; path != "" {
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("open price cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.cacheDB = db
	}

	// Price histories live in ClickHouse whenever a DSN is available.
	if a.PriceStore == nil && sc.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, sc.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		a.PriceStore = chstore.NewPriceSeriesStore(conn)
	}
	// Without ClickHouse, ingested prices persist next to the sqlite cache.
	if a.PriceStore == nil && a.cacheDB != nil {
		a.PriceStore = sqlite.NewPriceSeriesStore(a.cacheDB)
	}
	if a.PriceStore == nil {
		a.PriceStore = memory.NewPriceSeriesStore()
	}

	a.Logger.Debug().Str("backend", sc.Backend).Msg("stores ready")
	return nil
}

// openProvider builds source -> sqlite cache -> in-process cache.
func (a *App) openProvider() error {
	pc, cc := a.Config.Provider, a.Config.Cache

	var p provider.Provider
	if pc.BaseURL != "" {
		p = provider.NewHTTPProvider(pc.BaseURL,
			provider.WithTimeout(pc.Timeout),
			provider.WithMaxRetries(pc.MaxRetries),
			provider.WithRateLimit(pc.RateLimit, pc.Burst),
			provider.WithLogger(a.Logger),
			provider.WithMetrics(a.Metrics),
		)
	} else {
		p = provider.NewCSVProvider(pc.CSVDir)
	}

	if a.cacheDB != nil {
		p = provider.NewPersistentProvider(p, a.cacheDB, cc.MaxAge, a.Logger, a.Metrics)
	}

	if cc.TTL > 0 {
		p = provider.NewCachedProvider(p,
			provider.WithTTL(cc.TTL),
			provider.WithMaxEntries(cc.MaxEntries),
			provider.WithCacheMetrics(a.Metrics),
		)
	}

	a.Provider = p
	return nil
}

// StoreProvider reads histories previously ingested into the price store.
func (a *App) StoreProvider() provider.Provider {
	return provider.NewStoreProvider(a.PriceStore)
}

// Runner returns a sweep runner over p that persists into the sweep store.
func (a *App) Runner(p provider.Provider) *simulation.Runner {
	logger := a.Logger
	return simulation.NewRunner(simulation.RunnerOptions{
		Provider:    p,
		ResultStore: a.SweepStore,
		Metrics:     a.Metrics,
		Logger:      &logger,
		Parallelism: a.Config.Evaluator.Parallelism,
		TopN:        a.Config.Evaluator.TopN,

		MaxCombinations:   a.Config.Evaluator.MaxCombinations,
		TickerParallelism: a.Config.Evaluator.TickerParallelism,
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
