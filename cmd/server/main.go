// Package main runs the HTTP/WebSocket API:
// - Sweeps: POST /api/sweeps, progress on /ws/sweeps, reports on GET /api/sweeps/{id}
// - Analytics: decision index, GARCH, Monte Carlo, portfolio and sector performance
// - Operations: /healthz, /status and Prometheus /metrics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ticker-strategy-lab/internal/api"
	"ticker-strategy-lab/internal/app"
	"ticker-strategy-lab/internal/config"
	"ticker-strategy-lab/internal/observability"
)

// shutdownTimeout bounds the graceful shutdown after the first signal.
const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file if exists
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("LAB_CONFIG"), "Path to lab.yaml")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	logLevel := flag.String("log-level", "", "Log level (overrides log_level)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of the configured backend")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := app.NewLogger("info", os.Stderr)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *useMemory {
		cfg.Storage.Backend = config.BackendMemory
		cfg.Storage.ClickHouseDSN = ""
	}

	logger := app.NewLogger(cfg.LogLevel, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, cfg, logger, observability.DefaultMetrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer a.Close()

	srv := api.NewServer(api.Options{
		Runner:     a.Runner(a.Provider),
		Provider:   a.Provider,
		SweepStore: a.SweepStore,
		Metrics:    a.Metrics,
		Logger:     &logger,
	})

	started := time.Now()
	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	mux.HandleFunc("GET /status", statusHandler(cfg, started, logger))

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		go func() {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("http shutdown")
			}
		}()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-shutdownCtx.Done():
			if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
				logger.Error().Dur("timeout", shutdownTimeout).Msg("graceful shutdown timed out, forcing exit")
				os.Exit(1)
			}
		case <-done:
			// Normal shutdown completed
		}
	}()

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("backend", cfg.Storage.Backend).
		Msg("starting HTTP server")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("http server")
	}

	// Stop background sweeps before the stores close.
	srv.Close()
	close(done)
	logger.Info().Msg("shutdown complete")
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status   string    `json:"status"`
	Uptime   string    `json:"uptime"`
	Started  time.Time `json:"started"`
	Backend  string    `json:"backend"`
	Provider string    `json:"provider"`
}

func statusHandler(cfg config.Config, started time.Time, logger zerolog.Logger) http.HandlerFunc {
	source := cfg.Provider.BaseURL
	if source == "" {
		source = "csv:" + cfg.Provider.CSVDir
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Status:   "ok",
			Uptime:   time.Since(started).Round(time.Second).String(),
			Started:  started,
			Backend:  cfg.Storage.Backend,
			Provider: source,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warn().Err(err).Msg("encode status")
		}
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
