// Package api serves sweeps and analytics over HTTP and streams sweep
// progress over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/observability"
	"ticker-strategy-lab/internal/provider"
	"ticker-strategy-lab/internal/reporting"
	"ticker-strategy-lab/internal/simulation"
	"ticker-strategy-lab/internal/storage"
)

// Request errors
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// defaultLookback is the history used when a request omits start.
const defaultLookback = 365 * 24 * time.Hour

var validate = validator.New(validator.WithRequiredStructEnabled())

// Options configures a Server.
type Options struct {
	Runner     *simulation.Runner
	Provider   provider.Provider
	SweepStore storage.SweepStore
	Metrics    *observability.Metrics
	Logger     *zerolog.Logger
	// MetricsHandler serves /metrics; nil uses the default registry.
	MetricsHandler http.Handler
	Clock          func() time.Time
	// JobTTL and MaxJobs bound how long finished sweep jobs stay queryable.
	JobTTL  time.Duration
	MaxJobs int
}

// Server holds the HTTP handlers and the sweep job registry.
type Server struct {
	runner    *simulation.Runner
	provider  provider.Provider
	generator *reporting.Generator
	jobs      *jobRegistry
	metrics   *observability.Metrics
	logger    zerolog.Logger
	now       func() time.Time
	mux       *http.ServeMux

	// background sweeps run under ctx until Close
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// NewServer creates a server and registers its routes.
func NewServer(opts Options) *Server {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	s := &Server{
		runner:   opts.Runner,
		provider: opts.Provider,
		jobs:     newJobRegistry(opts.JobTTL, opts.MaxJobs, now),
		metrics:  opts.Metrics,
		logger:   logger,
		now:      now,
		mux:      http.NewServeMux(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if opts.SweepStore != nil {
		s.generator = reporting.NewGenerator(opts.SweepStore)
	}

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = observability.Handler()
	}

	s.handle("POST /api/sweeps", s.handleCreateSweep)
	s.handle("GET /api/sweeps/{id}", s.handleGetSweep)
	s.handle("GET /api/analytics", s.handleAnalytics)
	s.handle("GET /api/montecarlo", s.handleMonteCarlo)
	s.handle("GET /api/garch", s.handleGarch)
	s.handle("GET /api/forecast", s.handleForecast)
	s.handle("POST /api/portfolio", s.handlePortfolio)
	s.handle("GET /api/sectors", s.handleSectors)
	s.mux.HandleFunc("GET /ws/sweeps", s.handleSweepStream)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.Handle("GET /metrics", metricsHandler)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close cancels running sweeps and waits for them to finish.
func (s *Server) Close() {
	s.cancel()
	s.running.Wait()
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle registers h under pattern, mapping returned errors to status codes
// and counting requests per route.
func (s *Server) handle(pattern string, h handlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if err := h(rec, r); err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				s.logger.Error().Err(err).Str("route", pattern).Msg("request failed")
			}
			writeJSON(rec, status, errorResponse{Error: err.Error()})
		}
		s.metrics.RecordRequest(pattern, strconv.Itoa(rec.status))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound), errors.Is(err, provider.ErrNoData):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// number marshals NaN and infinities as null.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func numbers(values []float64) []number {
	out := make([]number, len(values))
	for i, v := range values {
		out[i] = number(v)
	}
	return out
}

// query helpers

func queryString(r *http.Request, name string, required bool) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" && required {
		return "", badRequest("missing %s", name)
	}
	return v, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s: %v", name, err)
	}
	return n, nil
}

func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, badRequest("%s: %v", name, err)
	}
	return f, nil
}

func queryUint(r *http.Request, name string, def uint64) (uint64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, badRequest("%s: %v", name, err)
	}
	return n, nil
}

func parseDate(name, v string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		return time.Time{}, badRequest("%s must be %s", name, domain.DateLayout)
	}
	return t, nil
}

// dateRange parses start/end, defaulting to the year before today.
func (s *Server) dateRange(start, end string) (time.Time, time.Time, error) {
	to := domain.TruncateDay(s.now())
	if end != "" {
		t, err := parseDate("end", end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	from := to.Add(-defaultLookback)
	if start != "" {
		t, err := parseDate("start", start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, badRequest("start after end")
	}
	return from, to, nil
}

// fetchQuery loads the series named by the ticker/start/end query.
func (s *Server) fetchQuery(r *http.Request) (*domain.PriceSeries, error) {
	ticker, err := queryString(r, "ticker", true)
	if err != nil {
		return nil, err
	}
	start, end, err := s.dateRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		return nil, err
	}
	return s.provider.Fetch(r.Context(), ticker, start, end)
}
