// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Sweep metrics
	SweepsTotal            *prometheus.CounterVec
	SweepDuration          *prometheus.HistogramVec
	CombinationsEvaluated  *prometheus.CounterVec
	CombinationsInfeasible *prometheus.CounterVec
	ActiveSweeps           prometheus.Gauge

	// Provider metrics
	FetchLatency *prometheus.HistogramVec
	FetchErrors  *prometheus.CounterVec
	CacheHits    *prometheus.CounterVec
	CacheMisses  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	HTTPRequests       *prometheus.CounterVec
	WSClientsConnected prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "ticker_strategy_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Sweep metrics
		SweepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total number of sweeps by strategy and outcome status",
		}, []string{"strategy", "status"}),
		SweepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Sweep evaluation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"strategy"}),
		CombinationsEvaluated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "combinations_evaluated_total",
			Help:      "Total number of grid combinations simulated",
		}, []string{"strategy"}),
		CombinationsInfeasible: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "combinations_infeasible_total",
			Help:      "Total number of grid combinations excluded as infeasible",
		}, []string{"strategy"}),
		ActiveSweeps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "active",
			Help:      "Number of sweeps currently running",
		}),

		// Provider metrics
		FetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_latency_seconds",
			Help:      "Price history fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed price history fetches",
		}, []string{"provider"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of price series cache hits",
		}, []string{"cache"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of price series cache misses",
		}, []string{"cache"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
		WSClientsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "ws_clients_connected",
			Help:      "Number of connected progress stream clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler exposing metrics gathered from g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordSweep records a finished sweep.
func (m *Metrics) RecordSweep(strategy, status string, evaluated, infeasible int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SweepsTotal.WithLabelValues(strategy, status).Inc()
	m.SweepDuration.WithLabelValues(strategy).Observe(durationSeconds)
	m.CombinationsEvaluated.WithLabelValues(strategy).Add(float64(evaluated))
	m.CombinationsInfeasible.WithLabelValues(strategy).Add(float64(infeasible))
}

// RecordFetch records a provider fetch.
func (m *Metrics) RecordFetch(provider string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.FetchLatency.WithLabelValues(provider).Observe(seconds)
	if err != nil {
		m.FetchErrors.WithLabelValues(provider).Inc()
	}
}

// RecordCache records a cache lookup.
func (m *Metrics) RecordCache(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
	} else {
		m.CacheMisses.WithLabelValues(cache).Inc()
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRequest records an API request.
func (m *Metrics) RecordRequest(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}
