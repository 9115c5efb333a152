package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordSweep(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordSweep("DIP_BUY", "OK", 100, 4, 0.2)
	m.RecordSweep("DIP_BUY", "OK", 50, 1, 0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepsTotal.WithLabelValues("DIP_BUY", "OK")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.CombinationsEvaluated.WithLabelValues("DIP_BUY")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.CombinationsInfeasible.WithLabelValues("DIP_BUY")))
}

func TestMetrics_RecordFetchAndCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordFetch("http", 0.5, nil)
	m.RecordFetch("http", 0.5, errors.New("boom"))
	m.RecordCache("memory", true)
	m.RecordCache("memory", false)
	m.RecordCache("memory", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("memory")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("memory")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordSweep("HEDGE", "OK", 1, 0, 0)
	m.RecordFetch("http", 0, nil)
	m.RecordCache("memory", true)
	m.RecordDBQuery("postgres", "insert", 0, nil)
	m.RecordRequest("/healthz", "200")
}
