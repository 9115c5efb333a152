package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/grid"
	"ticker-strategy-lab/internal/observability"
	"ticker-strategy-lab/internal/provider"
	"ticker-strategy-lab/internal/simulation"
	"ticker-strategy-lab/internal/storage/memory"
)

var day0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// randomWalk builds n closes from a seeded log-normal walk.
func randomWalk(ticker string, seed uint64, n int) *domain.PriceSeries {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price *= math.Exp(0.0005 + 0.015*rng.NormFloat64())
		closes[i] = price
	}
	s, err := domain.DailySeries(ticker, day0, closes)
	if err != nil {
		panic(err)
	}
	return s
}

type testEnv struct {
	server *httptest.Server
	store  *memory.SweepStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	data := map[string]*domain.PriceSeries{
		"SPY": randomWalk("SPY", 1, 300),
		"QQQ": randomWalk("QQQ", 2, 300),
		"TLT": randomWalk("TLT", 3, 300),
	}
	prov := provider.Func(func(_ context.Context, ticker string, start, end time.Time) (*domain.PriceSeries, error) {
		s, ok := data[ticker]
		if !ok {
			return nil, fmt.Errorf("%w: %s", provider.ErrNoData, ticker)
		}
		window := s.Between(start, end)
		if window.Len() == 0 {
			return nil, fmt.Errorf("%w: %s", provider.ErrNoData, ticker)
		}
		return window, nil
	})

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("test", reg)
	store := memory.NewSweepStore()
	runner := simulation.NewRunner(simulation.RunnerOptions{
		Provider:    prov,
		ResultStore: store,
		Metrics:     m,
		Parallelism: 2,

		MaxCombinations: 1000,
	})

	srv := NewServer(Options{
		Runner:         runner,
		Provider:       prov,
		SweepStore:     store,
		Metrics:        m,
		MetricsHandler: observability.HandlerFor(reg),
		Clock:          func() time.Time { return day0.AddDate(0, 0, 299) },
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return &testEnv{server: ts, store: store}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (e *testEnv) post(t *testing.T, path string, v any) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func holdRequest() SweepRequest {
	return SweepRequest{
		Ticker:       "SPY",
		Strategy:     "hold",
		Start:        "2023-01-01",
		End:          "2023-10-27",
		MaxLeverage:  3,
		InitialValue: 1000,
	}
}

func (e *testEnv) startSweep(t *testing.T, req SweepRequest) createSweepResponse {
	t.Helper()
	resp, body := e.post(t, "/api/sweeps", req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	var created createSweepResponse
	require.NoError(t, json.Unmarshal(body, &created))
	return created
}

func (e *testEnv) waitSweep(t *testing.T, jobID string) map[string]any {
	t.Helper()
	var out map[string]any
	require.Eventually(t, func() bool {
		_, body := e.get(t, "/api/sweeps/"+jobID)
		out = nil
		if err := json.Unmarshal(body, &out); err != nil {
			return false
		}
		return out["state"] != string(JobRunning)
	}, 10*time.Second, 20*time.Millisecond)
	return out
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestCreateSweep_RunsToCompletion(t *testing.T) {
	e := newTestEnv(t)
	created := e.startSweep(t, holdRequest())
	assert.NotEmpty(t, created.JobID)
	assert.NotEmpty(t, created.RunID)
	assert.Equal(t, 3, created.GridSize)

	out := e.waitSweep(t, created.JobID)
	require.Equal(t, string(JobDone), out["state"])

	outcome := out["outcome"].(map[string]any)
	assert.Equal(t, string(domain.OutcomeOK), outcome["status"])
	assert.Equal(t, created.RunID, outcome["run_id"])
	assert.Len(t, out["results"], 3)

	chart := out["chart"].(map[string]any)
	assert.Equal(t, len(chart["closes"].([]any)), len(chart["values"].([]any)))

	// The run is persisted and readable by run ID.
	resp, body := e.get(t, "/api/sweeps/"+created.RunID)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var stored sweepResponse
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.Equal(t, domain.OutcomeOK, stored.Outcome.Status)
	assert.Len(t, stored.Results, 3)
	require.NotNil(t, stored.Outcome.Best)
	assert.Equal(t, 1, stored.Outcome.Best.Rank)
}

func TestCreateSweep_Markdown(t *testing.T) {
	e := newTestEnv(t)
	created := e.startSweep(t, holdRequest())
	e.waitSweep(t, created.JobID)

	resp, body := e.get(t, "/api/sweeps/"+created.JobID+"?format=markdown")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "# Strategy Sweep Report: SPY")
}

func TestCreateSweep_InsufficientData(t *testing.T) {
	e := newTestEnv(t)
	req := holdRequest()
	req.Ticker = "NOPE"
	created := e.startSweep(t, req)

	out := e.waitSweep(t, created.JobID)
	require.Equal(t, string(JobDone), out["state"])
	outcome := out["outcome"].(map[string]any)
	assert.Equal(t, string(domain.OutcomeInsufficientData), outcome["status"])
	assert.Nil(t, outcome["best"])
}

func TestCreateSweep_BadRequests(t *testing.T) {
	e := newTestEnv(t)

	cases := map[string]SweepRequest{
		"unknown strategy": {Ticker: "SPY", Strategy: "moon", InitialValue: 1000},
		"missing ticker":   {Strategy: "hold", InitialValue: 1000},
		"no initial value": {Ticker: "SPY", Strategy: "hold"},
		"bad date":         {Ticker: "SPY", Strategy: "hold", InitialValue: 1000, Start: "01/02/2023"},
		"hedge w/o capital": {
			Ticker: "SPY", Strategy: "hedge", PositionValue: 1000,
		},
		"grid overflows": {
			Ticker: "SPY", Strategy: "hold", InitialValue: 1000,
			Dimensions: []grid.Dimension{
				{Name: "leverage", Range: grid.Range{Min: 0, Max: 99999, Step: 1}},
				{Name: "a", Range: grid.Range{Min: 0, Max: 99999, Step: 1}},
				{Name: "b", Range: grid.Range{Min: 0, Max: 99999, Step: 1}},
				{Name: "c", Range: grid.Range{Min: 0, Max: 99999, Step: 1}},
			},
		},
		"grid over limit": {
			Ticker: "SPY", Strategy: "hold", InitialValue: 1000,
			Dimensions: []grid.Dimension{
				{Name: "leverage", Range: grid.Range{Min: 1, Max: 2000, Step: 1}},
			},
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp, body := e.post(t, "/api/sweeps", req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
		})
	}

	resp, err := http.Post(e.server.URL+"/api/sweeps", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSweep_NotFound(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.get(t, "/api/sweeps/does-not-exist")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSweepStream(t *testing.T) {
	e := newTestEnv(t)
	created := e.startSweep(t, holdRequest())

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/sweeps?job=" + created.JobID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var final Event
	for {
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, created.JobID, ev.JobID)
		if ev.Type != EventProgress {
			final = ev
			break
		}
		require.NotNil(t, ev.Progress)
		assert.Equal(t, 3, ev.Progress.Total)
	}
	assert.Equal(t, EventDone, final.Type)
	require.NotNil(t, final.Outcome)
	assert.Equal(t, domain.OutcomeOK, final.Outcome.Status)
}

func TestSweepStream_UnknownJob(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.get(t, "/ws/sweeps?job=missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalytics(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/api/analytics?ticker=SPY&risk=2")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out analyticsResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "SPY", out.Ticker)
	assert.Len(t, out.Closes, 300)
	assert.Len(t, out.Indicators.RSI, 300)
	require.NotNil(t, out.Decision)
	assert.Equal(t, 2, out.Decision.Risk)
	assert.Len(t, out.Decision.Components, 7)
	require.NotNil(t, out.Volatility)
	assert.Equal(t, 3, out.Volatility.ConsecutiveDays)
}

func TestAnalytics_Errors(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.get(t, "/api/analytics")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.get(t, "/api/analytics?ticker=SPY&risk=9")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.get(t, "/api/analytics?ticker=NOPE")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalytics_Markdown(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/api/analytics?ticker=SPY&format=markdown")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "## Analytics: SPY")
	assert.Contains(t, string(body), "### Decision Index")
}

func TestMonteCarlo_Reproducible(t *testing.T) {
	e := newTestEnv(t)
	path := "/api/montecarlo?ticker=SPY&days=20&paths=50&seed=9&bins=10"

	resp, first := e.get(t, path)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(first))
	_, second := e.get(t, path)
	assert.JSONEq(t, string(first), string(second))

	var out monteCarloResponse
	require.NoError(t, json.Unmarshal(first, &out))
	assert.Equal(t, 20, out.Days)
	assert.Len(t, out.Histogram, 10)
	assert.Len(t, out.Sample, sampleLimit)

	total := 0
	for _, b := range out.Histogram {
		total += b.Count
	}
	assert.Equal(t, 50, total)
}

func TestMonteCarlo_InvalidInput(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.get(t, "/api/montecarlo?ticker=SPY&paths=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGarch(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/api/garch?ticker=SPY&horizon=10")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out garchResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, out.P)
	assert.Equal(t, 1, out.Q)
	assert.Len(t, out.Forecast, 10)
	assert.Len(t, out.ForecastDates, 10)
	assert.Len(t, out.Volatility, 299)
	assert.Less(t, out.Persistence, 1.0)

	resp, _ = e.get(t, "/api/garch?ticker=SPY&p=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGarch_Select(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/api/garch?ticker=SPY&p=2&q=1&select=true")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out garchResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Candidates, 2)
}

func TestForecast(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/api/forecast?ticker=SPY&months=3")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out forecastResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "SPY", out.Ticker)
	assert.InDelta(t, 0.8, out.Interval, 1e-9)
	require.Len(t, out.Forecast, 3)
	// 300 closes from 2023-01-01 end on 2023-10-27
	assert.Equal(t, "2023-10-31", out.Forecast[0].Date)
	for _, p := range out.Forecast {
		assert.LessOrEqual(t, p.Lower, p.Yhat)
		assert.GreaterOrEqual(t, p.Upper, p.Yhat)
	}
	assert.Len(t, out.Weekly, 7)
	assert.Empty(t, out.Yearly, "yearly term needs a full year of history")

	for _, q := range []string{"interval=1.5", "months=-1", "interval=abc"} {
		resp, _ = e.get(t, "/api/forecast?ticker=SPY&"+q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestPortfolio_Sweep(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.post(t, "/api/portfolio", PortfolioRequest{
		Tickers:  []string{"SPY", "QQQ", "TLT"},
		Leverage: 2,
		Initial:  1000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out portfolioResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Allocations, 10)

	for _, a := range out.Allocations {
		sum := 0.0
		for _, w := range a.Weights {
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
	assert.Len(t, out.Values, len(out.Dates))
}

func TestPortfolio_SingleRiskFactor(t *testing.T) {
	e := newTestEnv(t)
	rf := 10.0
	resp, body := e.post(t, "/api/portfolio", PortfolioRequest{Tickers: []string{"SPY", "QQQ"}, RiskFactor: &rf})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out portfolioResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Empty(t, out.Allocations)
	assert.Equal(t, 10.0, out.Best.RiskFactor)

	// With the variance term gone everything goes to one asset.
	ones := 0
	for _, w := range out.Best.Weights {
		if w == 1 {
			ones++
		}
	}
	assert.Equal(t, 1, ones)
}

func TestPortfolio_Errors(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.post(t, "/api/portfolio", PortfolioRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.post(t, "/api/portfolio", PortfolioRequest{Tickers: []string{"SPY", "NOPE"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSectors_NoData(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/api/sectors")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out sectorsResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Periods, 7)
	assert.Len(t, out.Rows, 11*7)
	for _, row := range out.Rows {
		assert.False(t, row.OK)
	}

	resp, _ = e.get(t, "/api/sectors?sector=Nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.get(t, "/api/sectors?sector=Technology&period=10Y")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.get(t, "/healthz")
	e.get(t, "/api/sweeps/missing")

	resp, body := e.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `test_api_requests_total{code="404",route="GET /api/sweeps/{id}"} 1`)
}

func TestNumber_MarshalJSON(t *testing.T) {
	out, err := json.Marshal([]number{1.5, number(math.NaN()), number(math.Inf(1))})
	require.NoError(t, err)
	assert.Equal(t, "[1.5,null,null]", string(out))
}
