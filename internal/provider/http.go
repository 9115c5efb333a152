package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://query1.finance.yahoo.com"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultRatePerSec  = 2.0
)

// HTTPProvider fetches daily bars from a chart API.
//
//	GET {base}/v8/finance/chart/{ticker}?period1=..&period2=..&interval=1d
//
// Adjusted closes are preferred over raw closes when present.
type HTTPProvider struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// HTTPOption configures HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(p *HTTPProvider) {
		p.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) HTTPOption {
	return func(p *HTTPProvider) {
		p.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) HTTPOption {
	return func(p *HTTPProvider) {
		p.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) HTTPOption {
	return func(p *HTTPProvider) {
		p.maxDelay = d
	}
}

// WithRateLimit sets the sustained request rate; rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(p *HTTPProvider) {
		if rps <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		p.client = client
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l zerolog.Logger) HTTPOption {
	return func(p *HTTPProvider) {
		p.logger = l
	}
}

// WithMetrics enables fetch metrics.
func WithMetrics(m *observability.Metrics) HTTPOption {
	return func(p *HTTPProvider) {
		p.metrics = m
	}
}

// NewHTTPProvider creates a chart API provider.
func NewHTTPProvider(baseURL string, opts ...HTTPOption) *HTTPProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &HTTPProvider{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRatePerSec), 1),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// chartResponse is the subset of the chart API payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *chartError `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *chartError) Error() string {
	return fmt.Sprintf("chart error %s: %s", e.Code, e.Description)
}

// errPermanent marks responses that must not be retried.
var errPermanent = errors.New("permanent failure")

// Fetch retrieves daily closes within [start, end].
func (p *HTTPProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceSeries, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}

	began := time.Now()
	series, err := p.fetch(ctx, ticker, start, end)
	if !errors.Is(err, ErrNoData) {
		p.metrics.RecordFetch("http", time.Since(began).Seconds(), err)
	}
	return series, err
}

func (p *HTTPProvider) fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceSeries, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(domain.TruncateDay(start).Unix(), 10))
	// period2 is exclusive upstream
	q.Set("period2", strconv.FormatInt(domain.TruncateDay(end).AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(ticker), q.Encode())

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoData, ticker, resp.Chart.Error)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}

	r := resp.Chart.Result[0]
	var closes []*float64
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		closes = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 && len(r.Indicators.Quote[0].Close) == len(r.Timestamp) {
		closes = r.Indicators.Quote[0].Close
	} else {
		return nil, fmt.Errorf("%w: %s: no close column", ErrNoData, ticker)
	}

	points := make([]domain.PricePoint, 0, len(r.Timestamp))
	seen := make(map[time.Time]struct{}, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		c := closes[i]
		// missing bars are null upstream
		if c == nil || *c <= 0 || math.IsNaN(*c) {
			continue
		}
		day := domain.TruncateDay(time.Unix(ts, 0))
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		points = append(points, domain.PricePoint{Date: day, Close: *c})
	}

	return seriesFromPoints(ticker, points)
}

// get performs a GET with rate limiting, retries and exponential backoff.
func (p *HTTPProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	delay := p.retryDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Debug().Err(lastErr).Int("attempt", attempt).Dur("delay", delay).Msg("retrying price fetch")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * p.backoffMult)
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := p.do(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, errPermanent) || errors.Is(err, ErrNoData) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (p *HTTPProvider) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", errPermanent, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ticker-strategy-lab/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNoData, string(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited (429)")
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	default:
		return nil, fmt.Errorf("%w: unexpected status %d: %s", errPermanent, resp.StatusCode, string(body))
	}
}

var _ Provider = (*HTTPProvider)(nil)
