package provider

import (
	"context"
	"sync"
	"time"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/observability"
)

// Cache defaults.
const (
	DefaultCacheTTL        = 24 * time.Hour
	DefaultCacheMaxEntries = 256
)

type cacheEntry struct {
	series   *domain.PriceSeries
	storedAt time.Time
}

// CachedProvider memoizes fetched series keyed by (ticker, start, end).
// Entries expire after ttl; when full, the oldest entry is evicted.
// Errors are never cached.
type CachedProvider struct {
	inner      Provider
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	metrics    *observability.Metrics

	mu      sync.Mutex
	entries map[domain.SeriesKey]cacheEntry
	order   []domain.SeriesKey // insertion order, oldest first
}

// CacheOption configures CachedProvider.
type CacheOption func(*CachedProvider)

// WithTTL sets entry lifetime; ttl <= 0 means entries never expire.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedProvider) {
		c.ttl = ttl
	}
}

// WithMaxEntries bounds the number of cached series.
func WithMaxEntries(n int) CacheOption {
	return func(c *CachedProvider) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CachedProvider) {
		c.now = now
	}
}

// WithCacheMetrics enables hit/miss metrics.
func WithCacheMetrics(m *observability.Metrics) CacheOption {
	return func(c *CachedProvider) {
		c.metrics = m
	}
}

// NewCachedProvider wraps inner with an in-memory cache.
func NewCachedProvider(inner Provider, opts ...CacheOption) *CachedProvider {
	c := &CachedProvider{
		inner:      inner,
		ttl:        DefaultCacheTTL,
		maxEntries: DefaultCacheMaxEntries,
		now:        time.Now,
		entries:    make(map[domain.SeriesKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns a cached series or fetches and stores it.
func (c *CachedProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceSeries, error) {
	key := domain.NewSeriesKey(ticker, start, end)

	if s, ok := c.get(key); ok {
		c.metrics.RecordCache("memory", true)
		return s, nil
	}
	c.metrics.RecordCache("memory", false)

	s, err := c.inner.Fetch(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	c.put(key, s)
	return s, nil
}

func (c *CachedProvider) get(key domain.SeriesKey) (*domain.PriceSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl {
		c.removeLocked(key)
		return nil, false
	}
	return e.series, true
}

func (c *CachedProvider) put(key domain.SeriesKey, s *domain.PriceSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.removeLocked(key)
	}
	for len(c.order) >= c.maxEntries {
		c.removeLocked(c.order[0])
	}
	c.entries[key] = cacheEntry{series: s, storedAt: c.now()}
	c.order = append(c.order, key)
}

func (c *CachedProvider) removeLocked(key domain.SeriesKey) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Len returns the number of cached series.
func (c *CachedProvider) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every cached series.
func (c *CachedProvider) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.SeriesKey]cacheEntry)
	c.order = nil
}

var _ Provider = (*CachedProvider)(nil)
