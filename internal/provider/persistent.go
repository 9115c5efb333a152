package provider

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/observability"
)

// SeriesCache persists fetched series across processes.
type SeriesCache interface {
	// GetSeries returns the cached points for key if stored within maxAge.
	GetSeries(ctx context.Context, key domain.SeriesKey, maxAge time.Duration) ([]domain.PricePoint, bool, error)

	// PutSeries replaces the cached points for key.
	PutSeries(ctx context.Context, key domain.SeriesKey, points []domain.PricePoint) error
}

// PersistentProvider serves fresh entries from a SeriesCache and refreshes
// stale ones from inner. Cache failures degrade to a direct fetch.
type PersistentProvider struct {
	inner   Provider
	cache   SeriesCache
	maxAge  time.Duration
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewPersistentProvider wraps inner with a persisted cache.
func NewPersistentProvider(inner Provider, cache SeriesCache, maxAge time.Duration, logger zerolog.Logger, metrics *observability.Metrics) *PersistentProvider {
	if maxAge <= 0 {
		maxAge = DefaultCacheTTL
	}
	return &PersistentProvider{
		inner:   inner,
		cache:   cache,
		maxAge:  maxAge,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch returns the cached series when fresh, otherwise fetches and stores it.
func (p *PersistentProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceSeries, error) {
	key := domain.NewSeriesKey(ticker, start, end)

	points, ok, err := p.cache.GetSeries(ctx, key, p.maxAge)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key.String()).Msg("price cache read failed")
	}
	if ok && len(points) > 0 {
		if s, err := domain.NewPriceSeries(ticker, points); err == nil {
			p.metrics.RecordCache("sqlite", true)
			return s, nil
		}
	}
	p.metrics.RecordCache("sqlite", false)

	s, err := p.inner.Fetch(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	if err := p.cache.PutSeries(ctx, key, s.Points()); err != nil {
		p.logger.Warn().Err(err).Str("key", key.String()).Msg("price cache write failed")
	}
	return s, nil
}

var _ Provider = (*PersistentProvider)(nil)
