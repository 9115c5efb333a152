package provider

import (
	"context"
	"fmt"
	"time"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage"
)

// StoreProvider serves series from a PriceSeriesStore.
type StoreProvider struct {
	store storage.PriceSeriesStore
}

// NewStoreProvider creates a provider backed by store.
func NewStoreProvider(store storage.PriceSeriesStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// Fetch reads [start, end] from the store.
func (p *StoreProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceSeries, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	points, err := p.store.GetRange(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ticker, err)
	}
	return seriesFromPoints(ticker, points)
}

var _ Provider = (*StoreProvider)(nil)
