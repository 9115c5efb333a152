package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage"
)

// PriceSeriesStore is an in-memory implementation of storage.PriceSeriesStore.
type PriceSeriesStore struct {
	mu   sync.RWMutex
	data map[string]map[string]domain.PricePoint // ticker -> date -> point
}

// NewPriceSeriesStore creates a new in-memory price series store.
func NewPriceSeriesStore() *PriceSeriesStore {
	return &PriceSeriesStore{
		data: make(map[string]map[string]domain.PricePoint),
	}
}

// InsertBulk adds points for a ticker. Fails entire batch on duplicate.
func (s *PriceSeriesStore) InsertBulk(_ context.Context, ticker string, points []domain.PricePoint) error {
	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[ticker]
	batchKeys := make(map[string]struct{}, len(points))

	// First pass: validate and check for duplicates (existing + intra-batch)
	for _, p := range points {
		if !(p.Close > 0) {
			return fmt.Errorf("%w: close %v", storage.ErrInvalidInput, p.Close)
		}
		key := domain.TruncateDay(p.Date).Format(domain.DateLayout)
		if _, exists := existing[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	if existing == nil {
		existing = make(map[string]domain.PricePoint, len(points))
		s.data[ticker] = existing
	}
	for _, p := range points {
		p.Date = domain.TruncateDay(p.Date)
		existing[p.Date.Format(domain.DateLayout)] = p
	}
	return nil
}

// GetRange retrieves points for a ticker within [start, end] (inclusive), ordered by date ASC.
func (s *PriceSeriesStore) GetRange(_ context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	start, end = domain.TruncateDay(start), domain.TruncateDay(end)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PricePoint
	for _, p := range s.data[ticker] {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// Tickers lists stored tickers in ascending order.
func (s *PriceSeriesStore) Tickers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickers := make([]string, 0, len(s.data))
	for t := range s.data {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers, nil
}

var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)
