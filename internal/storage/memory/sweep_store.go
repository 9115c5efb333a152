package memory

import (
	"context"
	"sort"
	"sync"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage"
)

// SweepStore is an in-memory implementation of storage.SweepStore.
type SweepStore struct {
	mu      sync.RWMutex
	runs    map[string]*domain.SweepRun
	results map[string][]*domain.ScoredResult // keyed by run_id
}

// NewSweepStore creates a new in-memory sweep store.
func NewSweepStore() *SweepStore {
	return &SweepStore{
		runs:    make(map[string]*domain.SweepRun),
		results: make(map[string][]*domain.ScoredResult),
	}
}

// InsertRun adds run metadata. Returns ErrDuplicateKey if run_id exists.
func (s *SweepStore) InsertRun(_ context.Context, run *domain.SweepRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := *run
	s.runs[run.RunID] = &runCopy
	return nil
}

// InsertResults adds results for a run. Fails entire batch on duplicate result_id.
func (s *SweepStore) InsertResults(_ context.Context, runID string, results []*domain.ScoredResult) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{}, len(s.results[runID])+len(results))
	for _, r := range s.results[runID] {
		existing[r.ResultID] = struct{}{}
	}

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range results {
		if r == nil || r.ResultID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := existing[r.ResultID]; exists {
			return storage.ErrDuplicateKey
		}
		existing[r.ResultID] = struct{}{}
	}

	// Second pass: insert copies without traces
	for _, r := range results {
		resultCopy := *r
		resultCopy.Trace = nil
		s.results[runID] = append(s.results[runID], &resultCopy)
	}
	return nil
}

// GetRun retrieves run metadata. Returns ErrNotFound if not exists.
func (s *SweepStore) GetRun(_ context.Context, runID string) (*domain.SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	runCopy := *run
	return &runCopy, nil
}

// GetResults retrieves results ordered by score DESC, grid index ASC.
func (s *SweepStore) GetResults(_ context.Context, runID string, limit int) ([]*domain.ScoredResult, error) {
	s.mu.RLock()
	stored := s.results[runID]
	result := make([]*domain.ScoredResult, len(stored))
	for i, r := range stored {
		resultCopy := *r
		result[i] = &resultCopy
	}
	s.mu.RUnlock()

	domain.RankResults(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListRuns lists runs for a ticker ordered by created_at ASC, run_id ASC.
func (s *SweepStore) ListRuns(_ context.Context, ticker string) ([]*domain.SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SweepRun
	for _, run := range s.runs {
		if ticker != "" && run.Ticker != ticker {
			continue
		}
		runCopy := *run
		result = append(result, &runCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

var _ storage.SweepStore = (*SweepStore)(nil)
