package storage

import (
	"context"
	"time"

	"ticker-strategy-lab/internal/domain"
)

// PriceSeriesStore provides access to daily close storage.
type PriceSeriesStore interface {
	// InsertBulk adds points for a ticker. Fails entire batch on duplicate (ticker, date).
	InsertBulk(ctx context.Context, ticker string, points []domain.PricePoint) error

	// GetRange retrieves points for a ticker within [start, end] (inclusive), ordered by date ASC.
	GetRange(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error)

	// Tickers lists stored tickers in ascending order.
	Tickers(ctx context.Context) ([]string, error)
}

// SweepStore provides access to sweep runs and their scored results.
type SweepStore interface {
	// InsertRun adds run metadata. Returns ErrDuplicateKey if run_id exists.
	InsertRun(ctx context.Context, run *domain.SweepRun) error

	// InsertResults adds scored results for a run. Traces are not persisted.
	// Fails entire batch on duplicate (run_id, result_id).
	InsertResults(ctx context.Context, runID string, results []*domain.ScoredResult) error

	// GetRun retrieves run metadata. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.SweepRun, error)

	// GetResults retrieves results ordered by score DESC, grid index ASC.
	// limit <= 0 returns all results.
	GetResults(ctx context.Context, runID string, limit int) ([]*domain.ScoredResult, error)

	// ListRuns lists runs for a ticker ordered by created_at ASC, run_id ASC.
	// An empty ticker lists all runs.
	ListRuns(ctx context.Context, ticker string) ([]*domain.SweepRun, error)
}
