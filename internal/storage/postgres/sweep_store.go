package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage"
)

// SweepStore implements storage.SweepStore using PostgreSQL.
type SweepStore struct {
	pool *Pool
}

// NewSweepStore creates a new SweepStore.
func NewSweepStore(pool *Pool) *SweepStore {
	return &SweepStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SweepStore = (*SweepStore)(nil)

const runColumns = `run_id, ticker, strategy, start_date, end_date, grid_size, status, best_score, best_params, created_at`

const resultColumns = `result_id, grid_index, params, score, final_value, max_drawdown, injected, buy_count`

// InsertRun adds run metadata. Returns ErrDuplicateKey if run_id exists.
func (s *SweepStore) InsertRun(ctx context.Context, run *domain.SweepRun) (err error) {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}
	defer func(began time.Time) { s.pool.observe("insert_run", began, err) }(time.Now())

	query := `
		INSERT INTO sweep_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.pool.Exec(ctx, query,
		run.RunID, run.Ticker, string(run.Strategy),
		domain.TruncateDay(run.Start), domain.TruncateDay(run.End),
		run.GridSize, string(run.Status), run.BestScore, run.BestParam,
		run.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert sweep run: %w", err)
	}
	return nil
}

// InsertResults adds results atomically. Fails entire batch on any duplicate.
// Returns ErrNotFound when the run does not exist.
func (s *SweepStore) InsertResults(ctx context.Context, runID string, results []*domain.ScoredResult) (err error) {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(results) == 0 {
		return nil
	}
	defer func(began time.Time) { s.pool.observe("insert_results", began, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO sweep_results (run_id, ` + resultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for _, r := range results {
		if r == nil || r.ResultID == "" {
			return storage.ErrInvalidInput
		}
		batch.Queue(query,
			runID, r.ResultID, r.Index, r.Params.String(),
			r.Score, r.FinalValue, r.MaxDrawdown, r.Injected, r.BuyCount,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range results {
		if _, err := br.Exec(); err != nil {
			br.Close()
			switch {
			case isDuplicateKeyError(err):
				return storage.ErrDuplicateKey
			case isForeignKeyError(err):
				return storage.ErrNotFound
			}
			return fmt.Errorf("insert sweep result: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetRun retrieves run metadata. Returns ErrNotFound if not exists.
func (s *SweepStore) GetRun(ctx context.Context, runID string) (*domain.SweepRun, error) {
	query := `SELECT ` + runColumns + ` FROM sweep_runs WHERE run_id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get sweep run: %w", err)
	}
	return run, nil
}

// GetResults retrieves results ordered by score DESC, grid index ASC.
// NaN scores sort last. limit <= 0 returns all results.
func (s *SweepStore) GetResults(ctx context.Context, runID string, limit int) (results []*domain.ScoredResult, err error) {
	defer func(began time.Time) { s.pool.observe("get_results", began, err) }(time.Now())

	query := `
		SELECT ` + resultColumns + `
		FROM sweep_results
		WHERE run_id = $1
		ORDER BY (score = 'NaN'::float8) ASC, score DESC, grid_index ASC
	`
	args := []any{runID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get sweep results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r      domain.ScoredResult
			params string
		)
		if err := rows.Scan(
			&r.ResultID, &r.Index, &params,
			&r.Score, &r.FinalValue, &r.MaxDrawdown, &r.Injected, &r.BuyCount,
		); err != nil {
			return nil, fmt.Errorf("scan sweep result row: %w", err)
		}
		if r.Params, err = domain.ParseStrategyParameters(params); err != nil {
			return nil, fmt.Errorf("result %s: %w", r.ResultID, err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweep result rows: %w", err)
	}
	return results, nil
}

// ListRuns lists runs for a ticker ordered by created_at ASC, run_id ASC.
// An empty ticker lists all runs.
func (s *SweepStore) ListRuns(ctx context.Context, ticker string) ([]*domain.SweepRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM sweep_runs
		WHERE $1::text = '' OR ticker = $1
		ORDER BY created_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("list sweep runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.SweepRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sweep run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweep run rows: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row into a SweepRun.
func scanRun(row pgx.Row) (*domain.SweepRun, error) {
	var (
		run      domain.SweepRun
		strategy string
		status   string
	)
	err := row.Scan(
		&run.RunID, &run.Ticker, &strategy, &run.Start, &run.End,
		&run.GridSize, &status, &run.BestScore, &run.BestParam, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Strategy = domain.StrategyType(strategy)
	run.Status = domain.OutcomeStatus(status)
	run.Start = run.Start.UTC()
	run.End = run.End.UTC()
	run.CreatedAt = run.CreatedAt.UTC()
	return &run, nil
}
