package clickhouse

import (
	"context"
	"fmt"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage"
)

// SweepStore implements storage.SweepStore using ClickHouse.
// Suited to bulk analytics over many runs; uniqueness is checked before insert.
type SweepStore struct {
	conn *Conn
}

// NewSweepStore creates a new SweepStore.
func NewSweepStore(conn *Conn) *SweepStore {
	return &SweepStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SweepStore = (*SweepStore)(nil)

const runColumns = `run_id, ticker, strategy, start_date, end_date, grid_size, status, best_score, best_params, created_at`

// InsertRun adds run metadata. Returns ErrDuplicateKey if run_id exists.
func (s *SweepStore) InsertRun(ctx context.Context, run *domain.SweepRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	var count uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM sweep_runs FINAL WHERE run_id = ?`, run.RunID).Scan(&count); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO sweep_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID, run.Ticker, string(run.Strategy),
		domain.TruncateDay(run.Start), domain.TruncateDay(run.End),
		uint32(run.GridSize), string(run.Status), run.BestScore, run.BestParam,
		run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert sweep run: %w", err)
	}
	return nil
}

// InsertResults adds results in one batch. Fails entire batch on any duplicate.
func (s *SweepStore) InsertResults(ctx context.Context, runID string, results []*domain.ScoredResult) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(results) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r == nil || r.ResultID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.ResultID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.ResultID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	rows, err := s.conn.Query(ctx, `SELECT result_id FROM sweep_results FINAL WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan result id: %w", err)
		}
		if _, exists := seen[id]; exists {
			rows.Close()
			return storage.ErrDuplicateKey
		}
	}
	rows.Close()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO sweep_results (
			run_id, result_id, grid_index, params,
			score, final_value, max_drawdown, injected, buy_count
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range results {
		err = batch.Append(
			runID, r.ResultID, uint32(r.Index), r.Params.String(),
			r.Score, r.FinalValue, r.MaxDrawdown, r.Injected, uint32(r.BuyCount),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRun retrieves run metadata. Returns ErrNotFound if not exists.
func (s *SweepStore) GetRun(ctx context.Context, runID string) (*domain.SweepRun, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+runColumns+` FROM sweep_runs FINAL WHERE run_id = ? LIMIT 1`, runID)
	if err != nil {
		return nil, fmt.Errorf("query sweep run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, storage.ErrNotFound
	}
	return runs[0], nil
}

// GetResults retrieves results ordered by score DESC, grid index ASC.
// NaN scores sort last. limit <= 0 returns all results.
func (s *SweepStore) GetResults(ctx context.Context, runID string, limit int) ([]*domain.ScoredResult, error) {
	query := `
		SELECT result_id, grid_index, params, score, final_value, max_drawdown, injected, buy_count
		FROM sweep_results FINAL
		WHERE run_id = ?
		ORDER BY isNaN(score) ASC, score DESC, grid_index ASC
	`
	args := []any{runID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sweep results: %w", err)
	}
	defer rows.Close()

	var results []*domain.ScoredResult
	for rows.Next() {
		var (
			r        domain.ScoredResult
			params   string
			index    uint32
			buyCount uint32
		)
		if err := rows.Scan(
			&r.ResultID, &index, &params,
			&r.Score, &r.FinalValue, &r.MaxDrawdown, &r.Injected, &buyCount,
		); err != nil {
			return nil, fmt.Errorf("scan sweep result row: %w", err)
		}
		r.Index = int(index)
		r.BuyCount = int(buyCount)
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
	rows, err := s.conn.Query(ctx, `
		SELECT `+runColumns+`
		FROM sweep_runs FINAL
		WHERE ? = '' OR ticker = ?
		ORDER BY created_at ASC, run_id ASC
	`, ticker, ticker)
	if err != nil {
		return nil, fmt.Errorf("query sweep runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// scanRuns scans multiple rows into a slice.
func scanRuns(rows chRows) ([]*domain.SweepRun, error) {
	var runs []*domain.SweepRun

	for rows.Next() {
		var (
			run      domain.SweepRun
			strategy string
			status   string
			gridSize uint32
		)
		err := rows.Scan(
			&run.RunID, &run.Ticker, &strategy, &run.Start, &run.End,
			&gridSize, &status, &run.BestScore, &run.BestParam, &run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sweep run row: %w", err)
		}
		run.Strategy = domain.StrategyType(strategy)
		run.Status = domain.OutcomeStatus(status)
		run.GridSize = int(gridSize)
		run.Start = domain.TruncateDay(run.Start)
		run.End = domain.TruncateDay(run.End)
		run.CreatedAt = run.CreatedAt.UTC()
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweep run rows: %w", err)
	}
	return runs, nil
}
