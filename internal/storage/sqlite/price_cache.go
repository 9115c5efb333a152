package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticker-strategy-lab/internal/domain"
)

// GetSeries returns cached points for key when refreshed within maxAge.
// A missing or stale entry returns ok=false without error.
func (d *DB) GetSeries(ctx context.Context, key domain.SeriesKey, maxAge time.Duration) ([]domain.PricePoint, bool, error) {
	var updatedAt string
	err := d.sql.QueryRowContext(ctx,
		"SELECT updated_at FROM series_cache_meta WHERE cache_key = ?",
		key.String(),
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache meta: %w", err)
	}

	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil || d.now().Sub(t) > maxAge {
		return nil, false, nil
	}

	rows, err := d.sql.QueryContext(ctx,
		"SELECT date, close FROM series_cache WHERE cache_key = ? ORDER BY date",
		key.String(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("read cache rows: %w", err)
	}
	defer rows.Close()

	points, err := scanPoints(rows)
	if err != nil {
		return nil, false, err
	}
	if len(points) == 0 {
		return nil, false, nil
	}
	return points, true, nil
}

// PutSeries replaces the cached points for key and stamps the refresh time.
func (d *DB) PutSeries(ctx context.Context, key domain.SeriesKey, points []domain.PricePoint) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM series_cache WHERE cache_key = ?", key.String()); err != nil {
		return fmt.Errorf("clear cache rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO series_cache (cache_key, date, close) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, key.String(), domain.TruncateDay(p.Date).Format(domain.DateLayout), p.Close); err != nil {
			return fmt.Errorf("insert cache row: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO series_cache_meta (cache_key, ticker, updated_at) VALUES (?, ?, ?)",
		key.String(), key.Ticker, d.now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("update cache meta: %w", err)
	}

	return tx.Commit()
}

// CleanupCache removes entries not refreshed within maxAge.
// Returns the number of removed entries.
func (d *DB) CleanupCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := d.now().Add(-maxAge).UTC().Format(time.RFC3339)

	res, err := d.sql.ExecContext(ctx, "DELETE FROM series_cache_meta WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale meta: %w", err)
	}
	n, _ := res.RowsAffected()

	// Delete orphaned rows (meta was removed but rows remain)
	if _, err := d.sql.ExecContext(ctx, `
		DELETE FROM series_cache
		WHERE cache_key NOT IN (SELECT cache_key FROM series_cache_meta)
	`); err != nil {
		return n, fmt.Errorf("delete orphaned rows: %w", err)
	}
	return n, nil
}

func scanPoints(rows *sql.Rows) ([]domain.PricePoint, error) {
	var points []domain.PricePoint
	for rows.Next() {
		var date string
		var p domain.PricePoint
		if err := rows.Scan(&date, &p.Close); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		t, err := time.Parse(domain.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		p.Date = t
		points = append(points, p)
	}
	return points, rows.Err()
}
