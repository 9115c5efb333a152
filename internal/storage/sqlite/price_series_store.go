package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage"
)

// PriceSeriesStore implements storage.PriceSeriesStore on the price_points table.
type PriceSeriesStore struct {
	db *DB
}

// NewPriceSeriesStore creates a store sharing the connection of db.
func NewPriceSeriesStore(db *DB) *PriceSeriesStore {
	return &PriceSeriesStore{db: db}
}

// InsertBulk adds points atomically. Fails entire batch on duplicate (ticker, date).
func (s *PriceSeriesStore) InsertBulk(ctx context.Context, ticker string, points []domain.PricePoint) error {
	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO price_points (ticker, date, close) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if !(p.Close > 0) {
			return fmt.Errorf("%w: close %v", storage.ErrInvalidInput, p.Close)
		}
		if _, err := stmt.ExecContext(ctx, ticker, domain.TruncateDay(p.Date).Format(domain.DateLayout), p.Close); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert price point: %w", err)
		}
	}

	return tx.Commit()
}

// GetRange retrieves points within [start, end] (inclusive), ordered by date ASC.
func (s *PriceSeriesStore) GetRange(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		"SELECT date, close FROM price_points WHERE ticker = ? AND date >= ? AND date <= ? ORDER BY date",
		ticker,
		domain.TruncateDay(start).Format(domain.DateLayout),
		domain.TruncateDay(end).Format(domain.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query price points: %w", err)
	}
	defer rows.Close()

	return scanPoints(rows)
}

// Tickers lists stored tickers in ascending order.
func (s *PriceSeriesStore) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.sql.QueryContext(ctx, "SELECT DISTINCT ticker FROM price_points ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// isUniqueViolation reports a primary key or unique constraint failure.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)
