package clickhouse

import (
	"context"
	"fmt"
	"time"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage"
)

// PriceSeriesStore implements storage.PriceSeriesStore using ClickHouse.
type PriceSeriesStore struct {
	conn *Conn
}

// NewPriceSeriesStore creates a new PriceSeriesStore.
func NewPriceSeriesStore(conn *Conn) *PriceSeriesStore {
	return &PriceSeriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)

// InsertBulk adds points for a ticker. Fails entire batch on duplicate (ticker, date).
func (s *PriceSeriesStore) InsertBulk(ctx context.Context, ticker string, points []domain.PricePoint) error {
	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[time.Time]struct{}, len(points))
	lo, hi := domain.TruncateDay(points[0].Date), domain.TruncateDay(points[0].Date)
	for _, p := range points {
		if !(p.Close > 0) {
			return fmt.Errorf("%w: close %v", storage.ErrInvalidInput, p.Close)
		}
		day := domain.TruncateDay(p.Date)
		if _, exists := seen[day]; exists {
			return storage.ErrDuplicateKey
		}
		seen[day] = struct{}{}
		if day.Before(lo) {
			lo = day
		}
		if day.After(hi) {
			hi = day
		}
	}

	// ReplacingMergeTree would silently collapse duplicates; keep append-only semantics
	existing, err := s.GetRange(ctx, ticker, lo, hi)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, p := range existing {
		if _, exists := seen[domain.TruncateDay(p.Date)]; exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_points (ticker, date, close)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(ticker, domain.TruncateDay(p.Date), p.Close); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRange retrieves points within [start, end] (inclusive), ordered by date ASC.
func (s *PriceSeriesStore) GetRange(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	query := `
		SELECT date, close
		FROM price_points FINAL
		WHERE ticker = ? AND date >= toDate(?) AND date <= toDate(?)
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query,
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
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT ticker FROM price_points ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker row: %w", err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticker rows: %w", err)
	}
	return tickers, nil
}

// scanPoints scans (date, close) rows.
func scanPoints(rows chRows) ([]domain.PricePoint, error) {
	var points []domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		p.Date = domain.TruncateDay(p.Date)
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}
	return points, nil
}
