// Package sqlite provides a file-backed price cache and price store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return initDB(ctx, sqlDB)
}

// OpenMemory opens a private in-memory database.
func OpenMemory(ctx context.Context) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory db: %w", err)
	}
	// every pooled connection would otherwise see its own empty database
	sqlDB.SetMaxOpenConns(1)
	return initDB(ctx, sqlDB)
}

func initDB(ctx context.Context, sqlDB *sql.DB) (*DB, error) {
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB, now: time.Now}
	if err := d.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// SetClock overrides the time source used for freshness checks.
func (d *DB) SetClock(now func() time.Time) {
	d.now = now
}

func (d *DB) migrate(ctx context.Context) error {
	version := 0
	// missing table on first run leaves version at 0
	_ = d.sql.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS price_points (
				ticker TEXT NOT NULL,
				date   TEXT NOT NULL,
				close  REAL NOT NULL,
				PRIMARY KEY (ticker, date)
			);

			CREATE TABLE IF NOT EXISTS series_cache (
				cache_key TEXT NOT NULL,
				date      TEXT NOT NULL,
				close     REAL NOT NULL,
				PRIMARY KEY (cache_key, date)
			);

			CREATE TABLE IF NOT EXISTS series_cache_meta (
				cache_key  TEXT PRIMARY KEY,
				ticker     TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_series_cache_meta_updated ON series_cache_meta(updated_at);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}
	return nil
}
