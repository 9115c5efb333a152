// Package storage defines the price history and sweep result stores shared
// by the memory, sqlite, postgres and clickhouse backends.
package storage

import "errors"

// Storage errors. Price points and sweep runs are written once and never
// updated, so a repeated key is an error rather than an upsert.
var (
	// ErrNotFound is returned for an unknown run ID or ticker, and when
	// results reference a run that was never stored.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run ID, result or (ticker, date)
	// price point is already stored.
	ErrDuplicateKey = errors.New("duplicate key: record already stored")

	// ErrInvalidInput is returned for empty tickers, run IDs or batches
	// that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)
