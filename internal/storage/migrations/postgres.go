package migrations

import (
	"context"
	"fmt"

	"ticker-strategy-lab/internal/storage/postgres"
)

// RunPostgresMigrations creates the sweep tables. Each file runs as one
// multi-statement Exec.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return nil
}
