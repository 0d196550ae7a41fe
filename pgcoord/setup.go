package pgcoord

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS distpool_state (
	namespace       text PRIMARY KEY,
	created_count   bigint NOT NULL DEFAULT 0,
	shutting_down   boolean NOT NULL DEFAULT false,
	lock_token      text,
	lock_expires_at timestamptz
);

CREATE TABLE IF NOT EXISTS distpool_idle (
	id        bigserial PRIMARY KEY,
	namespace text NOT NULL REFERENCES distpool_state (namespace) ON DELETE CASCADE,
	resource  bytea NOT NULL
);

CREATE INDEX IF NOT EXISTS distpool_idle_namespace_id_idx
	ON distpool_idle (namespace, id DESC);
`

// Setup creates the distpool tables if they do not exist. It takes a
// transaction-scoped advisory lock so concurrent processes cannot race the
// schema creation. Call it once at application startup.
func Setup(ctx context.Context, pool *pgxpool.Pool) error {
	// Lock ID is arbitrary but must be consistent across all processes.
	const lockID int64 = 727301

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockID); err != nil {
			return fmt.Errorf("failed to acquire advisory lock: %w", err)
		}
		if _, err := tx.Exec(ctx, schema); err != nil {
			return fmt.Errorf("failed to create distpool tables: %w", err)
		}
		return nil
	})
}

// Cleanup drops the distpool tables. Intended for tests and teardown.
func Cleanup(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `DROP TABLE IF EXISTS distpool_idle, distpool_state`)
	if err != nil {
		return fmt.Errorf("failed to drop distpool tables: %w", err)
	}
	return nil
}
