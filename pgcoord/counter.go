package pgcoord

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type counter struct {
	db        *pgxpool.Pool
	namespace string
}

func (c *counter) Increment(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRow(ctx, `
		UPDATE distpool_state
		SET created_count = created_count + 1
		WHERE namespace = $1
		RETURNING created_count`,
		c.namespace,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to increment creation count for %s: %w", c.namespace, err)
	}
	return n, nil
}

func (c *counter) DecrementIfPositive(ctx context.Context) (bool, error) {
	tag, err := c.db.Exec(ctx, `
		UPDATE distpool_state
		SET created_count = created_count - 1
		WHERE namespace = $1 AND created_count > 0`,
		c.namespace,
	)
	if err != nil {
		return false, fmt.Errorf("failed to decrement creation count for %s: %w", c.namespace, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (c *counter) Get(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRow(ctx,
		`SELECT created_count FROM distpool_state WHERE namespace = $1`,
		c.namespace,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to read creation count for %s: %w", c.namespace, err)
	}
	return n, nil
}
