package pgcoord

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type idleStore struct {
	db        *pgxpool.Pool
	namespace string
}

func (s *idleStore) PushIdle(ctx context.Context, data []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO distpool_idle (namespace, resource) VALUES ($1, $2)`,
		s.namespace, data,
	)
	if err != nil {
		return fmt.Errorf("failed to store idle resource for %s: %w", s.namespace, err)
	}
	return nil
}

func (s *idleStore) PopIdle(ctx context.Context) ([]byte, bool, error) {
	// Highest id is the most recently returned resource (LIFO).
	var data []byte
	err := s.db.QueryRow(ctx, `
		DELETE FROM distpool_idle
		WHERE id = (
			SELECT id FROM distpool_idle
			WHERE namespace = $1
			ORDER BY id DESC
			LIMIT 1
		)
		RETURNING resource`,
		s.namespace,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to pop idle resource for %s: %w", s.namespace, err)
	}
	return data, true, nil
}

func (s *idleStore) IdleLen(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM distpool_idle WHERE namespace = $1`,
		s.namespace,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count idle resources for %s: %w", s.namespace, err)
	}
	return n, nil
}

func (s *idleStore) MarkShutdown(ctx context.Context) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE distpool_state
		SET shutting_down = true
		WHERE namespace = $1 AND NOT shutting_down`,
		s.namespace,
	)
	if err != nil {
		return false, fmt.Errorf("failed to engage shutdown for %s: %w", s.namespace, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *idleStore) ShuttingDown(ctx context.Context) (bool, error) {
	var down bool
	err := s.db.QueryRow(ctx,
		`SELECT shutting_down FROM distpool_state WHERE namespace = $1`,
		s.namespace,
	).Scan(&down)
	if err != nil {
		return false, fmt.Errorf("failed to read shutdown flag for %s: %w", s.namespace, err)
	}
	return down, nil
}
