package pgcoord

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuku/distpool"
)

type locker struct {
	db        *pgxpool.Pool
	namespace string
}

func (l *locker) TryLock(ctx context.Context, ttl time.Duration) (distpool.Unlock, bool, error) {
	token := uuid.NewString()

	// The lock is free when no token is set or the previous holder's lease
	// expired. Claiming it and checking that is one atomic UPDATE.
	tag, err := l.db.Exec(ctx, `
		UPDATE distpool_state
		SET lock_token = $2,
		    lock_expires_at = now() + ($3::bigint * interval '1 millisecond')
		WHERE namespace = $1
		  AND (lock_token IS NULL OR lock_expires_at <= now())`,
		l.namespace, token, ttl.Milliseconds(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim lock for %s: %w", l.namespace, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		// Guarded by the token so we never release a lock that expired
		// and was claimed by someone else in the meantime.
		_, err := l.db.Exec(ctx, `
			UPDATE distpool_state
			SET lock_token = NULL, lock_expires_at = NULL
			WHERE namespace = $1 AND lock_token = $2`,
			l.namespace, token,
		)
		if err != nil {
			return fmt.Errorf("failed to release lock for %s: %w", l.namespace, err)
		}
		return nil
	}
	return unlock, true, nil
}
