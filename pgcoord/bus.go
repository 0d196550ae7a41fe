package pgcoord

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuku/distpool/internal/notify"
)

type bus struct {
	db       *pgxpool.Pool
	channel  string
	registry *notify.Registry
}

func (b *bus) Publish(ctx context.Context, payload string) error {
	if _, err := b.db.Exec(ctx, `SELECT pg_notify($1, $2)`, b.channel, payload); err != nil {
		return fmt.Errorf("failed to notify %s: %w", b.channel, err)
	}
	return nil
}

func (b *bus) Wait(ctx context.Context, d time.Duration) (bool, error) {
	id := uuid.NewString()
	ch, err := b.registry.Register(id)
	if err != nil {
		return false, fmt.Errorf("failed to register waiter: %w", err)
	}
	defer b.registry.Unregister(id)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
