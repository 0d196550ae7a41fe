// Package pgcoord implements distpool's coordination capabilities on
// PostgreSQL. A row in distpool_state per namespace carries the creation
// counter, the shutdown flag, and a lease-style lock with an expiry
// timestamp; idle resources live in distpool_idle ordered by insertion.
// Wake notifications ride on LISTEN/NOTIFY.
//
// The lock expiry is lazy: a crashed holder's lock is reclaimed by the
// next TryLock that finds it expired, which satisfies the TTL contract
// without a background reaper.
package pgcoord

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxlisten"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yuku/distpool"
	"github.com/yuku/distpool/internal/notify"
)

// Config holds the configuration for constructing a Coordinator.
type Config struct {
	// Pool is the database connection pool. Managed by the caller. Required.
	Pool *pgxpool.Pool

	// Namespace identifies the pool's coordination state. Required.
	Namespace string

	// Logger receives listener lifecycle diagnostics. Optional.
	Logger *zap.Logger
}

func (c Config) Validate() error {
	if c.Pool == nil {
		return fmt.Errorf("pool cannot be nil")
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	return nil
}

// New constructs a Coordinator for the namespace, creating its state row
// if missing, and starts the LISTEN connection in the background. The
// listener runs until ctx is cancelled; after that, waiters fall back to
// waking only on their own timeouts.
func New(ctx context.Context, conf Config) (distpool.Coordinator, error) {
	if err := conf.Validate(); err != nil {
		return distpool.Coordinator{}, fmt.Errorf("invalid coordinator configuration: %w", err)
	}
	log := conf.Logger
	if log == nil {
		log = zap.NewNop()
	}

	_, err := conf.Pool.Exec(ctx,
		`INSERT INTO distpool_state (namespace) VALUES ($1) ON CONFLICT (namespace) DO NOTHING`,
		conf.Namespace,
	)
	if err != nil {
		return distpool.Coordinator{}, fmt.Errorf("failed to ensure state row for %s: %w", conf.Namespace, err)
	}

	registry := &notify.Registry{}

	// PostgreSQL channel names have a length limit, so keep the prefix short.
	channel := fmt.Sprintf("dp_%s", conf.Namespace)

	listener := &pgxlisten.Listener{
		Connect: func(ctx context.Context) (*pgx.Conn, error) {
			config := conf.Pool.Config().ConnConfig.Copy()
			return pgx.ConnectConfig(ctx, config)
		},
	}
	listener.Handle(channel, registry)

	go func() {
		if err := listener.Listen(ctx); err != nil && ctx.Err() == nil {
			// Without LISTEN, blocked Pop callers only retry when their
			// own wait times out, so the pool degrades rather than hangs.
			log.Error("distpool listener stopped",
				zap.String("namespace", conf.Namespace),
				zap.Error(err),
			)
		}
	}()

	return distpool.Coordinator{
		ID:      conf.Namespace,
		Locker:  &locker{db: conf.Pool, namespace: conf.Namespace},
		Counter: &counter{db: conf.Pool, namespace: conf.Namespace},
		Bus: &bus{
			db:       conf.Pool,
			channel:  channel,
			registry: registry,
		},
		Idle: &idleStore{db: conf.Pool, namespace: conf.Namespace},
	}, nil
}
