package distpool

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxResourcesLimit is the maximum capacity of a single pool.
	MaxResourcesLimit = 64

	// DefaultLockTTL is used when Config.LockTTL is zero. It bounds how
	// long a crashed lock holder can block the namespace, independent of
	// any caller-facing timeout.
	DefaultLockTTL = 5 * time.Second
)

// Config holds the configuration for constructing a Pool.
type Config[T any] struct {
	// Coordinator provides the lock, counter, wake channel, and idle store
	// for the coordination namespace. Required.
	Coordinator Coordinator

	// MaxResourcesCount is the capacity shared by every pool instance in
	// the namespace. It must be between 0 and MaxResourcesLimit; a
	// zero-capacity pool never creates anything and serves only resources
	// pushed by other means.
	MaxResourcesCount int32

	// Factory produces a new resource when the pool has creation headroom.
	// It may block or have side effects; the pool imposes no timeout on it.
	// Required.
	Factory func(ctx context.Context) (T, error)

	// Codec serializes resources into the shared idle list.
	// Defaults to JSONCodec.
	Codec Codec[T]

	// OnDiscard disposes a resource pushed back after another process
	// engaged shutdown, when this instance has no disposal callback of its
	// own. Optional; without it such resources are dropped after their
	// capacity is released.
	OnDiscard func(resource T) error

	// LockTTL is the expiry of the namespace lock. Defaults to
	// DefaultLockTTL.
	LockTTL time.Duration

	// Logger receives contention and recovery diagnostics. Optional.
	Logger *zap.Logger
}

func (c Config[T]) Validate() error {
	if c.Coordinator.Locker == nil || c.Coordinator.Counter == nil ||
		c.Coordinator.Bus == nil || c.Coordinator.Idle == nil {
		return fmt.Errorf("coordinator must provide a locker, counter, bus, and idle store")
	}
	if c.MaxResourcesCount < 0 || MaxResourcesLimit < c.MaxResourcesCount {
		return fmt.Errorf("max resources count must be between 0 and %d: given %d",
			MaxResourcesLimit, c.MaxResourcesCount,
		)
	}
	if c.Factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}
	if c.LockTTL < 0 {
		return fmt.Errorf("lock TTL cannot be negative: given %s", c.LockTTL)
	}
	return nil
}
