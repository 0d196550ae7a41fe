package distpool

import (
	"context"
	"time"
)

// Unlock releases a lock obtained from Locker.TryLock. Failing to call it
// is not fatal: the lock expires on its own after the TTL.
type Unlock func(ctx context.Context) error

// Locker is a named, TTL-bound exclusive lock shared by every process in
// the coordination namespace. The TTL bounds how long a crashed holder can
// block others; implementations must expire the lock on their own after it.
// There is no fairness guarantee among contenders.
type Locker interface {
	// TryLock attempts to take the lock without blocking. It reports
	// whether the lock was obtained; when it was, the returned Unlock
	// releases it.
	TryLock(ctx context.Context, ttl time.Duration) (Unlock, bool, error)
}

// Counter is the shared creation counter. Writes that affect admission
// happen only while the namespace lock is held; the counter itself only
// has to be durable and immediately visible after such a write.
type Counter interface {
	Increment(ctx context.Context) (int64, error)

	// DecrementIfPositive decrements the counter only if it is currently
	// above zero, and reports whether a decrement happened. The guard
	// protects against duplicate decrements driving the count negative.
	DecrementIfPositive(ctx context.Context) (bool, error)

	Get(ctx context.Context) (int64, error)
}

// Bus is a best-effort wake channel. Delivery may be lost or duplicated;
// the pool never trusts a wake and always re-verifies state under the lock.
type Bus interface {
	Publish(ctx context.Context, payload string) error

	// Wait blocks until a message is published, d elapses, or ctx is done.
	// It reports whether a message arrived; a timeout is not an error.
	Wait(ctx context.Context, d time.Duration) (bool, error)
}

// IdleStore holds the shared idle-resource list and the shutdown flag.
// Mutations happen only under the namespace lock.
type IdleStore interface {
	// PushIdle appends an encoded resource to the idle list.
	PushIdle(ctx context.Context, data []byte) error

	// PopIdle removes and returns the most recently pushed resource (LIFO,
	// for cache locality). It reports whether the list held one.
	PopIdle(ctx context.Context) ([]byte, bool, error)

	IdleLen(ctx context.Context) (int64, error)

	// MarkShutdown engages the shutdown flag and reports whether this call
	// was the one that set it. The flag is monotonic: once set it stays set.
	MarkShutdown(ctx context.Context) (bool, error)

	ShuttingDown(ctx context.Context) (bool, error)
}

// Coordinator bundles the coordination capabilities for one namespace.
// All pool instances constructed with Coordinators sharing the same
// backing state form a single logical pool.
type Coordinator struct {
	// ID identifies the coordination namespace. Informational.
	ID string

	Locker  Locker
	Counter Counter
	Bus     Bus
	Idle    IdleStore
}
