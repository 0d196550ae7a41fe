package distpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Pool is a bounded pool of resources shared across processes through a
// coordination backend. All admission-affecting state (creation counter,
// idle list, shutdown flag) lives in the backend; a Pool value itself only
// carries configuration, so any number of instances may coexist per
// namespace, in one process or many.
type Pool[T any] struct {
	conf  Config[T]
	coord Coordinator
	codec Codec[T]
	log   *zap.Logger

	// mu guards dispose. The callback is recorded by the first local
	// Shutdown call and never replaced.
	mu      sync.Mutex
	dispose func(T) error
}

// New constructs a Pool from conf. It performs no I/O; the coordination
// namespace is touched lazily by the first operation.
func New[T any](conf Config[T]) (*Pool[T], error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool configuration: %w", err)
	}
	if conf.Codec == nil {
		conf.Codec = JSONCodec[T]()
	}
	if conf.LockTTL == 0 {
		conf.LockTTL = DefaultLockTTL
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}
	return &Pool[T]{
		conf:  conf,
		coord: conf.Coordinator,
		codec: conf.Codec,
		log:   conf.Logger,
	}, nil
}

// ID returns the coordination namespace the pool operates in.
func (p *Pool[T]) ID() string {
	return p.coord.ID
}

// Pop removes and returns a resource from the pool, blocking up to timeout
// for one to become available. The most recently returned idle resource is
// served first; when none is idle and creation headroom remains, the
// factory is invoked. Pop fails with ErrAcquireTimeout once the deadline
// elapses and with ErrPoolShuttingDown after shutdown has been engaged.
//
// The timeout bounds wall-clock waiting, not the number of internal lock
// retries. There is no fairness among concurrent callers: any waiter may
// be starved under pathological contention.
func (p *Pool[T]) Pop(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T

	if p.localShutdown() != nil {
		return zero, ErrPoolShuttingDown
	}

	deadline := time.Now().Add(timeout)
	for {
		unlock, locked, err := p.coord.Locker.TryLock(ctx, p.conf.LockTTL)
		if err != nil {
			return zero, fmt.Errorf("failed to acquire namespace lock: %w", err)
		}
		if locked {
			resource, ok, admitErr := p.admit(ctx)
			p.unlock(ctx, unlock)
			if admitErr != nil {
				return zero, admitErr
			}
			if ok {
				return resource, nil
			}
			// Exhausted: no idle resource and no headroom. Fall through
			// to waiting.
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, ErrAcquireTimeout
		}
		if _, err := p.coord.Bus.Wait(ctx, remaining); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return zero, err
			}
			return zero, fmt.Errorf("failed to wait for wake notification: %w", err)
		}
		// A wake is only a hint. Re-attempt the full admission sequence;
		// never trust the message itself.
	}
}

// admit runs the admission decision. It must be called with the namespace
// lock held.
func (p *Pool[T]) admit(ctx context.Context) (T, bool, error) {
	var zero T

	// Shutdown always wins, before any admission logic.
	down, err := p.coord.Idle.ShuttingDown(ctx)
	if err != nil {
		return zero, false, fmt.Errorf("failed to read shutdown flag: %w", err)
	}
	if down {
		return zero, false, ErrPoolShuttingDown
	}

	data, ok, err := p.coord.Idle.PopIdle(ctx)
	if err != nil {
		return zero, false, fmt.Errorf("failed to pop idle resource: %w", err)
	}
	if ok {
		resource, err := p.codec.Unmarshal(data)
		if err != nil {
			return zero, false, err
		}
		return resource, true, nil
	}

	created, err := p.coord.Counter.Get(ctx)
	if err != nil {
		return zero, false, fmt.Errorf("failed to read creation count: %w", err)
	}
	if created < int64(p.conf.MaxResourcesCount) {
		resource, err := p.conf.Factory(ctx)
		if err != nil {
			return zero, false, fmt.Errorf("resource factory failed: %w", err)
		}
		if _, err := p.coord.Counter.Increment(ctx); err != nil {
			return zero, false, fmt.Errorf("failed to increment creation count: %w", err)
		}
		return resource, true, nil
	}

	return zero, false, nil
}

// Push returns a resource to the pool and wakes blocked Pop callers. After
// shutdown has been engaged the resource is disposed instead of stored.
//
// Push retries lock acquisition indefinitely with exponential backoff:
// abandoning a return would leak capacity, so there is no caller-facing
// timeout. Cancelling ctx stops the retry loop, at the cost of leaking the
// resource's capacity slot.
func (p *Pool[T]) Push(ctx context.Context, resource T) error {
	unlock, err := p.lock(ctx)
	if err != nil {
		return err
	}

	storeErr := p.store(ctx, resource)
	if storeErr == nil {
		if err := p.coord.Bus.Publish(ctx, "push"); err != nil {
			storeErr = fmt.Errorf("failed to publish wake notification: %w", err)
		}
	}
	p.unlock(ctx, unlock)
	return storeErr
}

// store either shelves the resource as idle or, when shutdown is engaged,
// disposes it and releases its capacity slot. Lock must be held.
func (p *Pool[T]) store(ctx context.Context, resource T) error {
	down, err := p.coord.Idle.ShuttingDown(ctx)
	if err != nil {
		return fmt.Errorf("failed to read shutdown flag: %w", err)
	}
	if down {
		dispose := p.localShutdown()
		if dispose == nil {
			dispose = p.conf.OnDiscard
		}
		if dispose != nil {
			if err := dispose(resource); err != nil {
				return fmt.Errorf("disposal callback failed: %w", err)
			}
		}
		// The resource is gone for good; give its slot back.
		if _, err := p.coord.Counter.DecrementIfPositive(ctx); err != nil {
			return fmt.Errorf("failed to decrement creation count: %w", err)
		}
		return nil
	}

	data, err := p.codec.Marshal(resource)
	if err != nil {
		return err
	}
	if err := p.coord.Idle.PushIdle(ctx, data); err != nil {
		return fmt.Errorf("failed to store idle resource: %w", err)
	}
	return nil
}

// Shutdown engages shutdown for the whole coordination namespace and
// drains every currently idle resource through dispose. After it returns,
// every later Pop fails with ErrPoolShuttingDown and every later Push
// disposes its resource instead of storing it.
//
// The first Shutdown call in this process records dispose; repeated calls
// keep the first callback and only re-drain whatever is idle. A disposal
// error aborts the drain and propagates, leaving the remaining idle
// resources undrained.
func (p *Pool[T]) Shutdown(ctx context.Context, dispose func(resource T) error) error {
	if dispose == nil {
		return fmt.Errorf("shutdown requires a disposal callback")
	}

	unlock, err := p.lock(ctx)
	if err != nil {
		return err
	}
	defer p.unlock(ctx, unlock)

	if _, err := p.coord.Idle.MarkShutdown(ctx); err != nil {
		return fmt.Errorf("failed to engage shutdown: %w", err)
	}

	// First wins. Later calls drain with the callback already recorded.
	p.mu.Lock()
	if p.dispose == nil {
		p.dispose = dispose
	}
	dispose = p.dispose
	p.mu.Unlock()

	// Wake waiters first so they observe shutdown and fail fast rather
	// than sitting out their full timeout.
	if err := p.coord.Bus.Publish(ctx, "shutdown"); err != nil {
		return fmt.Errorf("failed to publish wake notification: %w", err)
	}

	for {
		data, ok, err := p.coord.Idle.PopIdle(ctx)
		if err != nil {
			return fmt.Errorf("failed to pop idle resource during drain: %w", err)
		}
		if !ok {
			return nil
		}
		resource, err := p.codec.Unmarshal(data)
		if err != nil {
			return err
		}
		if err := dispose(resource); err != nil {
			return fmt.Errorf("disposal callback failed during drain: %w", err)
		}
		if _, err := p.coord.Counter.DecrementIfPositive(ctx); err != nil {
			return fmt.Errorf("failed to decrement creation count: %w", err)
		}
	}
}

// Empty reports whether the shared creation count has reached capacity,
// i.e. no further resource can be created. It says nothing about idle
// availability; a pool can be Empty while every resource sits idle.
func (p *Pool[T]) Empty(ctx context.Context) (bool, error) {
	created, err := p.coord.Counter.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read creation count: %w", err)
	}
	return created >= int64(p.conf.MaxResourcesCount), nil
}

// Len returns the remaining creation headroom (capacity minus the shared
// creation count), not the number of idle resources. The counterintuitive
// meaning is retained from the original pool contract; use Stats for the
// idle count.
func (p *Pool[T]) Len(ctx context.Context) (int64, error) {
	created, err := p.coord.Counter.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read creation count: %w", err)
	}
	return int64(p.conf.MaxResourcesCount) - created, nil
}

// Stats describes a point-in-time view of the coordination namespace.
// The fields are read without the namespace lock and may be mutually
// inconsistent under concurrent traffic; use them for observability only.
type Stats struct {
	Created      int64
	Headroom     int64
	Idle         int64
	ShuttingDown bool
}

// Stats returns a snapshot of the pool's shared state.
func (p *Pool[T]) Stats(ctx context.Context) (Stats, error) {
	created, err := p.coord.Counter.Get(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read creation count: %w", err)
	}
	idle, err := p.coord.Idle.IdleLen(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read idle length: %w", err)
	}
	down, err := p.coord.Idle.ShuttingDown(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read shutdown flag: %w", err)
	}
	return Stats{
		Created:      created,
		Headroom:     int64(p.conf.MaxResourcesCount) - created,
		Idle:         idle,
		ShuttingDown: down,
	}, nil
}

// localShutdown returns the disposal callback recorded by a Shutdown call
// on this instance, or nil if none was made.
func (p *Pool[T]) localShutdown() func(T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispose
}

// lock acquires the namespace lock, retrying indefinitely with exponential
// backoff and jitter so contending processes do not retry in lockstep.
func (p *Pool[T]) lock(ctx context.Context) (Unlock, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond

	for attempt := 0; ; attempt++ {
		unlock, locked, err := p.coord.Locker.TryLock(ctx, p.conf.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire namespace lock: %w", err)
		}
		if locked {
			return unlock, nil
		}
		if attempt > 0 && attempt%100 == 0 {
			p.log.Warn("namespace lock still contended",
				zap.String("namespace", p.coord.ID),
				zap.Int("attempts", attempt),
			)
		}
		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// unlock releases the namespace lock, logging instead of failing when the
// release does not go through: the TTL reclaims the lock either way.
func (p *Pool[T]) unlock(ctx context.Context, unlock Unlock) {
	if err := unlock(ctx); err != nil {
		p.log.Warn("failed to release namespace lock; waiting for TTL expiry",
			zap.String("namespace", p.coord.ID),
			zap.Error(err),
		)
	}
}
