// Package memcoord implements distpool's coordination capabilities in
// process memory. It exists for tests and single-process use: the lock
// honors the TTL contract (an expired lock is claimable), the bus is a
// broadcast over registered channels, and all state is guarded by one
// mutex standing in for the backend's atomicity.
package memcoord

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yuku/distpool"
)

// New returns a Coordinator backed by in-process state. Pool instances
// sharing the returned value share one logical pool.
func New(namespace string) distpool.Coordinator {
	s := &state{waiters: make(map[string]chan struct{})}
	return distpool.Coordinator{
		ID:      namespace,
		Locker:  s,
		Counter: s,
		Bus:     s,
		Idle:    s,
	}
}

type state struct {
	mu sync.Mutex

	lockToken   string
	lockExpires time.Time

	created  int64
	idle     [][]byte
	shutdown bool

	waiters map[string]chan struct{}
}

func (s *state) TryLock(_ context.Context, ttl time.Duration) (distpool.Unlock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.lockToken != "" && now.Before(s.lockExpires) {
		return nil, false, nil
	}

	token := uuid.NewString()
	s.lockToken = token
	s.lockExpires = now.Add(ttl)

	unlock := func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.lockToken == token {
			s.lockToken = ""
			s.lockExpires = time.Time{}
		}
		return nil
	}
	return unlock, true, nil
}

func (s *state) Increment(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	return s.created, nil
}

func (s *state) DecrementIfPositive(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created <= 0 {
		return false, nil
	}
	s.created--
	return true, nil
}

func (s *state) Get(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created, nil
}

func (s *state) Publish(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *state) Wait(ctx context.Context, d time.Duration) (bool, error) {
	id := uuid.NewString()
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.waiters[id] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.waiters, id)
		s.mu.Unlock()
	}()

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

func (s *state) PushIdle(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = append(s.idle, data)
	return nil
}

func (s *state) PopIdle(context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.idle) == 0 {
		return nil, false, nil
	}
	data := s.idle[len(s.idle)-1]
	s.idle = s.idle[:len(s.idle)-1]
	return data, true, nil
}

func (s *state) IdleLen(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.idle)), nil
}

func (s *state) MarkShutdown(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false, nil
	}
	s.shutdown = true
	return true, nil
}

func (s *state) ShuttingDown(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown, nil
}
