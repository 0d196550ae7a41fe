// Package notify fans wake notifications out to in-process waiters.
// Wakes are hints, so delivery is best-effort: a waiter whose buffer is
// already full has a wake pending and needs no second one.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgxlisten"
)

// Registry tracks waiters and broadcasts to all of them. It implements
// pgxlisten.Handler so a PostgreSQL NOTIFY wakes every registered waiter,
// regardless of payload.
type Registry struct {
	mu      sync.RWMutex
	waiters map[string]chan struct{}
}

var _ pgxlisten.Handler = (*Registry)(nil)

// HandleNotification implements the pgxlisten.Handler interface.
func (r *Registry) HandleNotification(_ context.Context, _ *pgconn.Notification, _ *pgx.Conn) error {
	r.Broadcast()
	return nil
}

// Broadcast wakes every registered waiter without blocking.
func (r *Registry) Broadcast() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Register adds a waiter and returns the channel its wakes arrive on.
func (r *Registry) Register(id string) (<-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiters == nil {
		r.waiters = make(map[string]chan struct{})
	}
	if _, exists := r.waiters[id]; exists {
		return nil, fmt.Errorf("duplicate waiter id: %s", id)
	}
	ch := make(chan struct{}, 1)
	r.waiters[id] = ch
	return ch, nil
}

// Unregister removes a waiter and reports whether it was registered.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.waiters[id]; !exists {
		return false
	}
	delete(r.waiters, id)
	return true
}

// Len returns the number of registered waiters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.waiters)
}
