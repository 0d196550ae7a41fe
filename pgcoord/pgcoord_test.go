package pgcoord_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuku/distpool"
	"github.com/yuku/distpool/internal"
	"github.com/yuku/distpool/pgcoord"
)

// newCoordinator returns a Coordinator on a unique namespace against the
// database from the environment, creating the schema if needed. Tests are
// skipped without a reachable PostgreSQL server.
func newCoordinator(t *testing.T) distpool.Coordinator {
	t.Helper()
	ctx := context.Background()
	db := internal.MustGetPGPoolWithCleanup(t)

	require.NoError(t, pgcoord.Setup(ctx, db))

	namespace := fmt.Sprintf("%s_%s", t.Name(), uuid.NewString())
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(),
			`DELETE FROM distpool_state WHERE namespace = $1`, namespace)
	})

	listenCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)

	coord, err := pgcoord.New(listenCtx, pgcoord.Config{
		Pool:      db,
		Namespace: namespace,
	})
	require.NoError(t, err)
	return coord
}

func TestNew_ValidatesConfig(t *testing.T) {
	_, err := pgcoord.New(context.Background(), pgcoord.Config{})
	assert.Error(t, err)

	_, err = pgcoord.New(context.Background(), pgcoord.Config{Namespace: "x"})
	assert.Error(t, err, "a nil pool must be rejected")
}

func TestLocker_MutualExclusionAndExpiry(t *testing.T) {
	ctx := context.Background()
	coord := newCoordinator(t)

	unlock, locked, err := coord.Locker.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, locked, err = coord.Locker.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, locked, "a held lock must not be claimable")

	require.NoError(t, unlock(ctx))

	// Expired lease: claimable without an explicit release.
	_, locked, err = coord.Locker.TryLock(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, locked)

	time.Sleep(200 * time.Millisecond)

	unlock, locked, err = coord.Locker.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, locked, "an expired lease must be claimable")
	require.NoError(t, unlock(ctx))
}

func TestCounter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	coord := newCoordinator(t)

	n, err := coord.Counter.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err := coord.Counter.DecrementIfPositive(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a zero counter must not go negative")

	n, err = coord.Counter.Increment(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ok, err = coord.Counter.DecrementIfPositive(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBus_NotifyWakesWaiter(t *testing.T) {
	ctx := context.Background()
	coord := newCoordinator(t)

	// Let the LISTEN connection come up before publishing.
	time.Sleep(500 * time.Millisecond)

	done := make(chan bool, 1)
	go func() {
		signaled, _ := coord.Bus.Wait(ctx, 5*time.Second)
		done <- signaled
	}()

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, coord.Bus.Publish(ctx, "wake"))

	select {
	case signaled := <-done:
		assert.True(t, signaled)
	case <-time.After(6 * time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestIdleStore_LIFOAndShutdownFlag(t *testing.T) {
	ctx := context.Background()
	coord := newCoordinator(t)

	require.NoError(t, coord.Idle.PushIdle(ctx, []byte("a")))
	require.NoError(t, coord.Idle.PushIdle(ctx, []byte("b")))

	n, err := coord.Idle.IdleLen(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	data, ok, err := coord.Idle.PopIdle(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), data, "the most recently pushed entry pops first")

	first, err := coord.Idle.MarkShutdown(ctx)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = coord.Idle.MarkShutdown(ctx)
	require.NoError(t, err)
	assert.False(t, first)

	down, err := coord.Idle.ShuttingDown(ctx)
	require.NoError(t, err)
	assert.True(t, down)
}

func TestPool_EndToEnd(t *testing.T) {
	ctx := context.Background()
	coord := newCoordinator(t)

	pool, err := distpool.New(distpool.Config[string]{
		Coordinator:       coord,
		MaxResourcesCount: 1,
		Factory: func(context.Context) (string, error) {
			return "conn-1", nil
		},
	})
	require.NoError(t, err)

	r, err := pool.Pop(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "conn-1", r)

	require.NoError(t, pool.Push(ctx, r))

	again, err := pool.Pop(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, r, again, "the returned resource should be served again")

	headroom, err := pool.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, headroom)
}
