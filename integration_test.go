package distpool_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuku/distpool"
	"github.com/yuku/distpool/internal"
	"github.com/yuku/distpool/redcoord"
)

// newRedisCoordinator returns a Coordinator on a unique Redis namespace,
// removing its keys when the test completes. Tests are skipped without a
// reachable Redis server.
func newRedisCoordinator(t *testing.T) distpool.Coordinator {
	t.Helper()
	rdb := internal.MustGetRedisWithCleanup(t)

	namespace := fmt.Sprintf("%s_%s", t.Name(), uuid.NewString())
	t.Cleanup(func() {
		keys := []string{
			fmt.Sprintf("distpool:%s:lock", namespace),
			fmt.Sprintf("distpool:%s:created", namespace),
			fmt.Sprintf("distpool:%s:idle", namespace),
			fmt.Sprintf("distpool:%s:shutdown", namespace),
		}
		_ = rdb.Del(context.Background(), keys...).Err()
	})
	return redcoord.New(rdb, namespace)
}

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	var created atomic.Int64
	pool := newIntPool(t, newRedisCoordinator(t), 2, &created)

	r1, err := pool.Pop(ctx, 5*time.Second)
	require.NoError(t, err)
	r2, err := pool.Pop(ctx, 5*time.Second)
	require.NoError(t, err)
	require.NotEqual(t, r1, r2)

	require.NoError(t, pool.Push(ctx, r1))

	got, err := pool.Pop(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, r1, got, "the idle resource should be served before creating")
	assert.EqualValues(t, 2, created.Load())
}

func TestRedis_CrossInstanceHandoff(t *testing.T) {
	ctx := context.Background()
	var created atomic.Int64
	coord := newRedisCoordinator(t)

	// Two pool instances sharing a namespace stand in for two processes.
	holder := newIntPool(t, coord, 1, &created)
	waiter := newIntPool(t, coord, 1, &created)

	r, err := holder.Pop(ctx, 5*time.Second)
	require.NoError(t, err)

	type result struct {
		resource int
		err      error
	}
	done := make(chan result, 1)
	go func() {
		got, err := waiter.Pop(ctx, 10*time.Second)
		done <- result{resource: got, err: err}
	}()

	// Let the waiter block on the wake channel, then hand the resource
	// back from the other instance.
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, holder.Push(ctx, r))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, r, res.resource,
			"the waiter should receive the resource released by the other instance")
	case <-time.After(11 * time.Second):
		t.Fatal("waiter never returned")
	}
	assert.EqualValues(t, 1, created.Load())
}

func TestRedis_PopTimesOutWhenExhausted(t *testing.T) {
	ctx := context.Background()
	var created atomic.Int64
	coord := newRedisCoordinator(t)

	holder := newIntPool(t, coord, 1, &created)
	waiter := newIntPool(t, coord, 1, &created)

	_, err := holder.Pop(ctx, 5*time.Second)
	require.NoError(t, err)

	// Nobody pushes: the waiter must ride out its wake wait and surface a
	// plain acquire timeout, not a transport error.
	start := time.Now()
	_, err = waiter.Pop(ctx, 1*time.Second)
	assert.ErrorIs(t, err, distpool.ErrAcquireTimeout)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 1*time.Second)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestRedis_ZeroCapacityPopTimesOut(t *testing.T) {
	ctx := context.Background()
	var created atomic.Int64
	pool := newIntPool(t, newRedisCoordinator(t), 0, &created)

	_, err := pool.Pop(ctx, 500*time.Millisecond)
	assert.ErrorIs(t, err, distpool.ErrAcquireTimeout)
	assert.Zero(t, created.Load(), "nothing may be created at zero capacity")
}

func TestRedis_ShutdownPropagatesAcrossInstances(t *testing.T) {
	ctx := context.Background()
	var created atomic.Int64
	coord := newRedisCoordinator(t)

	a := newIntPool(t, coord, 2, &created)
	b := newIntPool(t, coord, 2, &created)

	r, err := a.Pop(ctx, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, a.Push(ctx, r))

	var disposed atomic.Int64
	require.NoError(t, a.Shutdown(ctx, func(int) error {
		disposed.Add(1)
		return nil
	}))
	assert.EqualValues(t, 1, disposed.Load(), "the idle resource should be drained")

	_, err = b.Pop(ctx, 2*time.Second)
	assert.ErrorIs(t, err, distpool.ErrPoolShuttingDown,
		"the other instance should observe shutdown on its next admission")
}
