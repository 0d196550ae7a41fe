package redcoord

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type counter struct {
	rdb redis.UniversalClient
	key string
}

// decrScript decrements only while the value is positive. A missing key
// counts as zero.
var decrScript = redis.NewScript(`
local n = tonumber(redis.call("get", KEYS[1]) or "0")
if n > 0 then
	redis.call("decr", KEYS[1])
	return 1
end
return 0
`)

func (c *counter) Increment(ctx context.Context) (int64, error) {
	n, err := c.rdb.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", c.key, err)
	}
	return n, nil
}

func (c *counter) DecrementIfPositive(ctx context.Context) (bool, error) {
	n, err := decrScript.Run(ctx, c.rdb, []string{c.key}).Int()
	if err != nil {
		return false, fmt.Errorf("failed to decrement %s: %w", c.key, err)
	}
	return n == 1, nil
}

func (c *counter) Get(ctx context.Context) (int64, error) {
	n, err := c.rdb.Get(ctx, c.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", c.key, err)
	}
	return n, nil
}
