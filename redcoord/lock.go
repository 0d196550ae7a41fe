package redcoord

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yuku/distpool"
)

type locker struct {
	rdb redis.UniversalClient
	key string
}

// unlockScript deletes the lock key only when it still holds our token, so
// a holder whose lock already expired cannot release somebody else's.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *locker) TryLock(ctx context.Context, ttl time.Duration) (distpool.Unlock, bool, error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to set lock key %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		if err := unlockScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("failed to delete lock key %s: %w", l.key, err)
		}
		return nil
	}
	return unlock, true, nil
}
