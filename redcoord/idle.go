package redcoord

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type idleStore struct {
	rdb     redis.UniversalClient
	listKey string
	flagKey string
}

func (s *idleStore) PushIdle(ctx context.Context, data []byte) error {
	if err := s.rdb.LPush(ctx, s.listKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push onto %s: %w", s.listKey, err)
	}
	return nil
}

func (s *idleStore) PopIdle(ctx context.Context) ([]byte, bool, error) {
	// LPUSH+LPOP makes the list a stack: the most recently returned
	// resource comes back first.
	data, err := s.rdb.LPop(ctx, s.listKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to pop from %s: %w", s.listKey, err)
	}
	return data, true, nil
}

func (s *idleStore) IdleLen(ctx context.Context) (int64, error) {
	n, err := s.rdb.LLen(ctx, s.listKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get length of %s: %w", s.listKey, err)
	}
	return n, nil
}

func (s *idleStore) MarkShutdown(ctx context.Context) (bool, error) {
	first, err := s.rdb.SetNX(ctx, s.flagKey, "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set %s: %w", s.flagKey, err)
	}
	return first, nil
}

func (s *idleStore) ShuttingDown(ctx context.Context) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.flagKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", s.flagKey, err)
	}
	return n > 0, nil
}
