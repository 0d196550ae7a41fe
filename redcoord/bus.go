package redcoord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type bus struct {
	rdb     redis.UniversalClient
	channel string
}

func (b *bus) Publish(ctx context.Context, payload string) error {
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", b.channel, err)
	}
	return nil
}

func (b *bus) Wait(ctx context.Context, d time.Duration) (bool, error) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	// Confirm the subscription before the timed receive, otherwise a wake
	// published during subscription setup could slip past us. Messages
	// published before this point are lost; the caller's retry loop covers
	// that window.
	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	if _, err := sub.ReceiveMessage(waitCtx); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Once waitCtx has expired the wait simply timed out, whatever
		// shape the receive error takes: go-redis surfaces the expiry as
		// a net.Error i/o timeout rather than context.DeadlineExceeded.
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return false, nil
		}
		return false, fmt.Errorf("failed to receive on %s: %w", b.channel, err)
	}
	return true, nil
}
