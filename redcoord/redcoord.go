// Package redcoord implements distpool's coordination capabilities on
// Redis. The lock is a SET NX PX key with an owner token, the creation
// counter a plain integer key, the wake channel Redis pub/sub, and the
// idle list a Redis list used LIFO.
package redcoord

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yuku/distpool"
)

// New returns a Coordinator whose state lives under the given namespace
// in rdb. Every process constructing a Coordinator with the same namespace
// (and the same Redis database) shares one logical pool.
func New(rdb redis.UniversalClient, namespace string) distpool.Coordinator {
	return distpool.Coordinator{
		ID:      namespace,
		Locker:  &locker{rdb: rdb, key: key(namespace, "lock")},
		Counter: &counter{rdb: rdb, key: key(namespace, "created")},
		Bus:     &bus{rdb: rdb, channel: key(namespace, "wake")},
		Idle: &idleStore{
			rdb:     rdb,
			listKey: key(namespace, "idle"),
			flagKey: key(namespace, "shutdown"),
		},
	}
}

func key(namespace, suffix string) string {
	return fmt.Sprintf("distpool:%s:%s", namespace, suffix)
}
