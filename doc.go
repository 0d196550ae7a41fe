// Package distpool provides a bounded pool of interchangeable resources
// shared by cooperating processes that may run on different machines.
// Capacity accounting, the idle list, and the shutdown flag all live in a
// shared coordination backend rather than process-local memory, so every
// pool instance sharing a namespace agrees on how many resources exist.
//
// Admission is serialized through a named TTL-bound distributed lock, and
// blocked callers wait on a best-effort notification channel. A wake is
// only a hint: after every wake or wait timeout the full admission sequence
// is re-attempted under the lock, which makes missed or duplicate
// notifications harmless.
//
// Two coordination backends ship with the package: redcoord (Redis) and
// pgcoord (PostgreSQL). Any backend satisfying the Locker, Counter, Bus,
// and IdleStore interfaces can be plugged in.
//
// Basic usage:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//
//	pool, err := distpool.New(distpool.Config[string]{
//		Coordinator:       redcoord.New(rdb, "worker-conns"),
//		MaxResourcesCount: 10,
//		Factory: func(ctx context.Context) (string, error) {
//			return openConnection(ctx)
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	conn, err := pool.Pop(ctx, 5*time.Second)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Push(ctx, conn)
//
// Resources cross process boundaries through the shared idle list, so they
// must be serializable. The default codec is JSON; supply a custom Codec
// for anything else.
package distpool
