package distpool

import "errors"

var (
	// ErrAcquireTimeout is returned by Pop when its deadline elapses before
	// an idle resource appears or creation headroom frees up. Sustained
	// timeouts are backpressure: the pool is exhausted, not broken.
	ErrAcquireTimeout = errors.New("distpool: acquire timed out")

	// ErrPoolShuttingDown is returned by Pop once shutdown has been engaged
	// in the coordination namespace. It is terminal for the pool.
	ErrPoolShuttingDown = errors.New("distpool: pool is shutting down")
)
