package ratelimit

import (
	"context"
	"time"
)

// Limiter bounds how many requests a single key may issue within a trailing window.
type Limiter interface {
	// Allow records a request for key and reports whether it fits in the window.
	// A denied request is not recorded.
	Allow(ctx context.Context, key string) (bool, error)

	Remaining(ctx context.Context, key string) (int, error)

	Limit() int

	Window() time.Duration

	// Returns the time at which the oldest request in the window expires
	Reset(ctx context.Context, key string) (time.Time, error)
}

// Pruner is implemented by limiters holding in-process state that needs periodic sweeping.
type Pruner interface {
	Prune() int
}
