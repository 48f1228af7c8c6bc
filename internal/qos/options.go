package qos

import (
	"time"

	"github.com/aman-churiwal/voice-qos/internal/ratelimit"
	"go.uber.org/zap"
)

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithLimiter replaces the default in-memory per-identity limiter.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Controller) {
		c.limiter = l
	}
}

// WithObserver registers an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

// WithClock overrides time.Now for samples, deadlines and the default limiter.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}
