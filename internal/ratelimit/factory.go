package ratelimit

import (
	"fmt"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/storage"
)

// Creates a limiter for the named backend ("memory" or "redis")
func NewLimiter(backend string, redis *storage.RedisClient, limit int, window time.Duration) (Limiter, error) {
	switch backend {
	case "memory", "":
		return NewMemorySlidingWindow(MemoryConfig{Limit: limit, Window: window}), nil
	case "redis":
		if redis == nil {
			return nil, fmt.Errorf("redis rate limit backend requires a redis client")
		}
		return NewRedisSlidingWindow(redis, limit, window), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend: %s", backend)
	}
}
