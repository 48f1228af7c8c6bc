package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Trims the window, counts it and records the request only when it fits.
// Returns [allowed (0/1), count after the call].
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, ARGV[4])
    redis.call('PEXPIRE', key, window)
    return {1, count + 1}
end
return {0, count}
`)

// Sliding window limiter shared across gateway replicas. Timestamps are kept in
// a sorted set per key, scored in milliseconds.
type RedisSlidingWindow struct {
	redis  *storage.RedisClient
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisSlidingWindow(redis *storage.RedisClient, limit int, window time.Duration) *RedisSlidingWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisSlidingWindow{
		redis:  redis,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func redisKey(key string) string {
	return fmt.Sprintf("ratelimit:sliding:%s", key)
}

func (s *RedisSlidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	now := s.now()

	result, err := s.redis.Eval(ctx, slidingWindowScript,
		[]string{redisKey(key)},
		now.UnixMilli(),
		s.window.Milliseconds(),
		s.limit,
		fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
	)
	if err != nil {
		return false, err
	}
	if len(result) != 2 {
		return false, fmt.Errorf("unexpected sliding window reply: %v", result)
	}

	return result[0] == 1, nil
}

func (s *RedisSlidingWindow) Remaining(ctx context.Context, key string) (int, error) {
	now := s.now()
	windowStart := now.Add(-s.window)

	// "(" makes the lower bound exclusive, matching the trim in Allow
	count, err := s.redis.ZCount(ctx, redisKey(key),
		fmt.Sprintf("(%d", windowStart.UnixMilli()),
		fmt.Sprintf("%d", now.UnixMilli()),
	)
	if err != nil {
		return 0, err
	}

	return max(s.limit-int(count), 0), nil
}

func (s *RedisSlidingWindow) Limit() int {
	return s.limit
}

func (s *RedisSlidingWindow) Window() time.Duration {
	return s.window
}

func (s *RedisSlidingWindow) Reset(ctx context.Context, key string) (time.Time, error) {
	oldest, err := s.redis.ZRangeWithScores(ctx, redisKey(key), 0, 0)
	if err != nil {
		return time.Time{}, err
	}
	if len(oldest) == 0 {
		return s.now(), nil
	}

	return time.UnixMilli(int64(oldest[0].Score)).Add(s.window), nil
}
