package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(limit int) (*MemorySlidingWindow, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemorySlidingWindow(MemoryConfig{
		Limit:   limit,
		Window:  time.Minute,
		NowFunc: clock.Now,
	}), clock
}

func TestMemorySlidingWindow_LimitWithinWindow(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(60)

	for i := range 60 {
		allowed, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		require.Truef(t, allowed, "request %d should be allowed", i+1)
		clock.Advance(500 * time.Millisecond)
	}

	allowed, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, allowed, "61st request within the window must be denied")

	// Other identities have their own window
	allowed, _ = limiter.Allow(ctx, "user-2")
	assert.True(t, allowed)
}

func TestMemorySlidingWindow_WindowRolls(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(60)

	for range 60 {
		allowed, _ := limiter.Allow(ctx, "user-1")
		require.True(t, allowed)
	}
	allowed, _ := limiter.Allow(ctx, "user-1")
	require.False(t, allowed)

	clock.Advance(time.Minute)

	allowed, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowed, "first request after the window rolls must be allowed")
}

func TestMemorySlidingWindow_DeniedRequestsAreNotRecorded(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(2)

	limiter.Allow(ctx, "k")
	clock.Advance(30 * time.Second)
	limiter.Allow(ctx, "k")

	for range 5 {
		allowed, _ := limiter.Allow(ctx, "k")
		assert.False(t, allowed)
	}

	// Only the first timestamp expires, freeing exactly one slot
	clock.Advance(31 * time.Second)
	remaining, err := limiter.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestMemorySlidingWindow_Reset(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(10)
	start := clock.Now()

	reset, err := limiter.Reset(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, start, reset)

	limiter.Allow(ctx, "k")
	clock.Advance(10 * time.Second)
	limiter.Allow(ctx, "k")

	reset, err = limiter.Reset(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Minute), reset)
}

func TestMemorySlidingWindow_Prune(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(10)

	limiter.Allow(ctx, "old")
	clock.Advance(45 * time.Second)
	limiter.Allow(ctx, "recent")
	clock.Advance(20 * time.Second)

	assert.Equal(t, 1, limiter.Prune())
	assert.Equal(t, 1, limiter.Keys())
}

func TestMemorySlidingWindow_Defaults(t *testing.T) {
	limiter := NewMemorySlidingWindow(MemoryConfig{Limit: 5})
	assert.Equal(t, time.Minute, limiter.Window())
	assert.Equal(t, 5, limiter.Limit())
}

func TestNewLimiter(t *testing.T) {
	l, err := NewLimiter("memory", nil, 30, time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &MemorySlidingWindow{}, l)

	_, err = NewLimiter("redis", nil, 30, time.Minute)
	assert.Error(t, err)

	_, err = NewLimiter("token_bucket", nil, 30, time.Minute)
	assert.Error(t, err)
}
