package ratelimit

import (
	"context"
	"sync"
	"time"
)

// In-process sliding window limiter. Each key keeps the timestamps of its
// allowed requests; entries at or beyond the window edge are discarded.
type MemorySlidingWindow struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string][]time.Time
	now     func() time.Time
}

type MemoryConfig struct {
	Limit   int
	Window  time.Duration    // Default: 1 minute
	NowFunc func() time.Time // Default: time.Now
}

func NewMemorySlidingWindow(cfg MemoryConfig) *MemorySlidingWindow {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}

	return &MemorySlidingWindow{
		limit:   cfg.Limit,
		window:  cfg.Window,
		entries: make(map[string][]time.Time),
		now:     cfg.NowFunc,
	}
}

// trim drops expired timestamps for key. Caller holds mu.
func (m *MemorySlidingWindow) trim(key string, now time.Time) []time.Time {
	stamps := m.entries[key]
	cutoff := now.Add(-m.window)

	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		stamps = append(stamps[:0], stamps[i:]...)
		m.entries[key] = stamps
	}
	return stamps
}

func (m *MemorySlidingWindow) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stamps := m.trim(key, now)

	if len(stamps) >= m.limit {
		return false, nil
	}

	m.entries[key] = append(stamps, now)
	return true, nil
}

func (m *MemorySlidingWindow) Remaining(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamps := m.trim(key, m.now())
	return max(m.limit-len(stamps), 0), nil
}

func (m *MemorySlidingWindow) Limit() int {
	return m.limit
}

func (m *MemorySlidingWindow) Window() time.Duration {
	return m.window
}

func (m *MemorySlidingWindow) Reset(_ context.Context, key string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stamps := m.trim(key, now)
	if len(stamps) == 0 {
		return now, nil
	}
	return stamps[0].Add(m.window), nil
}

// Prune removes keys with no request inside the window and returns how many were dropped.
func (m *MemorySlidingWindow) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key := range m.entries {
		if len(m.trim(key, now)) == 0 {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Keys returns the number of tracked identities
func (m *MemorySlidingWindow) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
