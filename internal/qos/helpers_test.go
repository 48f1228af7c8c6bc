package qos

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/config"
	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingObserver struct {
	mu          sync.Mutex
	breaches    map[string]float64
	transitions [][2]models.DegradationAction
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{breaches: make(map[string]float64)}
}

func (o *recordingObserver) OnSLOBreach(target models.SLOTarget, compliancePct float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.breaches[target.Name] = compliancePct
}

func (o *recordingObserver) OnDegradationChange(from, to models.DegradationAction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, [2]models.DegradationAction{from, to})
}

func testConfig(mutate func(*config.QoSConfig)) config.QoSConfig {
	cfg := config.DefaultQoSConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

func newTestController(t *testing.T, mutate func(*config.QoSConfig), opts ...Option) (*Controller, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	opts = append([]Option{
		WithClock(clock.Now),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)

	c, err := New(testConfig(mutate), opts...)
	require.NoError(t, err)
	return c, clock
}

func mustAcquire(t *testing.T, c *Controller, id string, p models.Priority) *models.RequestContext {
	t.Helper()
	rc, ok := c.AcquireSlot(context.Background(), SlotRequest{RequestID: id, Priority: p})
	require.Truef(t, ok, "expected %s to be admitted", id)
	return rc
}

// complete runs a NORMAL request through acquire and release.
func complete(t *testing.T, c *Controller, latencyMs float64, success bool) {
	t.Helper()
	id := fmt.Sprintf("req-%d", c.admitted.Load()+1)
	mustAcquire(t, c, id, models.PriorityNormal)
	c.ReleaseSlot(id, latencyMs, success)
}
