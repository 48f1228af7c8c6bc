package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeEventStore struct {
	mu      sync.Mutex
	batches [][]models.QoSEvent
	err     error
}

func (s *fakeEventStore) CreateBatch(_ context.Context, events []models.QoSEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]models.QoSEvent(nil), events...))
	return s.err
}

func (s *fakeEventStore) all() []models.QoSEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QoSEvent
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func runRecorder(t *testing.T, r *EventRecorder) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return cancel, done
}

func TestEventRecorder_FlushesOnShutdown(t *testing.T) {
	store := &fakeEventStore{}
	r := NewEventRecorder(store, zaptest.NewLogger(t), 16)

	r.OnSLOBreach(models.SLOTarget{Name: "availability"}, 97.5)
	r.OnDegradationChange(models.DegradationNone, models.DegradationSkipFeatures)

	cancel, done := runRecorder(t, r)
	cancel()
	require.NoError(t, <-done)

	events := store.all()
	require.Len(t, events, 2)

	assert.Equal(t, models.EventSLOBreach, events[0].Kind)
	assert.Equal(t, "availability", events[0].TargetName)
	assert.Equal(t, 97.5, events[0].Compliance)

	assert.Equal(t, models.EventDegradationChange, events[1].Kind)
	assert.Equal(t, "none", events[1].FromLevel)
	assert.Equal(t, "skip_features", events[1].ToLevel)
	assert.False(t, events[1].Timestamp.IsZero())
}

func TestEventRecorder_FlushesFullBatch(t *testing.T) {
	store := &fakeEventStore{}
	r := NewEventRecorder(store, zaptest.NewLogger(t), 0)

	cancel, done := runRecorder(t, r)
	defer func() {
		cancel()
		<-done
	}()

	for range eventBatchSize {
		r.OnDegradationChange(models.DegradationNone, models.DegradationFallback)
	}

	assert.Eventually(t, func() bool {
		return len(store.all()) == eventBatchSize
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventRecorder_DropsWhenFull(t *testing.T) {
	store := &fakeEventStore{}
	r := NewEventRecorder(store, zaptest.NewLogger(t), 1)

	r.OnSLOBreach(models.SLOTarget{Name: "a"}, 10)
	r.OnSLOBreach(models.SLOTarget{Name: "b"}, 10)
	assert.EqualValues(t, 1, r.Dropped())

	cancel, done := runRecorder(t, r)
	cancel()
	<-done

	events := store.all()
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].TargetName)
}

func TestEventRecorder_StoreErrorIsNotFatal(t *testing.T) {
	store := &fakeEventStore{err: errors.New("db down")}
	r := NewEventRecorder(store, zaptest.NewLogger(t), 4)

	r.OnSLOBreach(models.SLOTarget{Name: "a"}, 10)

	cancel, done := runRecorder(t, r)
	cancel()
	assert.NoError(t, <-done)
	assert.Len(t, store.all(), 1)
}
