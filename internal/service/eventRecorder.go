package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/models"
	"go.uber.org/zap"
)

const (
	defaultEventBuffer = 1024
	eventBatchSize     = 100
	eventFlushInterval = 5 * time.Second
	shutdownFlushLimit = 5 * time.Second
)

// EventStore persists batches of QoS events.
type EventStore interface {
	CreateBatch(ctx context.Context, events []models.QoSEvent) error
}

// EventRecorder buffers SLO breaches and degradation transitions and writes
// them to an EventStore in batches. It never blocks the caller: when the
// buffer is full the event is dropped.
type EventRecorder struct {
	store  EventStore
	logger *zap.Logger
	events chan models.QoSEvent
	now    func() time.Time

	dropped atomic.Int64
}

func NewEventRecorder(store EventStore, logger *zap.Logger, bufferSize int) *EventRecorder {
	if bufferSize <= 0 {
		bufferSize = defaultEventBuffer
	}
	return &EventRecorder{
		store:  store,
		logger: logger,
		events: make(chan models.QoSEvent, bufferSize),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *EventRecorder) OnSLOBreach(target models.SLOTarget, compliancePct float64) {
	r.record(models.QoSEvent{
		Timestamp:  r.now(),
		Kind:       models.EventSLOBreach,
		TargetName: target.Name,
		Compliance: compliancePct,
	})
}

func (r *EventRecorder) OnDegradationChange(from, to models.DegradationAction) {
	r.record(models.QoSEvent{
		Timestamp: r.now(),
		Kind:      models.EventDegradationChange,
		FromLevel: from.String(),
		ToLevel:   to.String(),
	})
}

func (r *EventRecorder) record(event models.QoSEvent) {
	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
		r.logger.Warn("Event buffer full, dropping event", zap.String("kind", event.Kind))
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (r *EventRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Run writes buffered events until ctx is cancelled, then flushes what is left.
func (r *EventRecorder) Run(ctx context.Context) error {
	batch := make([]models.QoSEvent, 0, eventBatchSize)
	ticker := time.NewTicker(eventFlushInterval)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := r.store.CreateBatch(ctx, batch); err != nil {
			r.logger.Error("Failed to insert QoS events", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = make([]models.QoSEvent, 0, eventBatchSize)
	}

	for {
		select {
		case event := <-r.events:
			batch = append(batch, event)
			if len(batch) >= eventBatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			// Drain whatever is still queued without waiting for more
		drain:
			for {
				select {
				case event := <-r.events:
					batch = append(batch, event)
				default:
					break drain
				}
			}

			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushLimit)
			flush(flushCtx)
			cancel()
			return nil
		}
	}
}
