package service

import (
	"context"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/models"
	"go.uber.org/zap"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

type EventReader interface {
	FindRecent(ctx context.Context, kind string, limit int) ([]models.QoSEvent, error)
	CountByKind(ctx context.Context, kind string, from, to time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type EventService struct {
	repository EventReader
	logger     *zap.Logger
}

func NewEventService(repo EventReader, logger *zap.Logger) *EventService {
	return &EventService{repository: repo, logger: logger}
}

// Holds event counts for a time range
type EventSummary struct {
	From               time.Time `json:"from"`
	To                 time.Time `json:"to"`
	SLOBreaches        int64     `json:"slo_breaches"`
	DegradationChanges int64     `json:"degradation_changes"`
}

// Returns the newest events. limit is clamped to [1, 500]; zero means 50.
func (s *EventService) Recent(ctx context.Context, kind string, limit int) ([]models.QoSEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	limit = min(limit, maxEventLimit)
	return s.repository.FindRecent(ctx, kind, limit)
}

func (s *EventService) Summary(ctx context.Context, from, to time.Time) (*EventSummary, error) {
	breaches, err := s.repository.CountByKind(ctx, models.EventSLOBreach, from, to)
	if err != nil {
		return nil, err
	}

	changes, err := s.repository.CountByKind(ctx, models.EventDegradationChange, from, to)
	if err != nil {
		return nil, err
	}

	return &EventSummary{
		From:               from,
		To:                 to,
		SLOBreaches:        breaches,
		DegradationChanges: changes,
	}, nil
}

// Deletes events older than the retention period
func (s *EventService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.repository.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("Deleted old QoS events", zap.Int64("count", deleted))
	}
	return deleted, nil
}

// RunRetention calls Cleanup every interval until ctx is cancelled.
func (s *EventService) RunRetention(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Cleanup(ctx, retention); err != nil {
				s.logger.Warn("QoS event cleanup failed", zap.Error(err))
			}
		case <-ctx.Done():
			return nil
		}
	}
}
