package repository

import (
	"context"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/aman-churiwal/voice-qos/internal/storage"
)

type EventRepository struct {
	db *storage.Postgres
}

func NewEventRepository(db *storage.Postgres) *EventRepository {
	return &EventRepository{db: db}
}

// Inserts a single event
func (r *EventRepository) Create(ctx context.Context, event *models.QoSEvent) error {
	return r.db.DB.WithContext(ctx).Create(event).Error
}

// Inserts multiple events in one statement
func (r *EventRepository) CreateBatch(ctx context.Context, events []models.QoSEvent) error {
	if len(events) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&events).Error
}

// Returns the newest events, optionally filtered by kind
func (r *EventRepository) FindRecent(ctx context.Context, kind string, limit int) ([]models.QoSEvent, error) {
	var events []models.QoSEvent

	query := r.db.DB.WithContext(ctx).Order("timestamp DESC").Limit(limit)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	err := query.Find(&events).Error
	return events, err
}

// Counts events of a kind within a time range
func (r *EventRepository) CountByKind(ctx context.Context, kind string, from, to time.Time) (int64, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.QoSEvent{}).
		Where("kind = ? AND timestamp BETWEEN ? AND ?", kind, from, to).
		Count(&count).Error

	return count, err
}

// Deletes events older than the specified time
func (r *EventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.QoSEvent{})

	return result.RowsAffected, result.Error
}
