package models

import "time"

const (
	EventSLOBreach         = "slo_breach"
	EventDegradationChange = "degradation_change"
)

// Represents a recorded SLO breach or degradation transition
type QoSEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	Kind       string    `gorm:"index;not null" json:"kind"`
	TargetName string    `json:"target_name,omitempty"`
	Compliance float64   `json:"compliance,omitempty"`
	FromLevel  string    `json:"from_level,omitempty"`
	ToLevel    string    `json:"to_level,omitempty"`
}

func (QoSEvent) TableName() string {
	return "qos_events"
}
