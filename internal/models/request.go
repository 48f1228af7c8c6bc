package models

import "time"

// One admitted request. Owned by the admission controller from AcquireSlot
// until ReleaseSlot or preemption.
type RequestContext struct {
	RequestID string        `json:"request_id"`
	SessionID string        `json:"session_id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	Priority  Priority      `json:"priority"`
	StartedAt time.Time     `json:"started_at"`
	Deadline  time.Time     `json:"deadline"`
	Budget    LatencyBudget `json:"budget"`
}

func (r *RequestContext) Elapsed(now time.Time) time.Duration {
	return now.Sub(r.StartedAt)
}
