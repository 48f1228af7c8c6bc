package models

import "time"

// Point-in-time view of the admission controller
type QoSMetrics struct {
	Timestamp         time.Time          `json:"timestamp"`
	ActiveRequests    int                `json:"active_requests"`
	Capacity          int                `json:"capacity"`
	CurrentLoad       float64            `json:"current_load"`
	QueuedRequests    int                `json:"queued_requests"`
	RequestsPerMinute float64            `json:"requests_per_minute"`
	AvgLatencyMs      float64            `json:"avg_latency_ms"`
	P95LatencyMs      float64            `json:"p95_latency_ms"`
	P99LatencyMs      float64            `json:"p99_latency_ms"`
	ErrorRate         float64            `json:"error_rate"`
	SLOCompliance     map[string]float64 `json:"slo_compliance"`
	DegradationLevel  DegradationAction  `json:"degradation_level"`
}

// Monotonic admission counters since construction
type AdmissionStats struct {
	Admitted          int64 `json:"admitted"`
	RejectedRateLimit int64 `json:"rejected_rate_limit"`
	RejectedCapacity  int64 `json:"rejected_capacity"`
	Preempted         int64 `json:"preempted"`
	Released          int64 `json:"released"`
	BudgetOverruns    int64 `json:"budget_overruns"`
	SLOBreaches       int64 `json:"slo_breaches"`
}
