package models

import "time"

// MetricSuccessRate selects success-rate compliance; any other metric name is
// treated as a latency metric.
const MetricSuccessRate = "success_rate"

type SLOTarget struct {
	Name      string  `json:"name"`
	Metric    string  `json:"metric"`
	Threshold float64 `json:"threshold"`
	// Percentile of the latency distribution compared against Threshold (e.g. 95)
	Percentile    float64 `json:"percentile"`
	WindowMinutes int     `json:"window_minutes"`
	// Fraction of the target below which an alert fires
	AlertThreshold float64 `json:"alert_threshold"`
}

func (t SLOTarget) Window() time.Duration {
	return time.Duration(t.WindowMinutes) * time.Minute
}

func (t SLOTarget) IsSuccessRate() bool {
	return t.Metric == MetricSuccessRate
}
