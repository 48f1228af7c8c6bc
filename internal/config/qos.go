package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/models"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// All admission controller tunables. Supplied once at construction.
type QoSConfig struct {
	DefaultLatencyBudget  models.LatencyBudget `json:"default_latency_budget"`
	MaxRequestsPerMinute  int                  `json:"max_requests_per_minute"`
	MaxConcurrentSessions int                  `json:"max_concurrent_sessions"`

	// Accepted and validated, but admission never queues: requests are
	// admitted or rejected immediately.
	MaxQueueSize        int `json:"max_queue_size"`
	QueueTimeoutSeconds int `json:"queue_timeout_seconds"`

	HighLoadThreshold     float64            `json:"high_load_threshold"`
	CriticalLoadThreshold float64            `json:"critical_load_threshold"`
	SLOTargets            []models.SLOTarget `json:"slo_targets"`

	RateLimitBackend        string `json:"rate_limit_backend"` // "memory" "redis"
	SLOCheckIntervalSeconds int    `json:"slo_check_interval_seconds"`
	CleanupIntervalSeconds  int    `json:"cleanup_interval_seconds"`
	SampleRetentionMinutes  int    `json:"sample_retention_minutes"`
	SampleCapacity          int    `json:"sample_capacity"`
}

func DefaultQoSConfig() QoSConfig {
	return QoSConfig{
		DefaultLatencyBudget: models.LatencyBudget{
			STTMs:           300,
			LLMMs:           800,
			TTSMs:           300,
			NetworkBufferMs: 100,
			TotalMs:         1500,
		},
		MaxRequestsPerMinute:  60,
		MaxConcurrentSessions: 100,
		MaxQueueSize:          1000,
		QueueTimeoutSeconds:   30,
		HighLoadThreshold:     0.8,
		CriticalLoadThreshold: 0.95,
		SLOTargets: []models.SLOTarget{
			{
				Name:           "e2e_latency_p95",
				Metric:         "e2e_latency",
				Threshold:      1500,
				Percentile:     95,
				WindowMinutes:  5,
				AlertThreshold: 0.9,
			},
			{
				Name:           "availability",
				Metric:         models.MetricSuccessRate,
				Threshold:      99.5,
				WindowMinutes:  60,
				AlertThreshold: 0.99,
			},
		},
		RateLimitBackend:        RateLimitBackendMemory,
		SLOCheckIntervalSeconds: 30,
		CleanupIntervalSeconds:  60,
		SampleRetentionMinutes:  60,
		SampleCapacity:          50000,
	}
}

// ApplyDefaults fills zero values with the defaults. Explicit values are kept.
func (c *QoSConfig) ApplyDefaults() {
	d := DefaultQoSConfig()

	if c.DefaultLatencyBudget == (models.LatencyBudget{}) {
		c.DefaultLatencyBudget = d.DefaultLatencyBudget
	}
	if c.MaxRequestsPerMinute == 0 {
		c.MaxRequestsPerMinute = d.MaxRequestsPerMinute
	}
	if c.MaxConcurrentSessions == 0 {
		c.MaxConcurrentSessions = d.MaxConcurrentSessions
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.QueueTimeoutSeconds == 0 {
		c.QueueTimeoutSeconds = d.QueueTimeoutSeconds
	}
	if c.HighLoadThreshold == 0 {
		c.HighLoadThreshold = d.HighLoadThreshold
	}
	if c.CriticalLoadThreshold == 0 {
		c.CriticalLoadThreshold = d.CriticalLoadThreshold
	}
	if c.RateLimitBackend == "" {
		c.RateLimitBackend = d.RateLimitBackend
	}
	if c.SLOCheckIntervalSeconds == 0 {
		c.SLOCheckIntervalSeconds = d.SLOCheckIntervalSeconds
	}
	if c.CleanupIntervalSeconds == 0 {
		c.CleanupIntervalSeconds = d.CleanupIntervalSeconds
	}
	if c.SampleRetentionMinutes == 0 {
		c.SampleRetentionMinutes = d.SampleRetentionMinutes
	}
	if c.SampleCapacity == 0 {
		c.SampleCapacity = d.SampleCapacity
	}
}

func (c *QoSConfig) Validate() error {
	if err := c.DefaultLatencyBudget.Validate(); err != nil {
		return fmt.Errorf("%w: default_latency_budget: %v", ErrInvalidConfig, err)
	}
	if c.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("%w: max_requests_per_minute must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("%w: max_concurrent_sessions must be positive", ErrInvalidConfig)
	}
	if c.MaxQueueSize < 0 || c.QueueTimeoutSeconds < 0 {
		return fmt.Errorf("%w: queue settings must not be negative", ErrInvalidConfig)
	}
	if c.HighLoadThreshold <= 0 || c.HighLoadThreshold > 1 {
		return fmt.Errorf("%w: high_load_threshold must be in (0, 1]", ErrInvalidConfig)
	}
	if c.CriticalLoadThreshold <= 0 || c.CriticalLoadThreshold > 1 {
		return fmt.Errorf("%w: critical_load_threshold must be in (0, 1]", ErrInvalidConfig)
	}
	if c.HighLoadThreshold > c.CriticalLoadThreshold {
		return fmt.Errorf("%w: high_load_threshold exceeds critical_load_threshold", ErrInvalidConfig)
	}
	if c.RateLimitBackend != RateLimitBackendMemory && c.RateLimitBackend != RateLimitBackendRedis {
		return fmt.Errorf("%w: unknown rate_limit_backend %q", ErrInvalidConfig, c.RateLimitBackend)
	}
	if c.SLOCheckIntervalSeconds <= 0 || c.CleanupIntervalSeconds <= 0 {
		return fmt.Errorf("%w: loop intervals must be positive", ErrInvalidConfig)
	}
	if c.SampleRetentionMinutes <= 0 || c.SampleCapacity <= 0 {
		return fmt.Errorf("%w: sample retention and capacity must be positive", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.SLOTargets))
	for _, t := range c.SLOTargets {
		if t.Name == "" || t.Metric == "" {
			return fmt.Errorf("%w: slo target needs a name and a metric", ErrInvalidConfig)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate slo target %q", ErrInvalidConfig, t.Name)
		}
		seen[t.Name] = true

		if t.WindowMinutes <= 0 {
			return fmt.Errorf("%w: slo target %q: window_minutes must be positive", ErrInvalidConfig, t.Name)
		}
		if t.AlertThreshold <= 0 || t.AlertThreshold > 1 {
			return fmt.Errorf("%w: slo target %q: alert_threshold must be in (0, 1]", ErrInvalidConfig, t.Name)
		}
		if !t.IsSuccessRate() {
			if t.Percentile <= 0 || t.Percentile > 100 {
				return fmt.Errorf("%w: slo target %q: percentile must be in (0, 100]", ErrInvalidConfig, t.Name)
			}
			if t.Threshold <= 0 {
				return fmt.Errorf("%w: slo target %q: threshold must be positive", ErrInvalidConfig, t.Name)
			}
		}
	}

	return nil
}

func (c *QoSConfig) SLOCheckInterval() time.Duration {
	return time.Duration(c.SLOCheckIntervalSeconds) * time.Second
}

func (c *QoSConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

func (c *QoSConfig) SampleRetention() time.Duration {
	return time.Duration(c.SampleRetentionMinutes) * time.Minute
}

func (c *QoSConfig) QueueTimeout() time.Duration {
	return time.Duration(c.QueueTimeoutSeconds) * time.Second
}
