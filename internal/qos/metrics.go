package qos

import (
	"slices"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/models"
)

const (
	// Snapshots only look at recent samples
	metricsWindow = 5 * time.Minute

	// Success-rate compliance considers at most this many recent outcomes
	successRateSampleLimit = 1000
)

// Percentile returns the nearest-rank percentile of values without
// interpolation: the element at floor(n*p/100) of the sorted values, clamped
// to the last element. Empty input yields 0.
func Percentile(values []float64, p float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	idx := int(float64(n) * p / 100)
	idx = min(max(idx, 0), n-1)
	return sorted[idx]
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// compliance scores a target in percent. sortedLatencies must be ascending;
// outcomes hold true for failures, oldest first.
func compliance(target models.SLOTarget, sortedLatencies []float64, outcomes []bool) float64 {
	if target.IsSuccessRate() {
		recent := outcomes[max(len(outcomes)-successRateSampleLimit, 0):]
		if len(recent) == 0 {
			return 100
		}
		successes := 0
		for _, failed := range recent {
			if !failed {
				successes++
			}
		}
		return float64(successes) / float64(len(recent)) * 100
	}

	value := percentileSorted(sortedLatencies, target.Percentile)
	if value <= target.Threshold {
		return 100
	}
	return target.Threshold / value * 100
}

// GetCurrentMetrics computes a snapshot over the last five minutes of samples.
func (c *Controller) GetCurrentMetrics() models.QoSMetrics {
	c.mu.Lock()
	now := c.now()
	cutoff := now.Add(-metricsWindow)
	latencies := c.latencies.since(cutoff)
	outcomes := c.outcomes.since(cutoff)
	active := len(c.active)
	load := c.loadLocked()
	level := c.level
	c.mu.Unlock()

	slices.Sort(latencies)

	errors := 0
	for _, failed := range outcomes {
		if failed {
			errors++
		}
	}
	var errorRate float64
	if len(outcomes) > 0 {
		errorRate = float64(errors) / float64(len(outcomes)) * 100
	}

	sloCompliance := make(map[string]float64, len(c.cfg.SLOTargets))
	for _, target := range c.cfg.SLOTargets {
		sloCompliance[target.Name] = compliance(target, latencies, outcomes)
	}

	return models.QoSMetrics{
		Timestamp:         now,
		ActiveRequests:    active,
		Capacity:          c.cfg.MaxConcurrentSessions,
		CurrentLoad:       load,
		QueuedRequests:    0,
		RequestsPerMinute: float64(len(latencies)) / metricsWindow.Minutes(),
		AvgLatencyMs:      average(latencies),
		P95LatencyMs:      percentileSorted(latencies, 95),
		P99LatencyMs:      percentileSorted(latencies, 99),
		ErrorRate:         errorRate,
		SLOCompliance:     sloCompliance,
		DegradationLevel:  level,
	}
}
