package qos

import (
	"context"
	"slices"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CheckSLOs evaluates every SLO target over its own window and notifies
// observers of each target whose compliance is below its alert threshold.
// It returns the compliance of every target.
func (c *Controller) CheckSLOs() map[string]float64 {
	results := make(map[string]float64, len(c.cfg.SLOTargets))

	for _, target := range c.cfg.SLOTargets {
		c.mu.Lock()
		cutoff := c.now().Add(-target.Window())
		latencies := c.latencies.since(cutoff)
		outcomes := c.outcomes.since(cutoff)
		c.mu.Unlock()

		slices.Sort(latencies)
		pct := compliance(target, latencies, outcomes)
		results[target.Name] = pct

		if pct >= target.AlertThreshold*100 {
			continue
		}

		c.sloBreaches.Add(1)
		c.logger.Warn("SLO breach",
			zap.String("slo", target.Name),
			zap.String("metric", target.Metric),
			zap.Float64("compliance", pct),
			zap.Float64("alert_threshold", target.AlertThreshold*100),
		)
		for _, o := range c.observers {
			o.OnSLOBreach(target, pct)
		}
	}

	return results
}

// Cleanup discards samples older than the retention period and sweeps idle
// identities from an in-process limiter. Returns the number of samples dropped.
func (c *Controller) Cleanup() int {
	c.mu.Lock()
	cutoff := c.now().Add(-c.cfg.SampleRetention())
	dropped := c.latencies.pruneBefore(cutoff) + c.outcomes.pruneBefore(cutoff)
	c.mu.Unlock()

	identities := 0
	if p, ok := c.limiter.(ratelimit.Pruner); ok {
		identities = p.Prune()
	}

	if dropped > 0 || identities > 0 {
		c.logger.Debug("Pruned samples",
			zap.Int("samples", dropped),
			zap.Int("identities", identities),
		)
	}
	return dropped
}

// Run drives the SLO monitor and sample cleanup loops until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return every(ctx, c.cfg.SLOCheckInterval(), func() { c.CheckSLOs() })
	})
	g.Go(func() error {
		return every(ctx, c.cfg.CleanupInterval(), func() { c.Cleanup() })
	})

	return g.Wait()
}

func every(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-ctx.Done():
			return nil
		}
	}
}

// Start runs the background loops on their own goroutine. Calling Start on a
// running controller does nothing.
func (c *Controller) Start() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	c.logger.Info("Starting QoS background loops",
		zap.Duration("slo_interval", c.cfg.SLOCheckInterval()),
		zap.Duration("cleanup_interval", c.cfg.CleanupInterval()),
	)

	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
}

// Stop cancels the background loops and waits for them to exit.
func (c *Controller) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil

	c.logger.Info("QoS background loops stopped")
}
