package healthcheck

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Checker probes the upstream pipeline's health endpoint on an interval.
type Checker struct {
	mu          sync.RWMutex
	status      Status
	url         string
	client      *http.Client
	interval    time.Duration
	maxFailures int
	logger      *zap.Logger
}

// Holds health checker configuration
type Config struct {
	Target      string
	Endpoint    string        // Health check endpoint (e.g., "/health")
	Interval    time.Duration // How often to check (default: 10s)
	Timeout     time.Duration // Request timeout (default: 5s)
	MaxFailures int           // Failures before marking unhealthy (default: 3)
}

func NewChecker(cfg Config, logger *zap.Logger) *Checker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "/health"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}

	return &Checker{
		// Assume healthy until proven otherwise
		status: Status{
			Target:    cfg.Target,
			IsHealthy: true,
		},
		url:         cfg.Target + cfg.Endpoint,
		client:      &http.Client{Timeout: cfg.Timeout},
		interval:    cfg.Interval,
		maxFailures: cfg.MaxFailures,
		logger:      logger,
	}
}

// Run checks immediately and then on every interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) error {
	c.logger.Info("Starting upstream health checks",
		zap.String("url", c.url),
		zap.Duration("interval", c.interval),
	)

	c.Check(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Check(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Check performs a single probe. 2xx and 3xx responses count as healthy.
func (c *Checker) Check(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.recordFailure(err)
		return
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.recordFailure(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		c.recordSuccess()
	} else {
		c.recordFailure(nil)
	}
}

// Records a successful health check
func (c *Checker) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.status.LastCheck = now
	c.status.LastSuccess = now
	c.status.FailureCount = 0

	if !c.status.IsHealthy {
		c.logger.Info("Upstream is healthy again", zap.String("target", c.status.Target))
		c.status.IsHealthy = true
	}
}

// Records a failed health check
func (c *Checker) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.status.LastCheck = now
	c.status.LastFailure = now
	c.status.FailureCount++

	if c.status.IsHealthy && c.status.FailureCount >= c.maxFailures {
		c.logger.Warn("Upstream is unhealthy",
			zap.String("target", c.status.Target),
			zap.Int("failures", c.status.FailureCount),
			zap.Error(err),
		)
		c.status.IsHealthy = false
	}
}

func (c *Checker) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.IsHealthy
}

// Returns a copy of the current status
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
