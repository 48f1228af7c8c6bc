package qos

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/config"
	"github.com/aman-churiwal/voice-qos/internal/logging"
	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/aman-churiwal/voice-qos/internal/ratelimit"
	"go.uber.org/zap"
)

// Rate limits are counted over a trailing minute.
const rateLimitWindow = time.Minute

// SlotRequest describes a request asking for admission.
type SlotRequest struct {
	RequestID string
	SessionID string
	// UserID is the rate-limited identity; empty skips rate limiting
	UserID   string
	Priority models.Priority
	// Timeout only sets the context deadline; nothing enforces it
	Timeout time.Duration
}

// Decision is the outcome of an admission attempt.
type Decision int

const (
	Admitted Decision = iota
	RejectedInvalid
	RejectedRateLimit
	RejectedCapacity
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case RejectedInvalid:
		return "rejected_invalid"
	case RejectedRateLimit:
		return "rejected_rate_limit"
	case RejectedCapacity:
		return "rejected_capacity"
	default:
		return "unknown"
	}
}

type transition struct {
	from, to models.DegradationAction
}

type RateLimitStatus struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Controller gates concurrent in-flight requests by priority, enforces
// per-identity rate limits and tracks latency and outcome samples.
type Controller struct {
	cfg       config.QoSConfig
	logger    *zap.Logger
	limiter   ratelimit.Limiter
	observers []Observer
	now       func() time.Time

	mu        sync.Mutex
	active    map[string]*models.RequestContext
	latencies *ring[float64]
	outcomes  *ring[bool] // true marks a failed request
	level     models.DegradationAction

	// Level changes queued for observers in the order they happened.
	// delivering is set while a goroutine is draining the queue.
	transitions []transition
	delivering  bool

	admitted          atomic.Int64
	rejectedRateLimit atomic.Int64
	rejectedCapacity  atomic.Int64
	preempted         atomic.Int64
	released          atomic.Int64
	budgetOverruns    atomic.Int64
	sloBreaches       atomic.Int64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg config.QoSConfig, opts ...Option) (*Controller, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SLOTargets = slices.Clone(cfg.SLOTargets)

	c := &Controller{
		cfg:       cfg,
		now:       time.Now,
		active:    make(map[string]*models.RequestContext),
		latencies: newRing[float64](cfg.SampleCapacity),
		outcomes:  newRing[bool](cfg.SampleCapacity),
		level:     models.DegradationNone,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logging.Global()
	}
	if c.limiter == nil {
		c.limiter = ratelimit.NewMemorySlidingWindow(ratelimit.MemoryConfig{
			Limit:   cfg.MaxRequestsPerMinute,
			Window:  rateLimitWindow,
			NowFunc: c.now,
		})
	}

	return c, nil
}

// AcquireSlot asks for admission. It never blocks on other requests and never
// fails: a false result means the caller must not start processing.
//
// When capacity is exhausted, CRITICAL and HIGH requests may preempt a LOW or
// BEST_EFFORT request. The preempted caller is not told; its later
// ReleaseSlot is ignored.
func (c *Controller) AcquireSlot(ctx context.Context, req SlotRequest) (*models.RequestContext, bool) {
	rc, reason := c.Admit(ctx, req)
	return rc, reason == Admitted
}

// Admit is AcquireSlot with the reason for a rejection.
func (c *Controller) Admit(ctx context.Context, req SlotRequest) (*models.RequestContext, Decision) {
	if req.RequestID == "" {
		c.logger.Warn("Rejecting slot request without a request id")
		return nil, RejectedInvalid
	}
	if !req.Priority.Valid() {
		req.Priority = models.PriorityNormal
	}

	if req.UserID != "" && !c.allowIdentity(ctx, req.UserID) {
		c.rejectedRateLimit.Add(1)
		c.logger.Debug("Rate limit exceeded",
			zap.String("request_id", req.RequestID),
			zap.String("user_id", req.UserID),
		)
		return nil, RejectedRateLimit
	}

	c.mu.Lock()

	if _, exists := c.active[req.RequestID]; exists {
		c.mu.Unlock()
		c.logger.Warn("Rejecting duplicate request id", zap.String("request_id", req.RequestID))
		return nil, RejectedInvalid
	}

	var victim *models.RequestContext
	if len(c.active) >= c.cfg.MaxConcurrentSessions {
		if req.Priority.CanPreempt() {
			victim = c.preemptionVictimLocked()
		}
		if victim == nil {
			active := len(c.active)
			c.mu.Unlock()
			c.rejectedCapacity.Add(1)
			c.logger.Debug("Capacity exhausted",
				zap.String("request_id", req.RequestID),
				zap.Stringer("priority", req.Priority),
				zap.Int("active", active),
			)
			return nil, RejectedCapacity
		}
		delete(c.active, victim.RequestID)
	}

	now := c.now()
	budget := c.GetBudgetForPriority(req.Priority)
	deadline := now.Add(budget.Total())
	if req.Timeout > 0 {
		deadline = now.Add(req.Timeout)
	}

	rc := &models.RequestContext{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Priority:  req.Priority,
		StartedAt: now,
		Deadline:  deadline,
		Budget:    budget,
	}
	c.active[rc.RequestID] = rc
	out := *rc
	c.mu.Unlock()

	c.admitted.Add(1)
	if victim != nil {
		c.preempted.Add(1)
		c.logger.Info("Preempted request",
			zap.String("preempted_request_id", victim.RequestID),
			zap.Stringer("preempted_priority", victim.Priority),
			zap.String("request_id", rc.RequestID),
			zap.Stringer("priority", rc.Priority),
		)
	}

	return &out, Admitted
}

// RateLimitStatus reports the limiter state for an identity.
func (c *Controller) RateLimitStatus(ctx context.Context, userID string) (RateLimitStatus, error) {
	remaining, err := c.limiter.Remaining(ctx, userID)
	if err != nil {
		return RateLimitStatus{}, err
	}
	reset, err := c.limiter.Reset(ctx, userID)
	if err != nil {
		return RateLimitStatus{}, err
	}
	return RateLimitStatus{
		Limit:     c.limiter.Limit(),
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

// allowIdentity consults the limiter. Limiter errors fail open.
func (c *Controller) allowIdentity(ctx context.Context, userID string) bool {
	allowed, err := c.limiter.Allow(ctx, userID)
	if err != nil {
		c.logger.Warn("Rate limiter unavailable, failing open",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return true
	}
	return allowed
}

// preemptionVictimLocked picks the lowest-priority preemptable context,
// oldest first on ties. Caller holds mu.
func (c *Controller) preemptionVictimLocked() *models.RequestContext {
	var victim *models.RequestContext
	for _, rc := range c.active {
		if !rc.Priority.Preemptable() {
			continue
		}
		if victim == nil ||
			rc.Priority > victim.Priority ||
			(rc.Priority == victim.Priority && rc.StartedAt.Before(victim.StartedAt)) {
			victim = rc
		}
	}
	return victim
}

// ReleaseSlot reports the outcome of an admitted request. Unknown, already
// released and preempted request ids are ignored.
func (c *Controller) ReleaseSlot(requestID string, latencyMs float64, success bool) {
	c.mu.Lock()

	rc, ok := c.active[requestID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.active, requestID)

	now := c.now()
	c.latencies.push(now, latencyMs)
	c.outcomes.push(now, !success)

	prev := c.level
	c.level = c.evaluateLocked(now)
	if c.level != prev {
		c.transitions = append(c.transitions, transition{from: prev, to: c.level})
	}
	c.mu.Unlock()

	c.released.Add(1)

	if latencyMs > rc.Budget.TotalMs {
		c.budgetOverruns.Add(1)
		c.logger.Warn("Request exceeded latency budget",
			zap.String("request_id", requestID),
			zap.Stringer("priority", rc.Priority),
			zap.Float64("latency_ms", latencyMs),
			zap.Float64("budget_ms", rc.Budget.TotalMs),
		)
	}

	c.deliverTransitions()
}

// deliverTransitions hands queued level changes to observers in order. One
// goroutine delivers at a time; a release that finds delivery in progress
// leaves its transition to that goroutine.
func (c *Controller) deliverTransitions() {
	c.mu.Lock()
	if c.delivering || len(c.transitions) == 0 {
		c.mu.Unlock()
		return
	}
	c.delivering = true

	for len(c.transitions) > 0 {
		next := c.transitions[0]
		c.transitions = c.transitions[1:]
		c.mu.Unlock()

		c.notifyDegradation(next.from, next.to)

		c.mu.Lock()
	}
	c.transitions = nil
	c.delivering = false
	c.mu.Unlock()
}

// evaluateLocked derives the degradation level from the current load and the
// p95 over the metrics window. Caller holds mu.
func (c *Controller) evaluateLocked(now time.Time) models.DegradationAction {
	latencies := c.latencies.since(now.Add(-metricsWindow))
	slices.Sort(latencies)
	return EvaluateDegradation(c.loadLocked(), percentileSorted(latencies, 95), c.cfg)
}

func (c *Controller) notifyDegradation(from, to models.DegradationAction) {
	fields := []zap.Field{
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	}
	if to > from {
		c.logger.Warn("Degradation level raised", fields...)
	} else {
		c.logger.Info("Degradation level lowered", fields...)
	}

	for _, o := range c.observers {
		o.OnDegradationChange(from, to)
	}
}

func (c *Controller) loadLocked() float64 {
	return float64(len(c.active)) / float64(c.cfg.MaxConcurrentSessions)
}

// CurrentLoad returns active requests divided by capacity.
func (c *Controller) CurrentLoad() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *Controller) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// ActiveContexts returns copies of the in-flight contexts, oldest first.
func (c *Controller) ActiveContexts() []models.RequestContext {
	c.mu.Lock()
	out := make([]models.RequestContext, 0, len(c.active))
	for _, rc := range c.active {
		out = append(out, *rc)
	}
	c.mu.Unlock()

	slices.SortFunc(out, func(a, b models.RequestContext) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out
}

// IsActive reports whether requestID currently holds a slot.
func (c *Controller) IsActive(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[requestID]
	return ok
}

func (c *Controller) Stats() models.AdmissionStats {
	return models.AdmissionStats{
		Admitted:          c.admitted.Load(),
		RejectedRateLimit: c.rejectedRateLimit.Load(),
		RejectedCapacity:  c.rejectedCapacity.Load(),
		Preempted:         c.preempted.Load(),
		Released:          c.released.Load(),
		BudgetOverruns:    c.budgetOverruns.Load(),
		SLOBreaches:       c.sloBreaches.Load(),
	}
}

// Config returns a copy of the configuration the controller was built with.
func (c *Controller) Config() config.QoSConfig {
	cfg := c.cfg
	cfg.SLOTargets = slices.Clone(c.cfg.SLOTargets)
	return cfg
}
