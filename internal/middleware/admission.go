package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/aman-churiwal/voice-qos/internal/qos"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	PriorityHeader    = "X-Request-Priority"
	SessionHeader     = "X-Session-ID"
	TimeoutHeader     = "X-Request-Timeout-Ms"
	BudgetHeader      = "X-QoS-Budget-Ms"
	DegradationHeader = "X-QoS-Degradation"
	DisabledHeader    = "X-QoS-Disabled-Features"

	priorityKey       = "qos_priority"
	RequestContextKey = "qos_request"
)

// Admission gates the rest of the chain behind the admission controller.
// Admitted requests carry their budget and the current degradation level
// upstream; the slot is released once the chain returns, with any status
// below 500 counted as a success.
func Admission(ctrl *qos.Controller, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		userID := c.GetString(userIDKey)
		if userID == "" {
			userID = c.ClientIP()
		}

		priority := requestedPriority(c)
		c.Set(priorityKey, priority)

		req := qos.SlotRequest{
			RequestID: requestID,
			SessionID: c.GetHeader(SessionHeader),
			UserID:    userID,
			Priority:  priority,
		}
		if ms, err := strconv.Atoi(c.GetHeader(TimeoutHeader)); err == nil && ms > 0 {
			req.Timeout = time.Duration(ms) * time.Millisecond
		}

		ctx := c.Request.Context()
		rc, decision := ctrl.Admit(ctx, req)
		if decision != qos.Admitted {
			reject(c, ctrl, decision, userID, logger)
			return
		}

		start := time.Now()
		completed := false
		defer func() {
			// A panic leaves completed false and counts as a failure
			success := completed && c.Writer.Status() < http.StatusInternalServerError
			ctrl.ReleaseSlot(rc.RequestID, float64(time.Since(start).Microseconds())/1000, success)
		}()

		level := ctrl.GetDegradationAction()
		budget := ctrl.GetAdjustedBudget(rc.Budget, rc.Priority)
		budgetMs := strconv.FormatFloat(budget.TotalMs, 'f', 0, 64)

		// Tell the pipeline what it may spend and what to switch off
		c.Request.Header.Set(BudgetHeader, budgetMs)
		c.Request.Header.Set(DegradationHeader, level.String())
		if features := qos.DisabledFeatures(level); len(features) > 0 {
			c.Request.Header.Set(DisabledHeader, strings.Join(features, ","))
		}
		c.Header(BudgetHeader, budgetMs)
		c.Header(DegradationHeader, level.String())

		c.Set(RequestContextKey, rc)
		c.Next()
		completed = true
	}
}

// Parses X-Request-Priority, clamped to what the caller's identity allows
func requestedPriority(c *gin.Context) models.Priority {
	priority, err := models.ParsePriority(c.GetHeader(PriorityHeader))
	if err != nil {
		priority = models.PriorityNormal
	}

	if v, ok := c.Get(maxPriorityKey); ok {
		if limit, ok := v.(models.Priority); ok && priority < limit {
			priority = limit
		}
	}
	return priority
}

func reject(c *gin.Context, ctrl *qos.Controller, decision qos.Decision, userID string, logger *zap.Logger) {
	body := gin.H{
		"error":             "Request not admitted",
		"reason":            decision.String(),
		"degradation_level": ctrl.GetDegradationAction(),
	}

	switch decision {
	case qos.RejectedRateLimit:
		status, err := ctrl.RateLimitStatus(c.Request.Context(), userID)
		if err != nil {
			logger.Warn("Failed to read rate limit status", zap.String("user_id", userID), zap.Error(err))
			c.Header("Retry-After", "1")
		} else {
			body["retry_after"] = setRateLimitHeaders(c, status)
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, body)
	case qos.RejectedInvalid:
		c.AbortWithStatusJSON(http.StatusConflict, body)
	default:
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, body)
	}
}
