package handler

import (
	"net/http"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/aman-churiwal/voice-qos/internal/qos"
	"github.com/aman-churiwal/voice-qos/internal/service"
	"github.com/gin-gonic/gin"
)

// QoSHandler exposes the admission controller to operators
type QoSHandler struct {
	ctrl   *qos.Controller
	tokens *service.TokenService
}

func NewQoSHandler(ctrl *qos.Controller, tokens *service.TokenService) *QoSHandler {
	return &QoSHandler{ctrl: ctrl, tokens: tokens}
}

// Handles GET /admin/qos/metrics
func (h *QoSHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.GetCurrentMetrics())
}

// Handles GET /admin/qos/stats
func (h *QoSHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Stats())
}

// Handles GET /admin/qos/active
func (h *QoSHandler) Active(c *gin.Context) {
	active := h.ctrl.ActiveContexts()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(active),
		"capacity": h.ctrl.Config().MaxConcurrentSessions,
		"requests": active,
	})
}

// Handles GET /admin/qos/degradation
func (h *QoSHandler) Degradation(c *gin.Context) {
	level := h.ctrl.GetDegradationAction()
	c.JSON(http.StatusOK, gin.H{
		"level":             level,
		"current_load":      h.ctrl.CurrentLoad(),
		"disabled_features": qos.DisabledFeatures(level),
	})
}

// Handles GET /admin/qos/features/:name
func (h *QoSHandler) Feature(c *gin.Context) {
	name := c.Param("name")
	c.JSON(http.StatusOK, gin.H{
		"feature":  name,
		"degraded": h.ctrl.ShouldDegrade(name),
	})
}

// Handles GET /admin/qos/budget/:priority
func (h *QoSHandler) Budget(c *gin.Context) {
	priority, err := models.ParsePriority(c.Param("priority"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	budget := h.ctrl.GetBudgetForPriority(priority)
	c.JSON(http.StatusOK, gin.H{
		"priority": priority,
		"budget":   budget,
		"adjusted": h.ctrl.GetAdjustedBudget(budget, priority),
	})
}

// Handles GET /admin/qos/slo
func (h *QoSHandler) SLOs(c *gin.Context) {
	cfg := h.ctrl.Config()
	compliance := h.ctrl.GetCurrentMetrics().SLOCompliance

	targets := make([]gin.H, 0, len(cfg.SLOTargets))
	for _, target := range cfg.SLOTargets {
		targets = append(targets, gin.H{
			"target":     target,
			"compliance": compliance[target.Name],
			"alerting":   compliance[target.Name] < target.AlertThreshold*100,
		})
	}
	c.JSON(http.StatusOK, targets)
}

type issueTokenRequest struct {
	UserID      string          `json:"user_id" binding:"required"`
	MaxPriority models.Priority `json:"max_priority"`
}

// Handles POST /admin/qos/tokens
func (h *QoSHandler) IssueToken(c *gin.Context) {
	if h.tokens == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Token issuing is disabled"})
		return
	}

	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxPriority == 0 {
		req.MaxPriority = models.PriorityNormal
	}

	token, err := h.tokens.Issue(req.UserID, req.MaxPriority)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":        token,
		"max_priority": req.MaxPriority,
		"issued_at":    time.Now().UTC(),
	})
}
