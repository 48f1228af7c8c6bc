package qos

import "github.com/aman-churiwal/voice-qos/internal/models"

// Under high load, requests below HIGH get this fraction of their budget.
const highLoadBudgetFactor = 0.8

func priorityMultiplier(p models.Priority) float64 {
	switch p {
	case models.PriorityCritical:
		return 2.0
	case models.PriorityLow:
		return 1.5
	default:
		return 1.0
	}
}

// GetBudgetForPriority scales the default budget: CRITICAL x2, LOW x1.5,
// everything else unchanged.
func (c *Controller) GetBudgetForPriority(p models.Priority) models.LatencyBudget {
	return c.cfg.DefaultLatencyBudget.Scale(priorityMultiplier(p))
}

// GetAdjustedBudget shrinks base for priorities below HIGH while the current
// load exceeds the high-load threshold. HIGH and CRITICAL are never reduced.
func (c *Controller) GetAdjustedBudget(base models.LatencyBudget, p models.Priority) models.LatencyBudget {
	if p > models.PriorityHigh && c.CurrentLoad() > c.cfg.HighLoadThreshold {
		return base.Scale(highLoadBudgetFactor)
	}
	return base
}
