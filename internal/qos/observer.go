package qos

import "github.com/aman-churiwal/voice-qos/internal/models"

// Observer receives the controller's outbound events. Callbacks never run
// under the controller lock. Degradation changes arrive one at a time in the
// order they happened, possibly on another releasing goroutine.
type Observer interface {
	OnSLOBreach(target models.SLOTarget, compliancePct float64)
	OnDegradationChange(from, to models.DegradationAction)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	SLOBreach         func(target models.SLOTarget, compliancePct float64)
	DegradationChange func(from, to models.DegradationAction)
}

func (o ObserverFuncs) OnSLOBreach(target models.SLOTarget, compliancePct float64) {
	if o.SLOBreach != nil {
		o.SLOBreach(target, compliancePct)
	}
}

func (o ObserverFuncs) OnDegradationChange(from, to models.DegradationAction) {
	if o.DegradationChange != nil {
		o.DegradationChange(from, to)
	}
}
