package metrics

import (
	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// EventCounter counts SLO breaches and degradation transitions. It satisfies
// the controller's observer interface.
type EventCounter struct {
	breaches    *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func NewEventCounter() *EventCounter {
	return &EventCounter{
		breaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slo",
			Name:      "breaches_total",
			Help:      "SLO checks that fell below the alert threshold.",
		}, []string{"slo"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degradation_transitions_total",
			Help:      "Changes of the degradation level.",
		}, []string{"from", "to"}),
	}
}

func (e *EventCounter) OnSLOBreach(target models.SLOTarget, _ float64) {
	e.breaches.WithLabelValues(target.Name).Inc()
}

func (e *EventCounter) OnDegradationChange(from, to models.DegradationAction) {
	e.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// Collectors returns everything that needs registering.
func (e *EventCounter) Collectors() []prometheus.Collector {
	return []prometheus.Collector{e.breaches, e.transitions}
}

// Register adds the controller collector and the event counters to reg.
func Register(reg prometheus.Registerer, source Source, events *EventCounter) error {
	if err := reg.Register(NewControllerCollector(source)); err != nil {
		return err
	}
	for _, c := range events.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
