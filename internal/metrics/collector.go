package metrics

import (
	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "qos"

var (
	descActiveRequests = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "active_requests"),
		"Requests currently holding an admission slot.",
		nil, nil,
	)
	descCapacity = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "capacity"),
		"Maximum number of concurrent admitted requests.",
		nil, nil,
	)
	descLoad = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "load_ratio"),
		"Active requests divided by capacity.",
		nil, nil,
	)
	descLatency = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "latency_ms"),
		"End-to-end latency over the last five minutes.",
		[]string{"stat"}, nil,
	)
	descErrorRate = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "error_rate_percent"),
		"Share of failed requests over the last five minutes.",
		nil, nil,
	)
	descCompliance = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "slo", "compliance_percent"),
		"Compliance of each SLO target over the last five minutes.",
		[]string{"slo"}, nil,
	)
	descDegradation = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "degradation_level"),
		"Current degradation level as its numeric value.",
		[]string{"level"}, nil,
	)
	descAdmissions = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "admission_decisions_total"),
		"Admission decisions since start, by outcome.",
		[]string{"outcome"}, nil,
	)
	descBudgetOverruns = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "budget_overruns_total"),
		"Released requests whose latency exceeded their budget.",
		nil, nil,
	)
)

// Source is the read side of the admission controller.
type Source interface {
	GetCurrentMetrics() models.QoSMetrics
	Stats() models.AdmissionStats
}

type controllerCollector struct {
	source Source
}

var _ prometheus.Collector = &controllerCollector{}

// NewControllerCollector exposes the controller snapshot and counters at scrape time.
func NewControllerCollector(source Source) prometheus.Collector {
	return &controllerCollector{source: source}
}

func (c *controllerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descActiveRequests
	ch <- descCapacity
	ch <- descLoad
	ch <- descLatency
	ch <- descErrorRate
	ch <- descCompliance
	ch <- descDegradation
	ch <- descAdmissions
	ch <- descBudgetOverruns
}

func (c *controllerCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.source.GetCurrentMetrics()
	stats := c.source.Stats()

	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
	}
	counter := func(desc *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	gauge(descActiveRequests, float64(m.ActiveRequests))
	gauge(descCapacity, float64(m.Capacity))
	gauge(descLoad, m.CurrentLoad)
	gauge(descLatency, m.AvgLatencyMs, "avg")
	gauge(descLatency, m.P95LatencyMs, "p95")
	gauge(descLatency, m.P99LatencyMs, "p99")
	gauge(descErrorRate, m.ErrorRate)
	for name, pct := range m.SLOCompliance {
		gauge(descCompliance, pct, name)
	}
	gauge(descDegradation, float64(m.DegradationLevel), m.DegradationLevel.String())

	counter(descAdmissions, stats.Admitted, "admitted")
	counter(descAdmissions, stats.RejectedRateLimit, "rejected_rate_limit")
	counter(descAdmissions, stats.RejectedCapacity, "rejected_capacity")
	counter(descAdmissions, stats.Preempted, "preempted")
	counter(descBudgetOverruns, stats.BudgetOverruns)
}
