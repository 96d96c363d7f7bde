package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit log.
type Metrics struct {
	Appends        *prometheus.CounterVec
	AppendFailures prometheus.Counter
	AppendLatency  prometheus.Histogram
	SinkFailures   prometheus.Counter
}

// NewMetrics registers the audit log metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Appends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regassist_audit_appends_total",
			Help: "Audit items appended by action",
		}, []string{"action"}),
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regassist_audit_append_failures_total",
			Help: "Audit appends that failed to persist",
		}),
		AppendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "regassist_audit_append_duration_seconds",
			Help:    "Duration of serialized audit appends including persistence",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		SinkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regassist_audit_sink_failures_total",
			Help: "Appended items a sink failed to accept",
		}),
	}
}

func (m *Metrics) observeAppend(action Action, d time.Duration) {
	if m != nil {
		m.Appends.WithLabelValues(string(action)).Inc()
		m.AppendLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) incAppendFailure() {
	if m != nil {
		m.AppendFailures.Inc()
	}
}

func (m *Metrics) incSinkFailure() {
	if m != nil {
		m.SinkFailures.Inc()
	}
}
