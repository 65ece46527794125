package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommandMetrics tracks brain operation outcomes by error code.
type CommandMetrics struct {
	total   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func NewCommandMetrics(reg prometheus.Registerer) *CommandMetrics {
	if reg == nil {
		return &CommandMetrics{}
	}
	m := &CommandMetrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_total",
			Help:      "Brain operations by outcome code (OK on success).",
		}, []string{"operation", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Brain operation latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
	}
	reg.MustRegister(m.total, m.latency)
	return m
}

// Observe records one operation. An empty code means success.
func (m *CommandMetrics) Observe(operation, code string, d time.Duration) {
	if m == nil || m.total == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	m.total.WithLabelValues(label(operation), code).Inc()
	m.latency.WithLabelValues(label(operation)).Observe(d.Seconds())
}
