package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics tracks realtime change fan-out.
type RelayMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	terminal  prometheus.Counter
	backlog   prometheus.Gauge
	batches   prometheus.Counter
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	m := &RelayMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "published_total",
			Help:      "Changes delivered per sink and source table.",
		}, []string{"sink", "table"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "failed_total",
			Help:      "Sink publish failures.",
		}, []string{"sink", "table"}),
		terminal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "terminal_total",
			Help:      "Changes parked after exhausting their attempts.",
		}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "backlog",
			Help:      "Unpublished changes seen at the last poll.",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "batches_total",
			Help:      "Non-empty batches processed.",
		}),
	}
	reg.MustRegister(m.published, m.failed, m.terminal, m.backlog, m.batches)
	return m
}

func (m *RelayMetrics) IncPublished(sink, table string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(label(sink), label(table)).Inc()
}

func (m *RelayMetrics) IncFailed(sink, table string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(label(sink), label(table)).Inc()
}

func (m *RelayMetrics) IncTerminal() {
	if m == nil || m.terminal == nil {
		return
	}
	m.terminal.Inc()
}

func (m *RelayMetrics) SetBacklog(n int64) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(n))
}

func (m *RelayMetrics) IncBatch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
