package interfaces

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics is the production Metrics implementation, registering
// its collectors against the given registerer (typically
// prometheus.DefaultRegisterer).
type PrometheusMetrics struct {
	sent       *prometheus.CounterVec
	received   *prometheus.CounterVec
	reconnects prometheus.Counter
	latency    *prometheus.HistogramVec
	queueDepth *prometheus.GaugeVec
}

// NewPrometheusMetrics builds and registers the collectors.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waxmpp",
			Name:      "stanzas_sent_total",
			Help:      "Outbound stanzas sent, by tag.",
		}, []string{"kind"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waxmpp",
			Name:      "stanzas_received_total",
			Help:      "Inbound stanzas received, by tag.",
		}, []string{"kind"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waxmpp",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts made.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "waxmpp",
			Name:      "request_latency_seconds",
			Help:      "Round-trip latency of tracked IQ requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "waxmpp",
			Name:      "queue_depth",
			Help:      "Current depth of an internal queue.",
		}, []string{"queue"}),
	}
	reg.MustRegister(m.sent, m.received, m.reconnects, m.latency, m.queueDepth)
	return m
}

func (m *PrometheusMetrics) IncSent(kind string)     { m.sent.WithLabelValues(kind).Inc() }
func (m *PrometheusMetrics) IncReceived(kind string) { m.received.WithLabelValues(kind).Inc() }
func (m *PrometheusMetrics) IncReconnect()           { m.reconnects.Inc() }

func (m *PrometheusMetrics) ObserveRequestLatency(kind string, d time.Duration) {
	m.latency.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *PrometheusMetrics) SetQueueDepth(queue string, depth int) {
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}
