package interfaces

import "time"

// Metrics defines the interface for observing client/session health.
// Implementations can write to Prometheus, StatsD, or any other backend;
// see the prometheus-backed implementation in metrics_prometheus.go.
type Metrics interface {
	// IncSent increments the count of outbound stanzas of the given kind
	// (message, iq, presence, ack...).
	IncSent(kind string)
	// IncReceived increments the count of inbound stanzas of the given kind.
	IncReceived(kind string)
	// IncReconnect counts one reconnect attempt.
	IncReconnect()
	// ObserveRequestLatency records how long a tracked IQ took to resolve.
	ObserveRequestLatency(kind string, d time.Duration)
	// SetQueueDepth reports the current SendQueue/MediaRequestQueue depth.
	SetQueueDepth(queue string, depth int)
}

// NoopMetrics discards everything; the default when no Metrics is wired.
type NoopMetrics struct{}

func (NoopMetrics) IncSent(kind string)                                {}
func (NoopMetrics) IncReceived(kind string)                             {}
func (NoopMetrics) IncReconnect()                                       {}
func (NoopMetrics) ObserveRequestLatency(kind string, d time.Duration) {}
func (NoopMetrics) SetQueueDepth(queue string, depth int)               {}
