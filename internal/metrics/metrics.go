// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeThrottled = "throttled"
	OutcomeFailed    = "failed"
	OutcomeNoData    = "no_data"
)

// RecordSweep records a finished sweep.
func (c *Collector) RecordSweep(kind string, duration time.Duration, items int) {
	if m, ok := c.load(SweepDurationType); ok {
		m.(*prometheus.HistogramVec).WithLabelValues(kind).Observe(duration.Seconds())
	}
	if m, ok := c.load(SweepItemsType); ok {
		m.(*prometheus.GaugeVec).WithLabelValues(kind).Set(float64(items))
	}
}

// RecordSweepSkipped counts a sweep rejected by the cooldown guard.
func (c *Collector) RecordSweepSkipped(kind string) {
	if m, ok := c.load(SweepSkippedType); ok {
		m.(*prometheus.CounterVec).WithLabelValues(kind).Inc()
	}
}

// RecordRequest counts one upstream request.
func (c *Collector) RecordRequest(endpoint, outcome string) {
	if m, ok := c.load(RequestCounterType); ok {
		m.(*prometheus.CounterVec).WithLabelValues(endpoint, outcome).Inc()
	}
}

// RecordRoundSkipped counts a position tick dropped while a round was running.
func (c *Collector) RecordRoundSkipped() {
	if m, ok := c.load(RoundsSkippedType); ok {
		m.(prometheus.Counter).Inc()
	}
}

// SetSharedTraders updates the shared roster size.
func (c *Collector) SetSharedTraders(n int) {
	if m, ok := c.load(SharedTradersType); ok {
		m.(prometheus.Gauge).Set(float64(n))
	}
}

// SetQueueDepth updates the pending event count.
func (c *Collector) SetQueueDepth(n int) {
	if m, ok := c.load(QueueDepthType); ok {
		m.(prometheus.Gauge).Set(float64(n))
	}
}

// RecordEvent counts an enqueued position event.
func (c *Collector) RecordEvent(eventType string) {
	if m, ok := c.load(EventsType); ok {
		m.(*prometheus.CounterVec).WithLabelValues(eventType).Inc()
	}
}

// RecordPersistFailure counts a dropped write.
func (c *Collector) RecordPersistFailure(kind string) {
	if m, ok := c.load(PersistFailuresType); ok {
		m.(*prometheus.CounterVec).WithLabelValues(kind).Inc()
	}
}

// RecordControl counts a control-plane request.
func (c *Collector) RecordControl(transport string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	if m, ok := c.load(ControlRequestsType); ok {
		m.(*prometheus.CounterVec).WithLabelValues(transport, result).Inc()
	}
}
