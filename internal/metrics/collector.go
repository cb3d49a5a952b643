// internal/metrics/collector.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "leaderboard_crawler"

// MetricType names one collector owned by Collector
type MetricType string

const (
	SweepDurationType   MetricType = "sweep_duration"
	SweepItemsType      MetricType = "sweep_items"
	SweepSkippedType    MetricType = "sweep_skipped"
	RequestCounterType  MetricType = "requests"
	RoundsSkippedType   MetricType = "position_rounds_skipped"
	SharedTradersType   MetricType = "shared_traders"
	QueueDepthType      MetricType = "queue_depth"
	EventsType          MetricType = "events"
	PersistFailuresType MetricType = "persist_failures"
	ControlRequestsType MetricType = "control_requests"
)

// Collector owns the crawler's prometheus collectors.
// A nil *Collector is valid and records nothing.
type Collector struct {
	metrics  sync.Map
	registry *prometheus.Registry
}

// NewCollector creates a collector registered on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg}
	c.initializeMetrics(reg)
	return c
}

// Registry returns the registry the collectors live on, for exposition.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) initializeMetrics(reg prometheus.Registerer) {
	metricsMap := map[MetricType]prometheus.Collector{
		SweepDurationType: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of completed sweeps",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"kind"},
		),
		SweepItemsType: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sweep_items",
				Help:      "Items processed by the last sweep of each kind",
			},
			[]string{"kind"},
		),
		SweepSkippedType: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_skipped_total",
				Help:      "Sweeps skipped by the cooldown guard",
			},
			[]string{"kind"},
		),
		RequestCounterType: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Upstream requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		RoundsSkippedType: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "position_rounds_skipped_total",
				Help:      "Position sweep ticks skipped because a round was in flight",
			},
		),
		SharedTradersType: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "shared_traders",
				Help:      "Traders currently in the shared roster",
			},
		),
		QueueDepthType: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_queue_depth",
				Help:      "Events waiting for the persistence consumer",
			},
		),
		EventsType: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "position_events_total",
				Help:      "Position events enqueued by type",
			},
			[]string{"type"},
		),
		PersistFailuresType: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_failures_total",
				Help:      "Dropped persistence writes by record kind",
			},
			[]string{"kind"},
		),
		ControlRequestsType: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "control_requests_total",
				Help:      "Control-plane requests by transport and result",
			},
			[]string{"transport", "result"},
		),
	}

	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		reg.MustRegister(metric)
	}
}

func (c *Collector) load(t MetricType) (prometheus.Collector, bool) {
	if c == nil {
		return nil, false
	}
	m, ok := c.metrics.Load(t)
	if !ok {
		return nil, false
	}
	return m.(prometheus.Collector), true
}

// Reset clears every vector metric (useful in tests)
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}
