// Package metrics exports ledger telemetry to Prometheus.
//
// Collector implements engine.Observer and owns its registry, so several
// engines (tests, the harness) never collide on the global registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records per-operation counts and latencies plus ledger state
// gauges.
type Collector struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	active     prometheus.Gauge
	paused     prometheus.Gauge
}

// NewCollector creates a collector. An empty namespace means "landledger".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "landledger"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Journaled ledger operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	c.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time taken to execute and journal an operation",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"operation"},
	)

	c.active = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_auctions",
		Help:      "Parcels currently under auction",
	})

	c.paused = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "paused",
		Help:      "1 while auction participation is paused",
	})

	c.registry.MustRegister(c.operations, c.latency, c.active, c.paused)
	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveOperation records one journaled operation.
func (c *Collector) ObserveOperation(op, outcome string, d time.Duration) {
	c.operations.WithLabelValues(op, outcome).Inc()
	c.latency.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveState records the ledger state after an operation.
func (c *Collector) ObserveState(active int, paused bool) {
	c.active.Set(float64(active))
	if paused {
		c.paused.Set(1)
	} else {
		c.paused.Set(0)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
