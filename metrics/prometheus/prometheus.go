// Package prometheus provides a Prometheus-backed metrics.Collector.
// This package is optional and only imported when Prometheus metrics are
// needed.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hishelgo/hishel/metrics"
)

// Collector implements metrics.Collector for Prometheus.
type Collector struct {
	operations    *prometheus.CounterVec
	operationTime *prometheus.HistogramVec
	pairsReturned *prometheus.HistogramVec
	decisions     *prometheus.CounterVec
	staleServed   *prometheus.CounterVec
}

// CollectorConfig provides configuration options for the Prometheus collector.
type CollectorConfig struct {
	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
	// Namespace for metrics (default: "hishel").
	Namespace string
	// Subsystem for metrics (optional).
	Subsystem string
	// ConstLabels are labels added to all metrics.
	ConstLabels prometheus.Labels
}

// NewCollector creates a new Prometheus collector with default registry and configuration.
func NewCollector() *Collector {
	return NewCollectorWithConfig(CollectorConfig{})
}

// NewCollectorWithRegistry creates a new Prometheus collector with a custom registry.
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	return NewCollectorWithConfig(CollectorConfig{Registry: reg})
}

// NewCollectorWithConfig creates a new Prometheus collector with custom configuration.
func NewCollectorWithConfig(config CollectorConfig) *Collector {
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = "hishel"
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "storage_operations_total",
				Help:        "Total number of Storage operations",
				ConstLabels: config.ConstLabels,
			},
			[]string{"operation", "backend", "result"},
		),
		operationTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "storage_operation_duration_seconds",
				Help:        "Duration of Storage operations in seconds",
				Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
				ConstLabels: config.ConstLabels,
			},
			[]string{"operation", "backend"},
		),
		pairsReturned: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "storage_pairs_returned",
				Help:        "Number of pairs returned per GetPairs call",
				Buckets:     []float64{0, 1, 2, 5, 10, 25},
				ConstLabels: config.ConstLabels,
			},
			[]string{"backend"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "cache_decisions_total",
				Help:        "Total number of caching decisions reached by the proxy",
				ConstLabels: config.ConstLabels,
			},
			[]string{"decision"},
		),
		staleServed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "stale_responses_served_total",
				Help:        "Total number of stale responses served",
				ConstLabels: config.ConstLabels,
			},
			[]string{"reason"},
		),
	}
}

func (c *Collector) RecordOperation(operation, backend, result string, duration time.Duration) {
	c.operations.WithLabelValues(operation, backend, result).Inc()
	c.operationTime.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

func (c *Collector) RecordPairsReturned(backend string, count int) {
	c.pairsReturned.WithLabelValues(backend).Observe(float64(count))
}

func (c *Collector) RecordDecision(decision string) {
	c.decisions.WithLabelValues(decision).Inc()
}

func (c *Collector) RecordStaleServed(reason string) {
	c.staleServed.WithLabelValues(reason).Inc()
}

var _ metrics.Collector = (*Collector)(nil)
