// Package metrics provides an interface for collecting cache-core metrics.
// This package defines a generic interface that can be implemented by
// various metrics systems (Prometheus, OpenTelemetry, Datadog, etc.)
// without adding dependencies to the hishel core.
package metrics

import (
	"time"
)

// Collector defines the interface for metrics collection.
// Implementations of this interface can collect metrics for various
// monitoring systems without requiring changes to the hishel core.
type Collector interface {
	// RecordOperation records one Storage method call.
	// Parameters:
	//   - operation: "CreatePair", "AddResponse", "GetPairs", "UpdatePair", "Remove", "Cleanup"
	//   - backend: storage backend name (e.g., "sqlite", "redis", "leveldb")
	//   - result: "ok" or "error"
	//   - duration: operation duration
	RecordOperation(operation, backend, result string, duration time.Duration)

	// RecordPairsReturned records how many pairs a GetPairs call returned,
	// including zero (a cache miss).
	// Parameters:
	//   - backend: storage backend name
	//   - count: number of pairs returned
	RecordPairsReturned(backend string, count int)

	// RecordDecision records which caching State the proxy reached for a
	// request.
	// Parameters:
	//   - decision: "from_cache", "cache_miss", "need_revalidation",
	//     "store_and_use", "could_not_be_stored"
	RecordDecision(decision string)

	// RecordStaleServed records when a stale response is served, either
	// via stale-while-revalidate or stale-if-error.
	// Parameters:
	//   - reason: "stale_while_revalidate" or "stale_if_error"
	RecordStaleServed(reason string)
}

// NoOpCollector implements Collector with no-op operations.
// This is used as the default collector when metrics are not enabled,
// ensuring zero overhead for users who don't need metrics.
type NoOpCollector struct{}

func (n *NoOpCollector) RecordOperation(operation, backend, result string, duration time.Duration) {}
func (n *NoOpCollector) RecordPairsReturned(backend string, count int)                             {}
func (n *NoOpCollector) RecordDecision(decision string)                                            {}
func (n *NoOpCollector) RecordStaleServed(reason string)                                           {}

// DefaultCollector is the default no-op collector used when metrics are not enabled.
var DefaultCollector Collector = &NoOpCollector{}

var _ Collector = (*NoOpCollector)(nil)
