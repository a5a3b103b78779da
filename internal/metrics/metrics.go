// ABOUTME: Prometheus counters for cache persistence and sync cycles.
// ABOUTME: Registered on the default registry; the reference server exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nutrition"

var (
	CacheFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "flushes_total",
		Help:      "Flushes that found dirty keys to write.",
	})

	CacheStoreWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "store_writes_total",
		Help:      "Values written to the underlying store.",
	})

	CacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "store_write_failures_total",
		Help:      "Underlying store writes that failed and left the key dirty.",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Clean keys removed from the store to reclaim space.",
	})

	SyncCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "cycles_total",
		Help:      "Completed sync cycles by outcome.",
	}, []string{"outcome"})

	ServerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "requests_total",
		Help:      "Sync endpoint requests by method and status code.",
	}, []string{"method", "code"})
)
