package reorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rankproxy",
		Subsystem: "reorder",
		Name:      "cache_hits_total",
		Help:      "Number of reorder requests served from the result cache.",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rankproxy",
		Subsystem: "reorder",
		Name:      "cache_misses_total",
		Help:      "Number of reorder requests that fell through to live ranking.",
	})

	cacheErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rankproxy",
		Subsystem: "reorder",
		Name:      "cache_errors_total",
		Help:      "Number of cache lookups that failed and were treated as misses.",
	})

	writeBackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rankproxy",
		Subsystem: "reorder",
		Name:      "write_back_failures_total",
		Help:      "Number of asynchronous cache write-backs that failed.",
	})
)
