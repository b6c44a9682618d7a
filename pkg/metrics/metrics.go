// Package metrics exposes Prometheus counters for archive searches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Archive retrieval metrics
var (
	ArchivesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listsearch_archives_fetched_total",
			Help: "Total number of archives opened, by where the bytes came from",
		},
		[]string{"source"}, // network, cache, file
	)

	ArchiveFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listsearch_archive_fetch_errors_total",
			Help: "Total number of archive downloads that failed after retries",
		},
	)

	ArchiveFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listsearch_archive_fetch_duration_seconds",
			Help:    "Duration of archive downloads in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	ArchiveBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listsearch_archive_bytes_total",
			Help: "Total number of compressed archive bytes downloaded",
		},
	)
)

// Cache metrics
var (
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listsearch_cache_operations_total",
			Help: "Total number of archive cache operations",
		},
		[]string{"operation", "result"}, // get/put/stale, hit/miss/success/error
	)

	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listsearch_cache_size_bytes",
			Help: "Current size of the archive cache in bytes",
		},
	)
)

// Search metrics
var (
	MessagesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listsearch_messages_scanned_total",
			Help: "Total number of messages evaluated against the query",
		},
	)

	MessagesMatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listsearch_messages_matched_total",
			Help: "Total number of messages that satisfied the query",
		},
	)

	MessagesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listsearch_messages_skipped_total",
			Help: "Total number of messages that could not be parsed",
		},
		[]string{"reason"},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listsearch_sink_errors_total",
			Help: "Total number of failures delivering a match to an output",
		},
		[]string{"sink"},
	)

	ThreadsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listsearch_threads_tracked",
			Help: "Number of message identifiers recorded by threaded search",
		},
	)
)
