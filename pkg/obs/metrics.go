// Package obs exposes Prometheus collectors for the location store.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Write path

	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailstore_writes_total",
			Help: "Location records durably appended, by tier",
		},
		[]string{"tier"},
	)

	WriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailstore_write_errors_total",
			Help: "Location record writes that failed after partition resolution",
		},
	)

	WriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trailstore_write_duration_seconds",
			Help:    "End-to-end duration of RecordLocation calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Read path

	QueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailstore_queries_total",
			Help: "History queries served",
		},
	)

	QueryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailstore_query_errors_total",
			Help: "History queries that failed for every candidate partition",
		},
	)

	QueryPartialFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailstore_query_partial_failures_total",
			Help: "Per-partition sub-query failures absorbed into empty contributions",
		},
	)

	QueryFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trailstore_query_fanout_partitions",
			Help:    "Number of candidate partitions touched per history query",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trailstore_query_duration_seconds",
			Help:    "End-to-end duration of QueryHistory calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Partition registry

	PartitionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailstore_partitions_created_total",
			Help: "Physical partitions provisioned by the registry",
		},
	)

	PartitionsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailstore_partitions_dropped_total",
			Help: "Physical partitions dropped during erasure",
		},
	)

	RegistrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trailstore_registry_partitions",
			Help: "Partition handles currently held by the in-process registry",
		},
	)

	// Tier classification

	ClassificationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailstore_tier_classification_fallbacks_total",
			Help: "Tier lookups that failed open to the standard tier",
		},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trailstore_circuit_breaker_state",
			Help: "Subject directory circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Maintenance

	StorageBytesUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trailstore_storage_bytes_used",
			Help: "On-disk size of the data directory",
		},
	)

	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailstore_maintenance_runs_total",
			Help: "Maintenance job executions, by job and outcome",
		},
		[]string{"job", "status"},
	)

	ErasuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailstore_erasures_total",
			Help: "Data-subject erasure requests, by outcome",
		},
		[]string{"status"},
	)
)
