// Package metrics provides Prometheus metrics for the Granite storage engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "granite"

var (
	// CompactionRequestFailed counts failed compaction attempts per type.
	// Benign "no suitable version" outcomes are never counted here.
	CompactionRequestFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compaction_request_failed_total",
			Help:      "Total failed compaction requests",
		},
		[]string{"compaction_type"}, // "base" or "cumulative"
	)

	// CompactionsInProgress tracks currently executing compaction tasks per type.
	CompactionsInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compactions_in_progress",
			Help:      "Number of compaction tasks currently executing",
		},
		[]string{"compaction_type"}, // base/cumulative/full/single_replica
	)

	// CompactionDuration tracks end-to-end compaction task latency.
	CompactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compaction_duration_seconds",
			Help:      "Compaction task duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"compaction_type", "status"}, // status: success/error
	)

	// CompactionRowsMerged counts input rows consumed by successful merges.
	CompactionRowsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compaction_rows_merged_total",
			Help:      "Total rows read by successful compaction merges",
		},
		[]string{"compaction_type"},
	)

	// CompactionBytesWritten counts merged rowset payload bytes written.
	CompactionBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compaction_bytes_written_total",
			Help:      "Total merged rowset payload bytes written",
		},
	)

	// ObjectStoreOps tracks object store operations.
	ObjectStoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objectstore_ops_total",
			Help:      "Total object store operations",
		},
		[]string{"operation", "status"},
	)

	// ObjectStoreLatency tracks object store operation latency.
	ObjectStoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "objectstore_latency_seconds",
			Help:      "Object store operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// IncCompactionFailed increments the failure counter for a compaction type.
func IncCompactionFailed(compactionType string) {
	CompactionRequestFailed.WithLabelValues(compactionType).Inc()
}

// IncCompactionInProgress marks one more running task of the given type.
func IncCompactionInProgress(compactionType string) {
	CompactionsInProgress.WithLabelValues(compactionType).Inc()
}

// DecCompactionInProgress marks one task of the given type as finished.
func DecCompactionInProgress(compactionType string) {
	CompactionsInProgress.WithLabelValues(compactionType).Dec()
}

// ObserveCompaction records a finished compaction task.
func ObserveCompaction(compactionType string, durationSeconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	CompactionDuration.WithLabelValues(compactionType, status).Observe(durationSeconds)
}

// ObserveMergeOutput records the volume of a successful merge.
func ObserveMergeOutput(compactionType string, rowsRead int64, bytesWritten int64) {
	if rowsRead > 0 {
		CompactionRowsMerged.WithLabelValues(compactionType).Add(float64(rowsRead))
	}
	if bytesWritten > 0 {
		CompactionBytesWritten.Add(float64(bytesWritten))
	}
}

// ObserveObjectStoreOp records an object store operation.
func ObserveObjectStoreOp(operation string, latencySeconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ObjectStoreOps.WithLabelValues(operation, status).Inc()
	ObjectStoreLatency.WithLabelValues(operation).Observe(latencySeconds)
}
