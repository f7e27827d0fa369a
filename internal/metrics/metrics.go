// Package metrics provides Prometheus metrics for the treesync engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treesync_sync_tasks_total",
			Help: "Total number of sync tasks executed, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	syncTasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treesync_sync_tasks_in_flight",
			Help: "Number of sync tasks currently awaiting a remote response",
		},
	)

	conflictsResolvedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treesync_conflicts_resolved_total",
			Help: "Total number of content conflicts resolved by the merge algorithm",
		},
	)

	nodesPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treesync_nodes_purged_total",
			Help: "Total number of nodes removed from the local store",
		},
	)

	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treesync_remote_request_duration_seconds",
			Help:    "Remote request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	syncCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treesync_sync_cycles_total",
			Help: "Total number of completed sync cycles",
		},
	)
)

// RecordTask counts one finished sync task.
func RecordTask(action, outcome string) {
	syncTasksTotal.WithLabelValues(action, outcome).Inc()
}

// TaskStarted increments the in-flight task gauge.
func TaskStarted() {
	syncTasksInFlight.Inc()
}

// TaskFinished decrements the in-flight task gauge.
func TaskFinished() {
	syncTasksInFlight.Dec()
}

// RecordConflictResolved counts one resolved content conflict.
func RecordConflictResolved() {
	conflictsResolvedTotal.Inc()
}

// RecordNodesPurged counts nodes removed from the local store.
func RecordNodesPurged(n int) {
	nodesPurgedTotal.Add(float64(n))
}

// RecordRemoteRequest records the duration of one remote request.
func RecordRemoteRequest(method string, start time.Time) {
	remoteRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// RecordSyncCycle counts one completed sync cycle.
func RecordSyncCycle() {
	syncCyclesTotal.Inc()
}
