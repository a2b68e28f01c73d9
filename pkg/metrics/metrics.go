// Package metrics provides Prometheus metrics for the fantacircolo service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "fantacircolo"
)

var (
	// Core business metrics.
	eventsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scoring_events_total",
		Help:      "Total number of scoring events recorded.",
	})
	eventsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scoring_events_duplicate_total",
		Help:      "Scoring event submissions rejected as duplicates.",
	})
	fanoutUsers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_users_updated_total",
		Help:      "User totals updated by scoring fan-out.",
	})
	teamsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "teams_committed_total",
		Help:      "Teams committed by users.",
	})
	teamsReset = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "teams_reset_total",
		Help:      "Teams reset by users before the deadline.",
	})
	rescoreRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rescore_runs_total",
		Help:      "Bulk rescore (full recompute) runs.",
	})

	// Store metrics.
	batchCommits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_batch_commits_total",
		Help:      "Atomic batch commits applied to the store.",
	})
	batchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_batch_failures_total",
		Help:      "Atomic batch commits that failed and were rolled back.",
	})

	// Integrity metrics.
	driftUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "score_drift_users",
		Help:      "Users whose stored total diverges from a full recompute.",
	})

	// Operational gauges.
	totalUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "users_total",
		Help:      "Users provisioned in the store.",
	})

	// HTTP metrics.
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request duration in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"endpoint", "method"})
)

// RecordEvent counts a successfully recorded scoring event and the number of
// user totals its fan-out touched.
func RecordEvent(affectedUsers int) {
	eventsRecorded.Inc()
	fanoutUsers.Add(float64(affectedUsers))
}

// RecordEventDuplicate counts a scoring submission rejected as a duplicate.
func RecordEventDuplicate() { eventsDuplicate.Inc() }

// RecordTeamCommitted counts a committed team.
func RecordTeamCommitted() { teamsCommitted.Inc() }

// RecordTeamReset counts a team reset.
func RecordTeamReset() { teamsReset.Inc() }

// RecordRescore counts a bulk rescore run.
func RecordRescore() { rescoreRuns.Inc() }

// RecordBatchCommit counts an applied atomic batch.
func RecordBatchCommit() { batchCommits.Inc() }

// RecordBatchFailure counts a rolled-back atomic batch.
func RecordBatchFailure() { batchFailures.Inc() }

// UpdateDriftUsers sets the number of users with drifted totals.
func UpdateDriftUsers(n int) { driftUsers.Set(float64(n)) }

// UpdateTotalUsers sets the number of provisioned users.
func UpdateTotalUsers(n int) { totalUsers.Set(float64(n)) }

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	httpDuration.WithLabelValues(endpoint, method).Observe(ms)
}
