// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	FulfillmentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_fulfillment_transitions_total",
			Help: "Fulfillment mode transitions by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	GatewayDegradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_gateway_degraded_total",
			Help: "Delegation gateway calls that fell back to local markers",
		},
		[]string{"operation"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_submissions_total",
			Help: "Final submission attempts by actor role and outcome",
		},
		[]string{"role", "outcome"},
	)

	GuardRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registration_guard_rejections_total",
			Help: "Submissions rejected because one was already in flight",
		},
	)

	GateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "registration_gate_duration_seconds",
			Help:    "Time spent in the step-1 gate including the dwell",
			Buckets: []float64{0.5, 1, 2, 3, 4, 5, 10},
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registration_sessions_active",
			Help: "Open form sessions held by this instance",
		},
	)
)
