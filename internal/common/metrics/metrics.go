// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScoringAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_attempts_total",
			Help: "Upstream scoring attempts by outcome (success or failure class)",
		},
		[]string{"outcome"},
	)

	ScoringRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_retries_total",
			Help: "Retries scheduled by failure class",
		},
		[]string{"failure_class"},
	)

	ScoringAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoring_attempt_duration_seconds",
			Help:    "Duration of one upstream scoring attempt",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	NormalizedDefaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_normalized_defaults_total",
			Help: "Response fields replaced by their default during normalization",
		},
		[]string{"field"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline invocations by outcome",
		},
		[]string{"outcome"},
	)

	PipelineActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_runs_active",
			Help: "Pipeline invocations currently in flight",
		},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "result_store_operations_total",
			Help: "Result store operations by backend, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)

	TelemetryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_events_total",
			Help: "Analytics events and error reports accepted by the telemetry sink",
		},
		[]string{"kind", "name"},
	)

	TelemetryDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_dropped_total",
			Help: "Telemetry items dropped because the buffer was full",
		},
	)

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
)
