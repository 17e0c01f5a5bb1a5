// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExtractionSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_sessions_total",
			Help: "Extraction sessions by terminal outcome",
		},
		[]string{"outcome"},
	)

	ExtractionRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_records_total",
			Help: "Decoded extraction records by classification",
		},
		[]string{"kind"},
	)

	ProvisioningCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_calls_total",
			Help: "Provisioning calls by outcome",
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stage_duration_seconds",
			Help:    "Duration of extraction and provisioning stages in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120, 300},
		},
		[]string{"stage", "outcome"},
	)

	StaleUpdatesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_stale_updates_discarded_total",
			Help: "Updates from superseded sessions that were dropped",
		},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Zeebe jobs handled by task type and outcome",
		},
		[]string{"task_type", "outcome"},
	)
)
