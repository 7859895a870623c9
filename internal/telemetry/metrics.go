// Package telemetry provides observability for deployment runs.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Apply-phase metrics, labeled by operation and outcome.
var (
	ApplyOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratus_apply_operations_total",
		Help: "Instructions executed, by operation and status.",
	}, []string{"op", "status"})

	ApplyRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratus_apply_retries_total",
		Help: "Transient failures retried with backoff.",
	})

	ApplyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stratus_apply_duration_seconds",
		Help:    "Wall time per instruction.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"op"})

	PlanInstructions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stratus_plan_instructions",
		Help: "Instruction count of the last computed plan, by operation.",
	}, []string{"op"})
)
