package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("warden")

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_event_duration_sec",
	Help: "Total duration of occurrence processing",
}, []string{"kind"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_processed",
	Help: "Number of classified occurrences processed",
}, []string{"kind"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_errors",
	Help: "Number of occurrences which failed processing",
}, []string{"kind"})

var eventDuplicateCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_event_duplicates",
	Help: "Number of re-delivered occurrences skipped",
})

var commandCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_commands",
	Help: "Number of authorized commands executed",
}, []string{"verb"})

var correctionAttemptCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_correction_attempts",
	Help: "Number of corrective calls attempted (including retries)",
}, []string{"action"})

var correctionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_corrections",
	Help: "Number of corrective actions, by final outcome",
}, []string{"action", "status"})

var correctionThrottledCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_corrections_throttled",
	Help: "Number of reactive corrections skipped by the per-thread quota",
}, []string{"action"})

var bulkBatchCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_bulk_batches",
	Help: "Number of bulk enforcement batches issued",
})
