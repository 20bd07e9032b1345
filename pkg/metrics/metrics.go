// Package metrics defines the process-wide prometheus instruments. All
// collectors register on the default registry; pkg/api exposes them on
// /metrics via promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "polis"

var (
	// PipelineRuns counts completed agent pipeline executions.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Completed agent pipeline executions by agent type and decision.",
	}, []string{"agent_type", "decision"})

	// PipelineDuration observes wall-clock pipeline execution time.
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "Agent pipeline execution time by agent type.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"agent_type"})

	// CoordinationRuns counts coordination workflow executions.
	CoordinationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "coordination",
		Name:      "runs_total",
		Help:      "Coordination runs by final decision and resolution method.",
	}, []string{"decision", "method"})

	// CoordinationDuration observes coordination workflow execution time.
	CoordinationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "coordination",
		Name:      "duration_seconds",
		Help:      "Coordination workflow execution time.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	})

	// ConflictsDetected counts detected conflicts by type.
	ConflictsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "coordination",
		Name:      "conflicts_total",
		Help:      "Detected conflicts by conflict type.",
	}, []string{"type"})

	// Resolutions counts produced resolutions by method and decision.
	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "coordination",
		Name:      "resolutions_total",
		Help:      "Conflict resolutions by method and decision.",
	}, []string{"method", "decision"})

	// Escalations counts human escalations raised, by urgency.
	Escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "human",
		Name:      "escalations_total",
		Help:      "Escalations raised for human approval, by urgency.",
	}, []string{"urgency"})

	// HumanDecisions counts acquired human decisions, by outcome status.
	HumanDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "human",
		Name:      "decisions_total",
		Help:      "Acquired human decisions by outcome status.",
	}, []string{"status"})

	// LLMRequests counts chat-completion calls by outcome.
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Chat-completion requests by outcome.",
	}, []string{"outcome"})

	// LLMFallbacks counts deterministic fallbacks taken when the LLM path
	// failed or returned malformed output.
	LLMFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "fallbacks_total",
		Help:      "Deterministic fallbacks taken instead of an LLM result, by component.",
	}, []string{"component"})

	// QueueDepth tracks the number of requests waiting in the async queue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Requests currently waiting in the async queue.",
	})

	// QueueSubmissions counts async submissions by outcome.
	QueueSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "submissions_total",
		Help:      "Async request submissions by outcome.",
	}, []string{"outcome"})

	// BusMessages counts inter-agent messages published to the bus.
	BusMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bus",
		Name:      "messages_total",
		Help:      "Inter-agent messages published, by message type.",
	}, []string{"type"})

	// HTTPRequests counts API requests by route and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by method, route and status.",
	}, []string{"method", "route", "status"})
)

// ObservePipeline records one finished pipeline run.
func ObservePipeline(agentType, decision string, duration time.Duration) {
	PipelineRuns.WithLabelValues(agentType, decision).Inc()
	PipelineDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

// ObserveCoordination records one finished coordination run.
func ObserveCoordination(decision, method string, duration time.Duration) {
	CoordinationRuns.WithLabelValues(decision, method).Inc()
	CoordinationDuration.Observe(duration.Seconds())
}
