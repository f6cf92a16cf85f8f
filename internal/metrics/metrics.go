// Package metrics exposes Prometheus collectors for engine, gateway, and
// verifier activity.
//
// All metrics live under the "smartspec" namespace. Collectors are created
// against an injectable Registerer so tests can use isolated registries; a
// nil Registerer falls back to the process-global default.
//
// This package follows strict import rules:
//   - CAN import: standard library, prometheus client
//   - MUST NOT import: any other internal package
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "smartspec"

// Metrics bundles every collector the process records into.
type Metrics struct {
	// Engine collectors.
	executionsStarted  *prometheus.CounterVec
	executionsFinished *prometheus.CounterVec
	stepsTotal         *prometheus.CounterVec
	stepSeconds        *prometheus.HistogramVec
	stepsInFlight      prometheus.Gauge
	interruptsRaised   prometheus.Counter
	interruptsResolved *prometheus.CounterVec
	checkpointsWritten prometheus.Counter

	// Gateway collectors.
	providerCalls   *prometheus.CounterVec
	providerSeconds *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	creditsDebited  prometheus.Counter
	creditsGranted  prometheus.Counter
	rateLimited     prometheus.Counter

	// Verifier collectors.
	verifyRuns    *prometheus.CounterVec
	verifyTasks   *prometheus.CounterVec
	verifySeconds prometheus.Histogram
}

// New creates and registers every collector with reg. A nil reg registers
// against the global default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}

	m.executionsStarted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "executions_started_total",
		Help:      "Workflow executions admitted by the engine.",
	}, []string{"workflow"})

	m.executionsFinished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "executions_finished_total",
		Help:      "Workflow executions that reached a terminal status.",
	}, []string{"workflow", "status"})

	m.stepsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "steps_total",
		Help:      "Step executions by workflow, step type, and outcome.",
	}, []string{"workflow", "step_type", "outcome"})

	m.stepSeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "step_duration_seconds",
		Help:      "Step wall-clock duration from dispatch to completion.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"workflow", "step_type"})

	m.stepsInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "steps_in_flight",
		Help:      "Steps currently executing across all executions.",
	})

	m.interruptsRaised = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "interrupts_raised_total",
		Help:      "Human-in-the-loop pauses raised by human steps.",
	})

	m.interruptsResolved = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "interrupts_resolved_total",
		Help:      "Interrupt resolutions by action (approve, reject, modify, timeout).",
	}, []string{"action"})

	m.checkpointsWritten = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "checkpoints_written_total",
		Help:      "Checkpoints persisted at step boundaries.",
	})

	m.providerCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "provider_calls_total",
		Help:      "Provider chat completions by provider, model, and outcome.",
	}, []string{"provider", "model", "outcome"})

	m.providerSeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "provider_duration_seconds",
		Help:      "Provider round-trip latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"provider", "model"})

	m.tokensTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "tokens_total",
		Help:      "Tokens consumed by direction (input, output).",
	}, []string{"provider", "model", "direction"})

	m.creditsDebited = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "credits_debited_total",
		Help:      "Credits deducted from user balances for completed calls.",
	})

	m.creditsGranted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "credits_granted_total",
		Help:      "Credits granted to user balances by top-ups.",
	})

	m.rateLimited = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-user rate limiter.",
	})

	m.verifyRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verify",
		Name:      "runs_total",
		Help:      "Verifier runs by result (clean, dirty).",
	}, []string{"result"})

	m.verifyTasks = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verify",
		Name:      "tasks_total",
		Help:      "Task verdicts by category.",
	}, []string{"category"})

	m.verifySeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "verify",
		Name:      "run_duration_seconds",
		Help:      "Verifier run wall-clock duration.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
	})

	return m
}

// ExecutionStarted records one admitted execution.
func (m *Metrics) ExecutionStarted(workflow string) {
	if m == nil {
		return
	}
	m.executionsStarted.WithLabelValues(workflow).Inc()
}

// ExecutionFinished records one execution reaching a terminal status.
func (m *Metrics) ExecutionFinished(workflow, status string) {
	if m == nil {
		return
	}
	m.executionsFinished.WithLabelValues(workflow, status).Inc()
}

// StepFinished records a step outcome and its duration.
func (m *Metrics) StepFinished(workflow, stepType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(workflow, stepType, outcome).Inc()
	m.stepSeconds.WithLabelValues(workflow, stepType).Observe(elapsed.Seconds())
}

// StepStarted moves the in-flight gauge up; the returned func moves it back
// down and is safe to call exactly once.
func (m *Metrics) StepStarted() func() {
	if m == nil {
		return func() {}
	}
	m.stepsInFlight.Inc()
	return func() { m.stepsInFlight.Dec() }
}

// InterruptRaised records one human-in-the-loop pause.
func (m *Metrics) InterruptRaised() {
	if m == nil {
		return
	}
	m.interruptsRaised.Inc()
}

// InterruptResolved records an interrupt resolution by action.
func (m *Metrics) InterruptResolved(action string) {
	if m == nil {
		return
	}
	m.interruptsResolved.WithLabelValues(action).Inc()
}

// CheckpointWritten records one persisted checkpoint.
func (m *Metrics) CheckpointWritten() {
	if m == nil {
		return
	}
	m.checkpointsWritten.Inc()
}

// ProviderCall records one provider round trip with its outcome and latency.
func (m *Metrics) ProviderCall(provider, model, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, model, outcome).Inc()
	m.providerSeconds.WithLabelValues(provider, model).Observe(elapsed.Seconds())
}

// Tokens records token consumption for one completed provider call.
func (m *Metrics) Tokens(provider, model string, input, output int64) {
	if m == nil {
		return
	}
	m.tokensTotal.WithLabelValues(provider, model, "input").Add(float64(input))
	m.tokensTotal.WithLabelValues(provider, model, "output").Add(float64(output))
}

// CreditsDebited records credits deducted for a completed call.
func (m *Metrics) CreditsDebited(credits int64) {
	if m == nil || credits <= 0 {
		return
	}
	m.creditsDebited.Add(float64(credits))
}

// CreditsGranted records credits granted by a top-up.
func (m *Metrics) CreditsGranted(credits int64) {
	if m == nil || credits <= 0 {
		return
	}
	m.creditsGranted.Add(float64(credits))
}

// RateLimited records one rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// VerifyRun records one verifier run with its result and duration.
func (m *Metrics) VerifyRun(clean bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "dirty"
	if clean {
		result = "clean"
	}
	m.verifyRuns.WithLabelValues(result).Inc()
	m.verifySeconds.Observe(elapsed.Seconds())
}

// TaskVerdict records one task classification.
func (m *Metrics) TaskVerdict(category string) {
	if m == nil {
		return
	}
	m.verifyTasks.WithLabelValues(category).Inc()
}
