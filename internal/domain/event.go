package domain

import "time"

// EventType identifies one kind of engine progress event.
type EventType string

// Engine event types, in rough lifecycle order. The stream for one execution
// is ordered, delivered exactly once per consumer, and terminates at the
// first terminal event (completed, failed, or cancelled).
const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventStepStarted       EventType = "step_started"
	EventStepProgress      EventType = "step_progress"
	EventStepCompleted     EventType = "step_completed"
	EventStepFailed        EventType = "step_failed"
	EventWorkflowPaused    EventType = "workflow_paused"
	EventWorkflowResumed   EventType = "workflow_resumed"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventWorkflowCancelled EventType = "workflow_cancelled"
	EventWorkflowFailed    EventType = "workflow_failed"
)

// Terminal reports whether the event ends its execution's stream.
func (t EventType) Terminal() bool {
	switch t {
	case EventWorkflowCompleted, EventWorkflowCancelled, EventWorkflowFailed:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (t EventType) String() string { return string(t) }

// Event is one record in an execution's progress stream. Events serialize as
// JSON Lines; payload fields absent for a type are omitted.
//
// Example JSON representation:
//
//	{"execution_id":"3f6e...","sequence":4,"event_type":"step_progress",
//	 "timestamp":"2026-01-15T10:00:03Z","step_name":"verify","step_index":2,
//	 "fraction":0.5}
type Event struct {
	// ExecutionID links the event to its execution.
	ExecutionID string `json:"execution_id"`

	// Sequence is the per-execution monotonic event number, starting at 1.
	Sequence int `json:"sequence"`

	// Type identifies the event kind.
	Type EventType `json:"event_type"`

	// Timestamp is the UTC emission time.
	Timestamp time.Time `json:"timestamp"`

	// StepName names the step for step-scoped events.
	StepName string `json:"step_name,omitempty"`

	// StepIndex is the 1-based linearized step position for step-scoped events.
	StepIndex int `json:"step_index,omitempty"`

	// Fraction is the completion fraction in [0,1] for step_progress events.
	Fraction float64 `json:"fraction,omitempty"`

	// Error carries the failure message for step_failed and workflow_failed.
	Error string `json:"error,omitempty"`

	// Reason elaborates pauses and cancellations.
	Reason string `json:"reason,omitempty"`

	// InterruptID identifies the pending interrupt for workflow_paused events.
	InterruptID string `json:"interrupt_id,omitempty"`
}
