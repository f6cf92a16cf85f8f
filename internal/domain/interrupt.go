package domain

import (
	"encoding/json"
	"time"
)

// InterruptAction is the external actor's decision on a paused execution.
type InterruptAction string

// Interrupt actions accepted by Respond.
const (
	// InterruptApprove resumes the execution unchanged.
	InterruptApprove InterruptAction = "approve"

	// InterruptReject fails the execution.
	InterruptReject InterruptAction = "reject"

	// InterruptModify merges the response payload into workflow state, then
	// resumes.
	InterruptModify InterruptAction = "modify"
)

// ValidInterruptAction reports whether s names a supported action.
func ValidInterruptAction(s string) bool {
	switch InterruptAction(s) {
	case InterruptApprove, InterruptReject, InterruptModify:
		return true
	default:
		return false
	}
}

// InterruptResponse is what an external actor posts against a pending
// interrupt.
type InterruptResponse struct {
	// Action is approve, reject, or modify.
	Action InterruptAction `json:"action"`

	// Payload is merged into workflow state for modify; ignored otherwise.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Note is free-form reviewer commentary recorded in the event stream.
	Note string `json:"note,omitempty"`
}

// PendingInterrupt describes one live human-in-the-loop pause.
type PendingInterrupt struct {
	// ID keys the interrupt for Respond calls (UUID).
	ID string `json:"id"`

	// ExecutionID is the paused execution.
	ExecutionID string `json:"execution_id"`

	// StepName is the human step that raised the interrupt.
	StepName string `json:"step_name"`

	// Prompt is what the reviewer is being asked.
	Prompt string `json:"prompt"`

	// RaisedAt is when the execution paused (UTC).
	RaisedAt time.Time `json:"raised_at"`

	// Deadline is when the interrupt expires and the execution fails with
	// interrupt_timeout.
	Deadline time.Time `json:"deadline"`
}
