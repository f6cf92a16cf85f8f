package constants

// ExecutionStatus represents the state of an execution in the engine state machine.
// Status values use snake_case for JSON serialization compatibility.
type ExecutionStatus string

// Execution status constants define the valid states an execution can be in.
// These follow the state machine enforced by the engine:
//
//	Pending → Running
//	Running → Paused, Completed, Failed, Stopped
//	Paused  → Running, Failed, Stopped
const (
	// ExecutionStatusPending indicates an execution is created but not yet started.
	ExecutionStatusPending ExecutionStatus = "pending"

	// ExecutionStatusRunning indicates the engine is actively executing steps.
	ExecutionStatusRunning ExecutionStatus = "running"

	// ExecutionStatusPaused indicates the execution is blocked on a
	// human-in-the-loop interrupt.
	ExecutionStatusPaused ExecutionStatus = "paused"

	// ExecutionStatusCompleted indicates all steps finished successfully.
	ExecutionStatusCompleted ExecutionStatus = "completed"

	// ExecutionStatusFailed indicates a step failed, an interrupt timed out, or
	// the execution was rejected.
	ExecutionStatusFailed ExecutionStatus = "failed"

	// ExecutionStatusStopped indicates the execution was cancelled, either
	// cooperatively or by hard stop after the cancel grace period.
	ExecutionStatusStopped ExecutionStatus = "stopped"
)

// String returns the string representation of the ExecutionStatus.
// This implements fmt.Stringer for convenient logging and debugging.
func (s ExecutionStatus) String() string {
	return string(s)
}

// Terminal reports whether the status is final. Terminal executions never
// change status again; cancel and respond become no-ops or errors.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusStopped:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the engine state machine permits moving
// from s to next.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case ExecutionStatusPending:
		return next == ExecutionStatusRunning || next == ExecutionStatusFailed || next == ExecutionStatusStopped
	case ExecutionStatusRunning:
		return next == ExecutionStatusPaused || next == ExecutionStatusCompleted ||
			next == ExecutionStatusFailed || next == ExecutionStatusStopped
	case ExecutionStatusPaused:
		return next == ExecutionStatusRunning || next == ExecutionStatusFailed || next == ExecutionStatusStopped
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusStopped:
		return false
	default:
		return false
	}
}

// StepStatus represents the state of a single step within an execution.
type StepStatus string

// Step status constants define the states a step can report.
const (
	// StepStatusPending indicates the step has not started yet.
	StepStatusPending StepStatus = "pending"

	// StepStatusRunning indicates the step is executing.
	StepStatusRunning StepStatus = "running"

	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "completed"

	// StepStatusFailed indicates the step returned an error.
	StepStatusFailed StepStatus = "failed"

	// StepStatusSkipped indicates the step was skipped because a sibling failed
	// and the workflow does not continue on error.
	StepStatusSkipped StepStatus = "skipped"

	// StepStatusAwaitingInput indicates the step is paused on a human interrupt.
	StepStatusAwaitingInput StepStatus = "awaiting_input"
)

// String returns the string representation of the StepStatus.
func (s StepStatus) String() string {
	return string(s)
}
