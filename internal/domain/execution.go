package domain

import (
	"encoding/json"
	"time"

	"github.com/mrz1836/smartspec/internal/constants"
)

// Execution is the runtime instance of one workflow invocation. Identity is
// immutable: workflow name and arguments never change after creation; only
// status, progress, and the checkpoint pointer advance.
//
// Example JSON representation:
//
//	{
//	    "id": "3f6e2c1a-8c7f-4f2e-9b11-0d5cb8f4a001",
//	    "workflow": "verify_tasks",
//	    "spec_id": "spec-feat-012-user-auth",
//	    "args": {"spec": "spec-feat-012-user-auth"},
//	    "status": "running",
//	    "total_steps": 3,
//	    "current_step": 1,
//	    "started_at": "2026-01-15T10:00:00Z",
//	    "schema_version": "1.0"
//	}
type Execution struct {
	// ID is the unique execution identifier (UUID).
	ID string `json:"id"`

	// Workflow is the descriptor name this execution runs.
	Workflow string `json:"workflow"`

	// SpecID is the bundle the execution operates on, when it has one.
	SpecID string `json:"spec_id,omitempty"`

	// Args are the frozen invocation arguments.
	Args Args `json:"args,omitempty"`

	// Flags are the frozen universal flags of the invocation.
	Flags Flags `json:"flags"`

	// Status is the current lifecycle state.
	Status constants.ExecutionStatus `json:"status"`

	// TotalSteps is the linearized step count.
	TotalSteps int `json:"total_steps"`

	// CurrentStep is the 1-based index of the step in flight; 0 before the
	// first step starts.
	CurrentStep int `json:"current_step"`

	// Error holds the terminal failure message for failed executions.
	Error string `json:"error,omitempty"`

	// StartedAt is when the engine admitted the execution (UTC).
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the execution reached a terminal status; nil while
	// pending, running, or paused.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// LatestCheckpointID points at the newest checkpoint, empty before the
	// first one is written.
	LatestCheckpointID string `json:"latest_checkpoint_id,omitempty"`

	// SchemaVersion tracks the persisted format for future migrations.
	SchemaVersion string `json:"schema_version"`
}

// Terminal reports whether the execution reached a final status.
func (e *Execution) Terminal() bool {
	return e.Status.Terminal()
}

// Checkpoint is a serialized state snapshot at a step boundary. step_index K
// means "state after completing K steps": K=0 precedes the first step, and a
// completed N-step execution ends with K=N.
type Checkpoint struct {
	// ID is the unique checkpoint identifier (UUID).
	ID string `json:"id"`

	// ExecutionID links the checkpoint to its execution.
	ExecutionID string `json:"execution_id"`

	// StepIndex is the boundary position; strictly increasing per execution.
	StepIndex int `json:"step_index"`

	// StepName is the step completed at this boundary, empty at index 0.
	StepName string `json:"step_name,omitempty"`

	// State is the serialized workflow state snapshot.
	State json.RawMessage `json:"state"`

	// Note describes the boundary ("entering step 2", "completed step 2").
	Note string `json:"note"`

	// CreatedAt is the UTC write time.
	CreatedAt time.Time `json:"created_at"`
}
