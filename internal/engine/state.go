package engine

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// StepRecord tracks one step's progress inside a state snapshot. Records are
// created in linearized order at admission and mutated as the run advances.
type StepRecord struct {
	// Name is the step name from the descriptor.
	Name string `json:"name"`

	// Type selects the executor.
	Type domain.StepType `json:"type"`

	// Index is the 1-based linearized position.
	Index int `json:"index"`

	// Status is the step's current lifecycle state.
	Status constants.StepStatus `json:"status"`

	// Attempts counts how many times the step has been dispatched, across
	// resumes.
	Attempts int `json:"attempts,omitempty"`

	// StartedAt is when the most recent attempt began (UTC).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// EndedAt is when the most recent attempt finished (UTC).
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// Error holds the failure message for failed attempts.
	Error string `json:"error,omitempty"`
}

// RunState is the serializable workflow state snapshotted into checkpoints.
// It is opaque to the store; the engine owns its shape. step_index K in a
// checkpoint corresponds to K records with status completed.
type RunState struct {
	// Workflow is the descriptor name, recorded for resume sanity checks.
	Workflow string `json:"workflow"`

	// SpecID is the bundle the run operates on, when it has one.
	SpecID string `json:"spec_id,omitempty"`

	// Args are the frozen invocation arguments.
	Args domain.Args `json:"args,omitempty"`

	// Steps holds one record per step in linearized order.
	Steps []*StepRecord `json:"steps"`

	// Outputs maps step name to that step's serialized output.
	Outputs map[string]json.RawMessage `json:"outputs,omitempty"`

	// Data is the shared key/value surface steps read and write; modify
	// responses merge into it.
	Data map[string]json.RawMessage `json:"data,omitempty"`

	// SchemaVersion tracks the snapshot format for future migrations.
	SchemaVersion string `json:"schema_version"`
}

// newRunState builds the initial state for a fresh execution. order holds
// indexes into d.Steps in linearized order.
func newRunState(d *domain.Descriptor, order []int, specID string, args domain.Args) *RunState {
	steps := make([]*StepRecord, 0, len(order))
	for pos, si := range order {
		steps = append(steps, &StepRecord{
			Name:   d.Steps[si].Name,
			Type:   d.Steps[si].Type,
			Index:  pos + 1,
			Status: constants.StepStatusPending,
		})
	}
	return &RunState{
		Workflow:      d.Name,
		SpecID:        specID,
		Args:          args.Clone(),
		Steps:         steps,
		Outputs:       make(map[string]json.RawMessage),
		Data:          make(map[string]json.RawMessage),
		SchemaVersion: constants.ExecutionSchemaVersion,
	}
}

// decodeRunState deserializes a checkpoint snapshot as-is.
func decodeRunState(raw json.RawMessage) (*RunState, error) {
	var s RunState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, sserrors.Wrap(err, "decoding state snapshot")
	}
	if s.Outputs == nil {
		s.Outputs = make(map[string]json.RawMessage)
	}
	if s.Data == nil {
		s.Data = make(map[string]json.RawMessage)
	}
	return &s, nil
}

// restoreRunState deserializes a checkpoint snapshot and normalizes it for
// re-entry: completed records stay completed, everything else resets to
// pending so the scheduler re-dispatches it.
func restoreRunState(raw json.RawMessage, workflow string) (*RunState, error) {
	s, err := decodeRunState(raw)
	if err != nil {
		return nil, err
	}
	if s.SchemaVersion != constants.ExecutionSchemaVersion {
		return nil, sserrors.Wrapf(sserrors.ErrSchemaVersion,
			"snapshot version %q, engine version %q", s.SchemaVersion, constants.ExecutionSchemaVersion)
	}
	if s.Workflow != workflow {
		return nil, sserrors.Wrapf(sserrors.ErrNotResumable,
			"snapshot belongs to workflow %q, execution runs %q", s.Workflow, workflow)
	}
	for _, rec := range s.Steps {
		if rec.Status != constants.StepStatusCompleted {
			rec.Status = constants.StepStatusPending
			rec.Error = ""
			rec.EndedAt = nil
		}
	}
	return s, nil
}

// State is the synchronized view over a RunState shared by the scheduler and
// the step executors of one execution.
type State struct {
	mu  sync.Mutex
	doc *RunState
}

// NewState wraps a RunState for concurrent use.
func NewState(doc *RunState) *State {
	return &State{doc: doc}
}

// Output returns the recorded output of a completed step.
func (s *State) Output(step string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.doc.Outputs[step]
	return out, ok
}

// SetOutput records a step's output under its name.
func (s *State) SetOutput(step string, out json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Outputs[step] = out
}

// Value returns one entry from the shared data surface.
func (s *State) Value(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.doc.Data[key]
	return v, ok
}

// SetValue writes one entry on the shared data surface.
func (s *State) SetValue(key string, v json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Data[key] = v
}

// SetString writes a string entry on the shared data surface.
func (s *State) SetString(key, v string) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.SetValue(key, raw)
}

// StringValue reads a string entry from the shared data surface.
func (s *State) StringValue(key string) (string, bool) {
	raw, ok := s.Value(key)
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// mergePayload merges a modify response's JSON object into the data surface.
// Top-level keys overwrite; a non-object payload is rejected.
func (s *State) mergePayload(payload json.RawMessage) error {
	if len(payload) == 0 {
		return nil
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(payload, &patch); err != nil {
		return sserrors.Wrap(err, "decoding modify payload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range patch {
		s.doc.Data[k] = v
	}
	return nil
}

// snapshot serializes the current state for a checkpoint.
func (s *State) snapshot() (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(s.doc)
	if err != nil {
		return nil, sserrors.Wrap(err, "encoding state snapshot")
	}
	return raw, nil
}

// record returns the step record by name, or nil.
func (s *State) record(name string) *StepRecord {
	for _, rec := range s.doc.Steps {
		if rec.Name == name {
			return rec
		}
	}
	return nil
}

// markStarted transitions a step to running and stamps the attempt.
func (s *State) markStarted(name string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.record(name); rec != nil {
		rec.Status = constants.StepStatusRunning
		rec.Attempts++
		t := now.UTC()
		rec.StartedAt = &t
		rec.EndedAt = nil
		rec.Error = ""
	}
}

// markAwaiting flags a step as paused on a human interrupt.
func (s *State) markAwaiting(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.record(name); rec != nil {
		rec.Status = constants.StepStatusAwaitingInput
	}
}

// markCompleted finalizes a step as successful and returns the new count of
// completed steps, which is the checkpoint index for this boundary.
func (s *State) markCompleted(name string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.record(name); rec != nil {
		rec.Status = constants.StepStatusCompleted
		t := now.UTC()
		rec.EndedAt = &t
	}
	return s.completedCountLocked()
}

// markFailed finalizes a step as failed.
func (s *State) markFailed(name string, now time.Time, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.record(name); rec != nil {
		rec.Status = constants.StepStatusFailed
		t := now.UTC()
		rec.EndedAt = &t
		rec.Error = errMsg
	}
}

// markSkipped flags every still-pending step as skipped. Used when a sibling
// failure ends the run before they dispatch.
func (s *State) markSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.doc.Steps {
		if rec.Status == constants.StepStatusPending {
			rec.Status = constants.StepStatusSkipped
		}
	}
}

// stepStatus returns the current status of one step, or empty for unknown
// names.
func (s *State) stepStatus(name string) constants.StepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.record(name); rec != nil {
		return rec.Status
	}
	return ""
}

// completedCount returns how many steps have completed.
func (s *State) completedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedCountLocked()
}

func (s *State) completedCountLocked() int {
	n := 0
	for _, rec := range s.doc.Steps {
		if rec.Status == constants.StepStatusCompleted {
			n++
		}
	}
	return n
}

// completedSet returns the names of completed steps.
func (s *State) completedSet() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := make(map[string]bool)
	for _, rec := range s.doc.Steps {
		if rec.Status == constants.StepStatusCompleted {
			done[rec.Name] = true
		}
	}
	return done
}

// Records returns a point-in-time copy of every step record in linearized
// order. Report steps use it to summarize the run they belong to.
func (s *State) Records() []StepRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepRecord, 0, len(s.doc.Steps))
	for _, rec := range s.doc.Steps {
		out = append(out, *rec)
	}
	return out
}
