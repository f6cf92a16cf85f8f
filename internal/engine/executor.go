package engine

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/mrz1836/smartspec/internal/bundle"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// StepExecutor runs all steps of one type. Implementations live in
// internal/workflow/steps and are constructed with their dependencies
// (verifier, gateway, prompt registry); the engine only hands them runtime
// data. A logger travels in ctx via zerolog.Ctx.
type StepExecutor interface {
	// Execute runs one step to completion or to a pause request. A returned
	// error marks the step failed; a result with StatusAwaitingInput asks the
	// engine to raise a human-in-the-loop interrupt.
	Execute(ctx context.Context, req *StepRequest) (*StepResult, error)

	// Type reports which step type this executor handles.
	Type() domain.StepType
}

// StepRequest carries everything an executor needs for one dispatch.
type StepRequest struct {
	// Execution is a read-only copy of the owning execution.
	Execution domain.Execution

	// Step is the descriptor step being run.
	Step domain.WorkflowStep

	// StepIndex is the 1-based linearized position.
	StepIndex int

	// SpecID is the bundle under work; meaningful only when HasSpec is true.
	SpecID domain.SpecID

	// HasSpec reports whether the invocation targets an existing bundle.
	HasSpec bool

	// Args are the frozen invocation arguments.
	Args domain.Args

	// Flags are the frozen universal flags.
	Flags domain.Flags

	// State is the shared, synchronized run state.
	State *State

	// Layout resolves bundle and runtime paths.
	Layout *bundle.Layout

	// Writer performs scope-checked atomic writes.
	Writer *bundle.Writer

	// Progress reports step completion in [0,1]. The engine throttles
	// emission; executors may call it as often as they like. Never nil.
	Progress func(fraction float64)
}

// StepResult is an executor's successful outcome.
type StepResult struct {
	// Status is StepStatusCompleted, or StepStatusAwaitingInput to request a
	// human-in-the-loop pause.
	Status constants.StepStatus

	// Output is recorded in run state under the step name and surfaced to
	// downstream steps.
	Output json.RawMessage

	// Summary is a one-line outcome for logs.
	Summary string

	// Interrupt parameterizes the pause when Status is awaiting input.
	Interrupt *InterruptRequest
}

// InterruptRequest asks the engine to pause the execution for human input.
type InterruptRequest struct {
	// Prompt is what the reviewer is asked.
	Prompt string

	// Timeout overrides the engine's interrupt deadline; zero uses the
	// configured default.
	Timeout time.Duration
}

// ExecutorRegistry resolves step types to executors. Registration happens at
// wiring time; lookups are concurrent during runs.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[domain.StepType]StepExecutor
}

// NewExecutorRegistry creates an empty registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[domain.StepType]StepExecutor),
	}
}

// Register adds an executor, replacing any previous one for the same type.
func (r *ExecutorRegistry) Register(e StepExecutor) {
	if e == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Type()] = e
}

// Get resolves the executor for a step type.
func (r *ExecutorRegistry) Get(t domain.StepType) (StepExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[t]
	if !ok {
		return nil, sserrors.Wrapf(sserrors.ErrExecutorNotFound, "step type %q", t)
	}
	return e, nil
}

// Types lists the registered step types in stable order.
func (r *ExecutorRegistry) Types() []domain.StepType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.StepType, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
