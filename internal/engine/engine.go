// Package engine executes workflows as checkpointed step DAGs.
//
// One Engine instance serves the whole process. Admission validates the
// invocation, takes the bundle writer lock, and persists the execution;
// the run itself happens on a detached goroutine so Execute returns the
// execution id immediately. Steps run concurrently up to the descriptor's
// parallelism bound inside an errgroup, with a process-wide semaphore
// capping steps in flight across executions. A checkpoint is written at
// every step boundary; progress is published on an ordered, exactly-once
// event stream that is flushed to events.jsonl when the run ends.
//
// This package follows strict import rules:
//   - CAN import: internal/bundle, internal/clock, internal/config,
//     internal/constants, internal/ctxutil, internal/domain,
//     internal/errors, internal/metrics, internal/store, internal/workflow
//   - MUST NOT import: internal/cli, internal/orchestrator, internal/tui
package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/smartspec/internal/bundle"
	"github.com/mrz1836/smartspec/internal/clock"
	"github.com/mrz1836/smartspec/internal/config"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/metrics"
	"github.com/mrz1836/smartspec/internal/store"
	"github.com/mrz1836/smartspec/internal/workflow"
)

// Engine admits, runs, pauses, resumes, and cancels workflow executions.
type Engine struct {
	store     *store.Store
	registry  *workflow.Registry
	executors *ExecutorRegistry
	layout    *bundle.Layout
	guard     *bundle.Guard
	locks     *bundle.Mutex
	events    *Broadcaster
	pauses    *Interrupts
	clock     clock.Clock
	cfg       config.EngineConfig
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	sem       *semaphore.Weighted

	mu   sync.Mutex
	runs map[string]*run
	wg   sync.WaitGroup
}

// run is the in-memory handle for one live execution.
type run struct {
	exec    *domain.Execution
	desc    *domain.Descriptor
	order   []int
	state   *State
	writer  *bundle.Writer
	specID  domain.SpecID
	hasSpec bool
	resumed bool
	release func()

	cancel context.CancelCauseFunc
	done   chan struct{}

	finishOnce sync.Once

	// progressMu serializes execution-row updates from parallel steps.
	progressMu sync.Mutex

	// checkpointMu serializes the markCompleted -> SaveCheckpoint pair.
	// Siblings in a parallel wave finishing together must reach the store
	// in the same order they took their completion counts, or the store's
	// strict step_index monotonicity rejects the late writer.
	checkpointMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock substitutes the time source, for tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine's base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics attaches Prometheus collectors. A nil Metrics records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithConfig overrides the engine configuration.
func WithConfig(cfg config.EngineConfig) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// New creates an Engine over the given store, workflow registry, step
// executors, and bundle layout.
func New(st *store.Store, registry *workflow.Registry, executors *ExecutorRegistry, layout *bundle.Layout, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		registry:  registry,
		executors: executors,
		layout:    layout,
		guard:     bundle.NewGuard(layout.Root()),
		locks:     bundle.NewMutex(layout),
		events:    NewBroadcaster(),
		pauses:    NewInterrupts(),
		clock:     clock.RealClock{},
		cfg:       config.DefaultConfig().Engine,
		logger:    zerolog.Nop(),
		runs:      make(map[string]*run),
	}
	for _, opt := range opts {
		opt(e)
	}

	limit := e.cfg.MaxConcurrentExecutions
	if limit < 1 {
		limit = constants.DefaultFanOut
	}
	e.sem = semaphore.NewWeighted(int64(limit))
	return e
}

// ExecuteRequest is one workflow invocation.
type ExecuteRequest struct {
	// Workflow is the descriptor name to run.
	Workflow string

	// Args are the caller's named arguments.
	Args domain.Args

	// Flags are the universal flags of the invocation.
	Flags domain.Flags
}

// admission is the outcome of validating an ExecuteRequest.
type admission struct {
	desc    *domain.Descriptor
	args    domain.Args
	order   []int
	specID  domain.SpecID
	hasSpec bool
}

// Validate checks an invocation without running it: workflow lookup,
// argument validation, governance flags, step graph linearization, and spec
// existence. The returned descriptor is a private clone.
func (e *Engine) Validate(ctx context.Context, req ExecuteRequest) (*domain.Descriptor, error) {
	adm, err := e.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	return adm.desc, nil
}

func (e *Engine) admit(ctx context.Context, req ExecuteRequest) (*admission, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	desc, err := e.registry.Get(req.Workflow)
	if err != nil {
		return nil, err
	}

	args, err := workflow.ValidateInvocation(desc, req.Args)
	if err != nil {
		return nil, err
	}

	if err := workflow.CheckGovernance(desc, req.Flags); err != nil {
		return nil, err
	}

	order, err := workflow.Linearize(desc)
	if err != nil {
		return nil, err
	}

	adm := &admission{desc: desc, args: args, order: order}

	if raw, ok := args["spec"]; ok && raw != "" {
		id, err := domain.ParseSpecID(raw)
		if err != nil {
			return nil, err
		}
		if _, err := e.layout.FindSpec(id); err != nil {
			return nil, err
		}
		adm.specID = id
		adm.hasSpec = true
	}

	return adm, nil
}

// Execute admits and starts one workflow execution, returning the persisted
// execution immediately; the run proceeds on a background goroutine. A
// validate-only invocation is refused with ErrValidateOnly after validation
// succeeds — nothing is created and nothing runs.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (*domain.Execution, error) {
	adm, err := e.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Flags.ValidateOnly {
		return nil, sserrors.Wrapf(sserrors.ErrValidateOnly, "workflow %s validated", adm.desc.Name)
	}

	var release func()
	if adm.hasSpec && !adm.desc.Effects.ReadOnly() {
		release, err = e.locks.Acquire(adm.specID)
		if err != nil {
			return nil, err
		}
	}

	now := e.clock.Now().UTC()
	exec := &domain.Execution{
		ID:            uuid.New().String(),
		Workflow:      adm.desc.Name,
		SpecID:        specIDString(adm),
		Args:          adm.args,
		Flags:         req.Flags,
		Status:        constants.ExecutionStatusPending,
		TotalSteps:    len(adm.order),
		StartedAt:     now,
		SchemaVersion: constants.ExecutionSchemaVersion,
	}

	if err := e.store.CreateExecution(ctx, exec); err != nil {
		if release != nil {
			release()
		}
		return nil, err
	}

	r := &run{
		exec:    exec,
		desc:    adm.desc,
		order:   adm.order,
		state:   NewState(newRunState(adm.desc, adm.order, exec.SpecID, adm.args)),
		writer:  bundle.NewWriter(e.guard, req.Flags.Apply),
		specID:  adm.specID,
		hasSpec: adm.hasSpec,
		release: release,
		done:    make(chan struct{}),
	}

	e.start(ctx, r)
	return exec, nil
}

func specIDString(adm *admission) string {
	if !adm.hasSpec {
		return ""
	}
	return adm.specID.String()
}

// start registers the run and launches its goroutine on a context detached
// from the caller's cancellation.
func (e *Engine) start(ctx context.Context, r *run) {
	base := context.WithoutCancel(ctx)
	timeout := r.desc.Timeout
	if timeout <= 0 {
		timeout = e.cfg.WorkflowTimeout
	}
	if timeout <= 0 {
		timeout = constants.DefaultWorkflowTimeout
	}
	base, cancelTimeout := context.WithTimeout(base, timeout)
	runCtx, cancel := context.WithCancelCause(base)
	r.cancel = cancel

	e.mu.Lock()
	e.runs[r.exec.ID] = r
	e.mu.Unlock()

	e.events.Open(r.exec.ID)
	e.metrics.ExecutionStarted(r.exec.Workflow)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancelTimeout()
		defer cancel(nil)
		e.runExecution(runCtx, r)
	}()
}

// Status reports the live progress of one execution: persisted row, step
// counts from the latest checkpoint boundary, per-step records, and pending
// interrupts.
func (e *Engine) Status(ctx context.Context, executionID string) (*Progress, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	exec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	p := &Progress{
		Execution:  exec,
		TotalSteps: exec.TotalSteps,
		Interrupts: e.pauses.ForExecution(executionID),
	}

	e.mu.Lock()
	r, live := e.runs[executionID]
	e.mu.Unlock()

	if live {
		p.CompletedSteps = r.state.completedCount()
		p.Steps = r.state.Records()
	} else if cp, err := e.store.LatestCheckpoint(ctx, executionID); err == nil {
		p.CompletedSteps = cp.StepIndex
		p.LastStep = cp.StepName
		if st, err := decodeRunState(cp.State); err == nil {
			p.Steps = recordsOf(st)
		}
	}

	if p.TotalSteps > 0 {
		p.Fraction = float64(p.CompletedSteps) / float64(p.TotalSteps)
	}
	if len(p.Steps) > 0 && p.LastStep == "" {
		for i := len(p.Steps) - 1; i >= 0; i-- {
			if p.Steps[i].Status == constants.StepStatusCompleted {
				p.LastStep = p.Steps[i].Name
				break
			}
		}
	}
	return p, nil
}

// Progress is the status view of one execution.
type Progress struct {
	// Execution is the persisted row.
	Execution *domain.Execution `json:"execution"`

	// CompletedSteps counts steps that have completed.
	CompletedSteps int `json:"completed_steps"`

	// TotalSteps is the linearized step count.
	TotalSteps int `json:"total_steps"`

	// Fraction is CompletedSteps over TotalSteps in [0,1].
	Fraction float64 `json:"fraction"`

	// LastStep names the most recently completed step.
	LastStep string `json:"last_step,omitempty"`

	// Steps holds per-step records when available.
	Steps []StepRecord `json:"steps,omitempty"`

	// Interrupts lists pending human-in-the-loop pauses.
	Interrupts []domain.PendingInterrupt `json:"interrupts,omitempty"`
}

func recordsOf(s *RunState) []StepRecord {
	out := make([]StepRecord, 0, len(s.Steps))
	for _, rec := range s.Steps {
		out = append(out, *rec)
	}
	return out
}

// Events attaches to an execution's event stream: live executions replay
// history and then stream, finished executions replay the flushed
// events.jsonl. The channel closes after the terminal event.
func (e *Engine) Events(ctx context.Context, executionID string) (<-chan domain.Event, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if ch, err := e.events.Subscribe(ctx, executionID); err == nil {
		return ch, nil
	}

	exec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	return e.replayEventsFile(exec)
}

// replayEventsFile streams a finished execution's events.jsonl.
func (e *Engine) replayEventsFile(exec *domain.Execution) (<-chan domain.Event, error) {
	path := filepath.Join(e.layout.RunDir(exec.Workflow, exec.ID), constants.EventsFileName)
	f, err := os.Open(path) //#nosec G304 -- path is derived from the runtime layout
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sserrors.Wrapf(sserrors.ErrExecutionNotFound, "no event log for %s", exec.ID)
		}
		return nil, sserrors.Wrap(err, "opening event log")
	}

	ch := make(chan domain.Event, 64)
	go func() {
		defer close(ch)
		defer func() { _ = f.Close() }()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var ev domain.Event
			if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
				continue
			}
			ch <- ev
		}
	}()
	return ch, nil
}

// Respond delivers an approve/reject/modify decision to a pending interrupt.
func (e *Engine) Respond(ctx context.Context, interruptID string, resp domain.InterruptResponse) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	if !domain.ValidInterruptAction(string(resp.Action)) {
		return sserrors.Wrapf(sserrors.ErrInvalidArgument, "interrupt action %q", resp.Action)
	}
	return e.pauses.Respond(interruptID, resp)
}

// RespondExecution resolves the oldest pending interrupt of an execution.
// Executions without a pending interrupt return ErrNotAwaitingInput.
func (e *Engine) RespondExecution(ctx context.Context, executionID string, resp domain.InterruptResponse) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	pending := e.pauses.ForExecution(executionID)
	if len(pending) == 0 {
		if _, err := e.store.GetExecution(ctx, executionID); err != nil {
			return err
		}
		return sserrors.Wrapf(sserrors.ErrNotAwaitingInput, "execution %s", executionID)
	}
	return e.Respond(ctx, pending[0].ID, resp)
}

// PendingInterrupts lists the live interrupts of one execution.
func (e *Engine) PendingInterrupts(executionID string) []domain.PendingInterrupt {
	return e.pauses.ForExecution(executionID)
}

// Cancel requests cooperative cancellation of a live execution. Steps get
// the configured grace period to unwind; a run still alive afterwards is
// hard-stopped and recorded as stopped. Terminal executions return
// ErrNotCancelable.
func (e *Engine) Cancel(ctx context.Context, executionID string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	r, live := e.runs[executionID]
	e.mu.Unlock()

	if !live {
		exec, err := e.store.GetExecution(ctx, executionID)
		if err != nil {
			return err
		}
		if exec.Terminal() {
			return sserrors.Wrapf(sserrors.ErrNotCancelable, "execution %s is %s", executionID, exec.Status)
		}
		// Admitted by an earlier process and orphaned; record the stop.
		exec.Status = constants.ExecutionStatusStopped
		now := e.clock.Now().UTC()
		exec.EndedAt = &now
		return e.store.UpdateExecution(ctx, exec)
	}

	r.cancel(sserrors.ErrExecutionStopped)

	grace := e.cfg.CancelGrace
	if grace <= 0 {
		grace = constants.DefaultCancelGrace
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-r.done:
		case <-time.After(grace):
			e.logger.Warn().
				Str("execution_id", r.exec.ID).
				Dur("grace", grace).
				Msg("hard stop after cancel grace expired")
			e.finish(context.WithoutCancel(ctx), r,
				constants.ExecutionStatusStopped,
				domain.Event{Type: domain.EventWorkflowCancelled, Reason: "hard stop after cancel grace"},
				"")
		}
	}()
	return nil
}

// Resume restores a checkpoint into a fresh execution and runs the remaining
// steps. Resuming the latest checkpoint of a completed execution is a no-op
// that returns the completed execution unchanged. Only terminal executions
// are resumable.
func (e *Engine) Resume(ctx context.Context, checkpointID string) (*domain.Execution, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	cp, err := e.store.GetCheckpoint(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	prev, err := e.store.GetExecution(ctx, cp.ExecutionID)
	if err != nil {
		return nil, err
	}
	if !prev.Terminal() {
		return nil, sserrors.Wrapf(sserrors.ErrNotResumable, "execution %s is %s", prev.ID, prev.Status)
	}
	if prev.Status == constants.ExecutionStatusCompleted && cp.StepIndex >= prev.TotalSteps {
		return prev, nil
	}

	desc, err := e.registry.Get(prev.Workflow)
	if err != nil {
		return nil, err
	}
	order, err := workflow.Linearize(desc)
	if err != nil {
		return nil, err
	}
	if len(order) != prev.TotalSteps {
		return nil, sserrors.Wrapf(sserrors.ErrNotResumable,
			"workflow %s now has %d steps, checkpoint expects %d", desc.Name, len(order), prev.TotalSteps)
	}

	doc, err := restoreRunState(cp.State, prev.Workflow)
	if err != nil {
		return nil, err
	}

	var specID domain.SpecID
	hasSpec := prev.SpecID != ""
	if hasSpec {
		specID, err = domain.ParseSpecID(prev.SpecID)
		if err != nil {
			return nil, err
		}
	}

	var release func()
	if hasSpec && !desc.Effects.ReadOnly() {
		release, err = e.locks.Acquire(specID)
		if err != nil {
			return nil, err
		}
	}

	now := e.clock.Now().UTC()
	exec := &domain.Execution{
		ID:            uuid.New().String(),
		Workflow:      prev.Workflow,
		SpecID:        prev.SpecID,
		Args:          prev.Args.Clone(),
		Flags:         prev.Flags,
		Status:        constants.ExecutionStatusPending,
		TotalSteps:    prev.TotalSteps,
		CurrentStep:   cp.StepIndex,
		StartedAt:     now,
		SchemaVersion: constants.ExecutionSchemaVersion,
	}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		if release != nil {
			release()
		}
		return nil, err
	}

	seed := &domain.Checkpoint{
		ID:          uuid.New().String(),
		ExecutionID: exec.ID,
		StepIndex:   cp.StepIndex,
		StepName:    cp.StepName,
		State:       cp.State,
		Note:        "resumed from execution " + prev.ID,
	}
	if err := e.store.SaveCheckpoint(ctx, seed); err != nil {
		if release != nil {
			release()
		}
		return nil, err
	}
	e.metrics.CheckpointWritten()

	r := &run{
		exec:    exec,
		desc:    desc,
		order:   order,
		state:   NewState(doc),
		writer:  bundle.NewWriter(e.guard, prev.Flags.Apply),
		specID:  specID,
		hasSpec: hasSpec,
		resumed: true,
		release: release,
		done:    make(chan struct{}),
	}

	e.start(ctx, r)
	return exec, nil
}

// Shutdown cancels every live run and waits for them to finish, bounded by
// ctx.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	live := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		live = append(live, r)
	}
	e.mu.Unlock()

	for _, r := range live {
		r.cancel(sserrors.ErrExecutionStopped)
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit stamps and publishes one event on an execution's stream.
func (e *Engine) emit(executionID string, ev domain.Event) domain.Event {
	ev.Timestamp = e.clock.Now().UTC()
	return e.events.Publish(executionID, ev)
}
