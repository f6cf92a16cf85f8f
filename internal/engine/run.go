package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// runExecution drives one execution from admitted to terminal. It owns the
// status transitions; step goroutines only touch shared state through the
// synchronized State and the progress mutex.
func (e *Engine) runExecution(ctx context.Context, r *run) {
	logger := e.logger.With().
		Str("execution_id", r.exec.ID).
		Str("workflow", r.exec.Workflow).
		Str("spec_id", r.exec.SpecID).
		Logger()
	ctx = logger.WithContext(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("internal panic: %v", rec)
			logger.Error().Str("panic", fmt.Sprint(rec)).Msg("run goroutine panicked")
			e.finish(ctx, r, constants.ExecutionStatusFailed,
				domain.Event{Type: domain.EventWorkflowFailed, Error: msg}, msg)
		}
	}()

	if err := e.transition(ctx, r, constants.ExecutionStatusRunning); err != nil {
		msg := err.Error()
		e.finish(ctx, r, constants.ExecutionStatusFailed,
			domain.Event{Type: domain.EventWorkflowFailed, Error: msg}, msg)
		return
	}

	if r.resumed {
		e.emit(r.exec.ID, domain.Event{
			Type:      domain.EventWorkflowResumed,
			StepIndex: r.exec.CurrentStep,
			Reason:    "resumed from checkpoint",
		})
		logger.Info().Int("completed_steps", r.state.completedCount()).Msg("workflow resumed")
	} else {
		e.emit(r.exec.ID, domain.Event{Type: domain.EventWorkflowStarted})
		logger.Info().Int("total_steps", r.exec.TotalSteps).Msg("workflow started")

		if err := e.saveCheckpoint(ctx, r, 0, "", "entering step 1"); err != nil {
			msg := err.Error()
			e.finish(ctx, r, constants.ExecutionStatusFailed,
				domain.Event{Type: domain.EventWorkflowFailed, Error: msg}, msg)
			return
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			e.finishInterrupted(ctx, r)
			return
		}

		wave := r.nextWave(e.fanOut(r.desc))
		if len(wave) == 0 {
			break
		}

		if err := e.runWave(ctx, r, wave); err != nil {
			e.finishFailure(ctx, r, err)
			return
		}
	}

	if done := r.state.completedCount(); done < len(r.order) {
		// Valid descriptors cannot leave unreachable steps, so this is a
		// scheduler invariant violation, not a user error.
		msg := fmt.Sprintf("scheduler stalled: %d of %d steps completed", done, len(r.order))
		e.finish(ctx, r, constants.ExecutionStatusFailed,
			domain.Event{Type: domain.EventWorkflowFailed, Error: msg}, msg)
		return
	}

	e.finish(ctx, r, constants.ExecutionStatusCompleted,
		domain.Event{Type: domain.EventWorkflowCompleted}, "")
}

// fanOut resolves the effective per-execution concurrency cap.
func (e *Engine) fanOut(d *domain.Descriptor) int {
	fo := e.cfg.FanOut
	if fo < 1 {
		fo = constants.DefaultFanOut
	}
	if d.Parallelism > 0 && d.Parallelism < fo {
		fo = d.Parallelism
	}
	return fo
}

// nextWave collects the pending steps whose dependencies are all completed,
// in linearized order, capped at fanOut. An empty wave with incomplete steps
// means the run is over (everything left is failed or skipped).
func (r *run) nextWave(fanOut int) []int {
	done := r.state.completedSet()
	var wave []int
	for pos, si := range r.order {
		step := r.desc.Steps[si]
		if r.state.stepStatus(step.Name) != constants.StepStatusPending {
			continue
		}
		ready := true
		for _, need := range step.Needs {
			if !done[need] {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		wave = append(wave, pos)
		if len(wave) >= fanOut {
			break
		}
	}
	return wave
}

// runWave dispatches one set of ready steps. Without continue-on-error the
// first failure cancels its siblings through the errgroup context; with it,
// every sibling runs to completion and the errors are joined.
func (e *Engine) runWave(ctx context.Context, r *run, wave []int) error {
	if r.desc.ContinueOnError {
		var mu sync.Mutex
		var errs []error
		var g errgroup.Group
		for _, pos := range wave {
			g.Go(func() error {
				if err := e.runStep(ctx, r, pos); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
		return errors.Join(errs...)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pos := range wave {
		g.Go(func() error {
			return e.runStep(gctx, r, pos)
		})
	}
	return g.Wait()
}

// runStep executes one step end to end: semaphore admission, dispatch,
// optional human-in-the-loop pause, state bookkeeping, checkpoint, events.
func (e *Engine) runStep(ctx context.Context, r *run, pos int) error {
	si := r.order[pos]
	step := r.desc.Steps[si]
	idx := pos + 1

	logger := zerolog.Ctx(ctx).With().
		Str("step", step.Name).
		Str("step_type", string(step.Type)).
		Int("step_index", idx).
		Logger()
	stepCtx := logger.WithContext(ctx)

	if err := e.sem.Acquire(stepCtx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)

	executor, err := e.executors.Get(step.Type)
	if err != nil {
		r.state.markFailed(step.Name, e.clock.Now(), err.Error())
		e.emit(r.exec.ID, domain.Event{
			Type: domain.EventStepFailed, StepName: step.Name, StepIndex: idx, Error: err.Error(),
		})
		return err
	}

	r.state.markStarted(step.Name, e.clock.Now())
	e.advanceCurrentStep(ctx, r, idx)
	e.emit(r.exec.ID, domain.Event{Type: domain.EventStepStarted, StepName: step.Name, StepIndex: idx})
	logger.Info().Msg("step started")

	inFlightDone := e.metrics.StepStarted()
	defer inFlightDone()
	started := time.Now()

	if step.Timeout > 0 {
		var cancelStep context.CancelFunc
		stepCtx, cancelStep = context.WithTimeout(stepCtx, step.Timeout)
		defer cancelStep()
	}

	req := &StepRequest{
		Execution: *r.exec,
		Step:      step,
		StepIndex: idx,
		SpecID:    r.specID,
		HasSpec:   r.hasSpec,
		Args:      r.exec.Args,
		Flags:     r.exec.Flags,
		State:     r.state,
		Layout:    e.layout,
		Writer:    r.writer,
		Progress:  e.progressFunc(r, step.Name, idx),
	}

	res, err := safeExecute(stepCtx, executor, req)
	if err == nil && res.Status == constants.StepStatusAwaitingInput {
		res, err = e.awaitInput(stepCtx, r, step, idx, res)
	}

	elapsed := time.Since(started)

	if err != nil {
		msg := err.Error()
		r.state.markFailed(step.Name, e.clock.Now(), msg)
		e.emit(r.exec.ID, domain.Event{
			Type: domain.EventStepFailed, StepName: step.Name, StepIndex: idx, Error: msg,
		})
		e.metrics.StepFinished(r.exec.Workflow, string(step.Type), "failed", elapsed)
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("step failed")

		if isControlError(err) {
			return err
		}
		return fmt.Errorf("%w: %s: %s", sserrors.ErrStepFailed, step.Name, msg)
	}

	if len(res.Output) > 0 {
		r.state.SetOutput(step.Name, res.Output)
	}

	if err := e.checkpointCompleted(ctx, r, step.Name); err != nil {
		msg := err.Error()
		r.state.markFailed(step.Name, e.clock.Now(), msg)
		e.emit(r.exec.ID, domain.Event{
			Type: domain.EventStepFailed, StepName: step.Name, StepIndex: idx, Error: msg,
		})
		e.metrics.StepFinished(r.exec.Workflow, string(step.Type), "failed", elapsed)
		return err
	}

	e.emit(r.exec.ID, domain.Event{Type: domain.EventStepCompleted, StepName: step.Name, StepIndex: idx})
	e.metrics.StepFinished(r.exec.Workflow, string(step.Type), "completed", elapsed)
	if res.Summary != "" {
		logger.Info().Dur("elapsed", elapsed).Str("summary", res.Summary).Msg("step completed")
	} else {
		logger.Info().Dur("elapsed", elapsed).Msg("step completed")
	}
	return nil
}

// isControlError reports whether err is a flow-control signal that must not
// be re-wrapped as a step failure, so the run loop can classify it.
func isControlError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, sserrors.ErrExecutionStopped) ||
		errors.Is(err, sserrors.ErrInterruptTimeout)
}

// safeExecute dispatches to the executor, converting panics into step
// failures so one bad step never takes the process down.
func safeExecute(ctx context.Context, executor StepExecutor, req *StepRequest) (res *StepResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("step panicked: %v", rec)
		}
	}()

	res, err = executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &StepResult{Status: constants.StepStatusCompleted}
	}
	return res, nil
}

// awaitInput runs the human-in-the-loop protocol for a step that asked to
// pause: raise the interrupt, flip the execution to paused, and block until
// a response, the deadline, or cancellation.
func (e *Engine) awaitInput(ctx context.Context, r *run, step domain.WorkflowStep, idx int, res *StepResult) (*StepResult, error) {
	irq := res.Interrupt
	if irq == nil {
		irq = &InterruptRequest{Prompt: fmt.Sprintf("approve step %q?", step.Name)}
	}
	timeout := irq.Timeout
	if timeout <= 0 {
		timeout = e.cfg.InterruptTimeout
	}
	if timeout <= 0 {
		timeout = constants.DefaultInterruptTimeout
	}

	now := e.clock.Now().UTC()
	info := domain.PendingInterrupt{
		ID:          uuid.New().String(),
		ExecutionID: r.exec.ID,
		StepName:    step.Name,
		Prompt:      irq.Prompt,
		RaisedAt:    now,
		Deadline:    now.Add(timeout),
	}
	ch := e.pauses.raise(info)

	r.state.markAwaiting(step.Name)
	if err := e.transition(ctx, r, constants.ExecutionStatusPaused); err != nil {
		e.pauses.expire(info.ID)
		return nil, err
	}
	e.emit(r.exec.ID, domain.Event{
		Type:        domain.EventWorkflowPaused,
		StepName:    step.Name,
		StepIndex:   idx,
		Reason:      irq.Prompt,
		InterruptID: info.ID,
	})
	e.metrics.InterruptRaised()
	zerolog.Ctx(ctx).Info().
		Str("interrupt_id", info.ID).
		Time("deadline", info.Deadline).
		Msg("awaiting human input")

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var resp domain.InterruptResponse
	select {
	case resp = <-ch:
	case <-timer.C:
		if e.pauses.expire(info.ID) {
			e.metrics.InterruptResolved("timeout")
			return nil, sserrors.Wrapf(sserrors.ErrInterruptTimeout,
				"step %s waited %s for interrupt %s", step.Name, timeout, info.ID)
		}
		// A response won the race with the timer; it is already buffered.
		resp = <-ch
	case <-ctx.Done():
		e.pauses.expire(info.ID)
		cause := context.Cause(ctx)
		if errors.Is(cause, context.DeadlineExceeded) {
			// Any deadline elapsing while paused is an interrupt timeout.
			e.metrics.InterruptResolved("timeout")
			return nil, sserrors.Wrapf(sserrors.ErrInterruptTimeout,
				"step %s deadline elapsed awaiting interrupt %s", step.Name, info.ID)
		}
		return nil, cause
	}

	switch resp.Action {
	case domain.InterruptApprove, domain.InterruptModify:
		if resp.Action == domain.InterruptModify {
			if err := r.state.mergePayload(resp.Payload); err != nil {
				e.metrics.InterruptResolved(string(resp.Action))
				return nil, err
			}
		}
		e.metrics.InterruptResolved(string(resp.Action))
		if err := e.transition(ctx, r, constants.ExecutionStatusRunning); err != nil {
			return nil, err
		}
		reason := "approved"
		if resp.Action == domain.InterruptModify {
			reason = "modified"
		}
		if resp.Note != "" {
			reason += ": " + resp.Note
		}
		e.emit(r.exec.ID, domain.Event{
			Type: domain.EventWorkflowResumed, StepName: step.Name, StepIndex: idx, Reason: reason,
		})
		res.Status = constants.StepStatusCompleted
		res.Interrupt = nil
		return res, nil

	case domain.InterruptReject:
		e.metrics.InterruptResolved("reject")
		reason := "rejected by reviewer"
		if resp.Note != "" {
			reason += ": " + resp.Note
		}
		return nil, fmt.Errorf("%w: %s: %s", sserrors.ErrStepFailed, step.Name, reason)

	default:
		return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "interrupt action %q", resp.Action)
	}
}

// checkpointCompleted finalizes a successful step and writes its boundary
// checkpoint. The completion count and the store write happen under one
// mutex: releasing between them would let two siblings take counts k and k+1
// but reach the store as k+1 then k, which the store's strict step_index
// monotonicity rejects.
func (e *Engine) checkpointCompleted(ctx context.Context, r *run, stepName string) error {
	r.checkpointMu.Lock()
	defer r.checkpointMu.Unlock()

	k := r.state.markCompleted(stepName, e.clock.Now())
	return e.saveCheckpoint(ctx, r, k, stepName, fmt.Sprintf("completed step %d of %d", k, len(r.order)))
}

// saveCheckpoint snapshots run state at a step boundary. Boundary writes use
// a detached context so a cancellation arriving mid-step still gets its
// durable record; writes after the run finished are dropped.
func (e *Engine) saveCheckpoint(ctx context.Context, r *run, index int, stepName, note string) error {
	select {
	case <-r.done:
		return nil
	default:
	}

	raw, err := r.state.snapshot()
	if err != nil {
		return err
	}

	cp := &domain.Checkpoint{
		ID:          uuid.New().String(),
		ExecutionID: r.exec.ID,
		StepIndex:   index,
		StepName:    stepName,
		State:       raw,
		Note:        note,
	}
	if err := e.store.SaveCheckpoint(context.WithoutCancel(ctx), cp); err != nil {
		return err
	}

	r.progressMu.Lock()
	r.exec.LatestCheckpointID = cp.ID
	r.progressMu.Unlock()

	e.metrics.CheckpointWritten()
	return nil
}

// transition persists a status change, enforcing the execution state machine.
func (e *Engine) transition(ctx context.Context, r *run, next constants.ExecutionStatus) error {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()

	if r.exec.Status == next {
		return nil
	}
	if !r.exec.Status.CanTransitionTo(next) {
		return sserrors.Wrapf(sserrors.ErrNotResumable,
			"illegal status transition %s -> %s", r.exec.Status, next)
	}
	r.exec.Status = next
	return e.store.UpdateExecution(context.WithoutCancel(ctx), r.exec)
}

// advanceCurrentStep records the highest dispatched step index on the
// execution row. Losing this write only degrades status output, so failures
// are logged and swallowed.
func (e *Engine) advanceCurrentStep(ctx context.Context, r *run, idx int) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()

	if idx <= r.exec.CurrentStep {
		return
	}
	r.exec.CurrentStep = idx
	if err := e.store.UpdateExecution(context.WithoutCancel(ctx), r.exec); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("step_index", idx).Msg("recording step progress failed")
	}
}

// progressFunc builds the throttled step_progress emitter handed to
// executors. Emissions inside the budget window are coalesced away, except a
// terminal 1.0.
func (e *Engine) progressFunc(r *run, stepName string, idx int) func(float64) {
	var mu sync.Mutex
	var last time.Time
	return func(fraction float64) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}

		mu.Lock()
		now := time.Now()
		if !last.IsZero() && now.Sub(last) < constants.DefaultStepProgressBudget && fraction < 1 {
			mu.Unlock()
			return
		}
		last = now
		mu.Unlock()

		e.emit(r.exec.ID, domain.Event{
			Type: domain.EventStepProgress, StepName: stepName, StepIndex: idx, Fraction: fraction,
		})
	}
}

// finishInterrupted classifies a context-level stop: cooperative cancel or
// workflow timeout.
func (e *Engine) finishInterrupted(ctx context.Context, r *run) {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, sserrors.ErrExecutionStopped):
		e.finish(ctx, r, constants.ExecutionStatusStopped,
			domain.Event{Type: domain.EventWorkflowCancelled, Reason: "cancel requested"}, "")
	case errors.Is(cause, context.DeadlineExceeded):
		msg := "workflow timeout exceeded"
		e.finish(ctx, r, constants.ExecutionStatusFailed,
			domain.Event{Type: domain.EventWorkflowFailed, Error: msg}, msg)
	default:
		reason := "context canceled"
		if cause != nil {
			reason = cause.Error()
		}
		e.finish(ctx, r, constants.ExecutionStatusStopped,
			domain.Event{Type: domain.EventWorkflowCancelled, Reason: reason}, "")
	}
}

// finishFailure classifies a wave error into the right terminal outcome.
func (e *Engine) finishFailure(ctx context.Context, r *run, err error) {
	switch {
	case errors.Is(err, sserrors.ErrExecutionStopped):
		e.finish(ctx, r, constants.ExecutionStatusStopped,
			domain.Event{Type: domain.EventWorkflowCancelled, Reason: "cancel requested"}, "")

	case errors.Is(err, context.Canceled):
		e.finishInterrupted(ctx, r)

	case errors.Is(err, sserrors.ErrInterruptTimeout):
		msg := err.Error()
		e.finish(ctx, r, constants.ExecutionStatusFailed,
			domain.Event{Type: domain.EventWorkflowFailed, Error: msg, Reason: "interrupt_timeout"}, msg)

	case errors.Is(err, context.DeadlineExceeded):
		// Either the workflow deadline or a step deadline fired; both end the
		// run as a failure, with the workflow timeout taking naming priority.
		msg := "workflow timeout exceeded"
		if ctx.Err() == nil {
			msg = err.Error()
		}
		e.finish(ctx, r, constants.ExecutionStatusFailed,
			domain.Event{Type: domain.EventWorkflowFailed, Error: msg}, msg)

	default:
		msg := err.Error()
		e.finish(ctx, r, constants.ExecutionStatusFailed,
			domain.Event{Type: domain.EventWorkflowFailed, Error: msg}, msg)
	}
}

// finish seals the run exactly once: terminal status persisted, terminal
// event published, event log flushed, bundle lock released, run handle
// retired.
func (e *Engine) finish(ctx context.Context, r *run, status constants.ExecutionStatus, ev domain.Event, errMsg string) {
	r.finishOnce.Do(func() {
		dctx := context.WithoutCancel(ctx)

		if status != constants.ExecutionStatusCompleted {
			r.state.markSkipped()
		}

		r.progressMu.Lock()
		if r.exec.Status == status || r.exec.Status.CanTransitionTo(status) {
			r.exec.Status = status
		} else {
			e.logger.Error().
				Str("execution_id", r.exec.ID).
				Str("from", string(r.exec.Status)).
				Str("to", string(status)).
				Msg("terminal transition refused by state machine")
			r.exec.Status = constants.ExecutionStatusFailed
		}
		r.exec.Error = errMsg
		now := e.clock.Now().UTC()
		r.exec.EndedAt = &now
		final := *r.exec
		r.progressMu.Unlock()

		if err := e.store.UpdateExecution(dctx, &final); err != nil {
			e.logger.Error().Err(err).Str("execution_id", final.ID).Msg("persisting terminal status failed")
		}

		e.emit(final.ID, ev)
		e.flushEvents(dctx, r)
		e.events.Evict(final.ID)

		if r.release != nil {
			r.release()
		}

		e.metrics.ExecutionFinished(final.Workflow, string(final.Status))

		e.mu.Lock()
		delete(e.runs, final.ID)
		e.mu.Unlock()

		close(r.done)

		e.logger.Info().
			Str("execution_id", final.ID).
			Str("workflow", final.Workflow).
			Str("status", string(final.Status)).
			Msg("execution finished")
	})
}

// flushEvents writes the full event history as JSON Lines under the run's
// report directory.
func (e *Engine) flushEvents(ctx context.Context, r *run) {
	history, ok := e.events.History(r.exec.ID)
	if !ok || len(history) == 0 {
		return
	}

	var buf bytes.Buffer
	for _, ev := range history {
		line, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	path := filepath.Join(e.layout.RunDir(r.exec.Workflow, r.exec.ID), constants.EventsFileName)
	if err := r.writer.WriteRuntime(ctx, path, buf.Bytes()); err != nil {
		e.logger.Warn().Err(err).Str("execution_id", r.exec.ID).Msg("flushing event log failed")
	}
}
