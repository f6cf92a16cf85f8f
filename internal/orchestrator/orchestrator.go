// Package orchestrator is the top-level facade of SmartSpec. It accepts a
// request, decides what to run, hands it to the engine, and streams status
// back. New assembles the whole system from configuration: the sqlite store,
// the workflow registry, the credit-gated gateway, the evidence verifier,
// the execution engine, and both routers. Clients then consume exactly eight
// operations: Recommend, Execute, Status, Events, Respond, Cancel, Resume,
// and Ask.
//
// Every operation returns a typed result or a typed error from
// internal/errors; recoverable conditions never panic.
//
// This package follows strict import rules:
//   - CAN import: any internal package below the facade (bundle, clock,
//     config, constants, domain, engine, errors, gateway, git, metrics,
//     prompts, store, verify, workflow), standard library
//   - MUST NOT import: internal/cli, internal/tui
package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/bundle"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	"github.com/mrz1836/smartspec/internal/gateway"
	"github.com/mrz1836/smartspec/internal/metrics"
	"github.com/mrz1836/smartspec/internal/store"
	"github.com/mrz1836/smartspec/internal/workflow"
)

// Orchestrator coordinates the SmartSpec subsystems behind one surface.
// Construct through New; the zero value is not usable.
type Orchestrator struct {
	root      string
	layout    *bundle.Layout
	registry  *workflow.Registry
	router    *workflow.Router
	nl        *workflow.NLRouter
	engine    *engine.Engine
	gateway   *gateway.Gateway
	accounts  *gateway.Accounts
	providers *gateway.Providers
	store     *store.Store
	operator  *domain.User
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// Recommend observes the bundle for id and routes the observation through
// the decision table. Read-only: consecutive calls over an unchanged bundle
// return equal recommendations.
func (o *Orchestrator) Recommend(ctx context.Context, id domain.SpecID) (*domain.Recommendation, error) {
	state, err := bundle.Observe(ctx, o.layout, id)
	if err != nil {
		return nil, err
	}
	return o.router.Recommend(ctx, &state)
}

// Execute validates and starts one workflow run, returning as soon as the
// engine has admitted it. The returned execution carries the id to poll with
// Status or stream with Events. A ValidateOnly flag surfaces as
// errors.ErrValidateOnly after validation passes, with nothing started.
func (o *Orchestrator) Execute(ctx context.Context, req engine.ExecuteRequest) (*domain.Execution, error) {
	return o.engine.Execute(ctx, req)
}

// Status reports one execution's lifecycle state plus progress-bar data:
// completed and total step counts, the completion fraction, per-step records,
// and any pending interrupts.
func (o *Orchestrator) Status(ctx context.Context, executionID string) (*engine.Progress, error) {
	return o.engine.Status(ctx, executionID)
}

// Events returns the ordered event stream for one execution: live when it is
// still running, replayed from the persisted log when it is not.
func (o *Orchestrator) Events(ctx context.Context, executionID string) (<-chan domain.Event, error) {
	return o.engine.Events(ctx, executionID)
}

// Respond delivers a human reply to a pending interrupt, waking the paused
// execution.
func (o *Orchestrator) Respond(ctx context.Context, interruptID string, resp domain.InterruptResponse) error {
	return o.engine.Respond(ctx, interruptID, resp)
}

// Cancel stops a non-terminal execution cooperatively. The engine grants the
// running step a grace period before hard-stopping it.
func (o *Orchestrator) Cancel(ctx context.Context, executionID string) error {
	return o.engine.Cancel(ctx, executionID)
}

// Resume starts a new execution that continues from a saved checkpoint.
// Only terminal executions are resumable; the original is never mutated.
func (o *Orchestrator) Resume(ctx context.Context, checkpointID string) (*domain.Execution, error) {
	return o.engine.Resume(ctx, checkpointID)
}

// Close shuts the engine down, waiting up to the context deadline for live
// executions, then closes the store.
func (o *Orchestrator) Close(ctx context.Context) error {
	err := o.engine.Shutdown(ctx)
	if cerr := o.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// Engine exposes the execution engine for surfaces that need more than the
// facade operations, such as validate-only descriptor inspection.
func (o *Orchestrator) Engine() *engine.Engine { return o.engine }

// Gateway exposes the LLM gateway for the provider admin surface.
func (o *Orchestrator) Gateway() *gateway.Gateway { return o.gateway }

// Accounts exposes the account service for the users and credits surfaces.
func (o *Orchestrator) Accounts() *gateway.Accounts { return o.accounts }

// Providers exposes the provider registry.
func (o *Orchestrator) Providers() *gateway.Providers { return o.providers }

// Registry exposes the workflow registry.
func (o *Orchestrator) Registry() *workflow.Registry { return o.registry }

// Layout exposes the bundle path layout.
func (o *Orchestrator) Layout() *bundle.Layout { return o.layout }

// Root returns the repository root the system was wired against.
func (o *Orchestrator) Root() string { return o.root }

// Store exposes the relational store.
func (o *Orchestrator) Store() *store.Store { return o.store }

// Operator returns the account local executions bill to.
func (o *Orchestrator) Operator() *domain.User { return o.operator }

// Metrics returns the process collector set, for exposition endpoints.
func (o *Orchestrator) Metrics() *metrics.Metrics { return o.metrics }
