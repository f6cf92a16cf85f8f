// Package errors provides centralized error handling for SmartSpec.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrUnknownWorkflow indicates the requested workflow name is not present
	// in the workflow registry.
	ErrUnknownWorkflow = errors.New("unknown workflow")

	// ErrUnknownFlag indicates a flag was supplied that no workflow accepts.
	ErrUnknownFlag = errors.New("unknown flag")

	// ErrUnknownArgument indicates an argument was supplied that the target
	// workflow descriptor does not declare.
	ErrUnknownArgument = errors.New("unknown argument")

	// ErrMissingArgument indicates a required workflow argument was omitted.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrInvalidArgument indicates a workflow argument failed type or enum
	// validation against the descriptor.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidSpecID indicates a spec identifier does not match the
	// spec-<category>-<number>-<slug> form.
	ErrInvalidSpecID = errors.New("invalid spec id")

	// ErrSpecNotFound indicates no spec bundle directory exists for the
	// requested spec identifier.
	ErrSpecNotFound = errors.New("spec not found")

	// ErrTasksNotFound indicates the bundle has no tasks.md to verify.
	ErrTasksNotFound = errors.New("tasks document not found")

	// ErrArtifactNotFound indicates a governed artifact the step depends on
	// (spec.md, plan.md, tasks.md) is missing from the bundle.
	ErrArtifactNotFound = errors.New("bundle artifact not found")

	// ErrReportNotFound indicates no verification report exists for the
	// bundle, so report-consuming steps have nothing to work from.
	ErrReportNotFound = errors.New("verification report not found")

	// ErrInvalidHook indicates an evidence hook failed grammar validation
	// (malformed key, mutually exclusive predicates, bad quoting).
	ErrInvalidHook = errors.New("invalid evidence hook")

	// ErrDescriptorInvalid indicates a workflow descriptor failed structural
	// validation during registry startup.
	ErrDescriptorInvalid = errors.New("invalid workflow descriptor")

	// ErrDuplicateWorkflow indicates two descriptors declare the same
	// workflow name.
	ErrDuplicateWorkflow = errors.New("duplicate workflow name")

	// ErrStepCycle indicates a descriptor's step dependencies contain a cycle
	// and cannot be linearized.
	ErrStepCycle = errors.New("step dependency cycle")
)

// Governance errors cover policy gates that block otherwise valid requests.
var (
	// ErrApplyRequired indicates a workflow with governed write effects was
	// invoked without --apply.
	ErrApplyRequired = errors.New("apply flag required")

	// ErrNetworkNotAllowed indicates a workflow requiring provider network
	// access was invoked without --allow-network.
	ErrNetworkNotAllowed = errors.New("network access not allowed")

	// ErrPathOutsideScope indicates a write targeted a path outside the
	// governed specs/ and .spec/ trees.
	ErrPathOutsideScope = errors.New("path outside workspace scope")

	// ErrValidateOnly indicates execution stopped after validation because
	// --validate-only was set. It is a signal, not a failure.
	ErrValidateOnly = errors.New("validate-only requested")
)

// Execution lifecycle errors.
var (
	// ErrExecutionNotFound indicates no execution exists for the given ID.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrCheckpointNotFound indicates no checkpoint exists for the given ID.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrInterruptNotFound indicates no pending interrupt matches the given ID.
	ErrInterruptNotFound = errors.New("interrupt not found")

	// ErrNotAwaitingInput indicates a respond call targeted an execution that
	// is not paused on a human-input step.
	ErrNotAwaitingInput = errors.New("execution not awaiting input")

	// ErrNotResumable indicates a resume call targeted an execution whose
	// status does not permit resumption.
	ErrNotResumable = errors.New("execution not resumable")

	// ErrNotCancelable indicates a cancel call targeted an execution that
	// already reached a terminal status.
	ErrNotCancelable = errors.New("execution not cancelable")

	// ErrInterruptTimeout indicates a human-input interrupt expired before a
	// response arrived.
	ErrInterruptTimeout = errors.New("interrupt timed out")

	// ErrStepFailed indicates a workflow step returned a failure after
	// exhausting its options.
	ErrStepFailed = errors.New("step failed")

	// ErrExecutionStopped indicates cooperative cancellation terminated the
	// execution before completion.
	ErrExecutionStopped = errors.New("execution stopped")

	// ErrExecutorNotFound indicates no step executor is registered for a
	// descriptor step type.
	ErrExecutorNotFound = errors.New("step executor not found")
)

// Gateway and account errors.
var (
	// ErrInsufficientCredits indicates the pre-flight estimate exceeds the
	// caller's credit balance.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrRateLimited indicates the caller exceeded the per-user request rate.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderNotFound indicates no provider adapter is registered under
	// the requested name.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderDisabled indicates the provider is administratively disabled.
	ErrProviderDisabled = errors.New("provider disabled")

	// ErrNoRouteAvailable indicates every provider in the routing chain was
	// unavailable or failed.
	ErrNoRouteAvailable = errors.New("no provider route available")

	// ErrProviderRequest indicates a provider call failed after reaching the
	// remote endpoint.
	ErrProviderRequest = errors.New("provider request failed")

	// ErrUserNotFound indicates no user account matches the given identifier.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists indicates an account with the given email already exists.
	ErrUserExists = errors.New("user already exists")

	// ErrUserDisabled indicates the account is deactivated and cannot spend
	// credits.
	ErrUserDisabled = errors.New("user account disabled")

	// ErrInvalidCredentials indicates an email/password pair failed
	// authentication.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidAmount indicates a credit amount was zero, negative, or
	// otherwise outside the accepted range.
	ErrInvalidAmount = errors.New("invalid credit amount")

	// ErrAdminRequired indicates the operation needs an admin role.
	ErrAdminRequired = errors.New("admin role required")
)

// Configuration errors.
var (
	// ErrConfigNil indicates a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidEngine indicates an invalid engine configuration value.
	ErrConfigInvalidEngine = errors.New("invalid engine configuration")

	// ErrConfigInvalidVerify indicates an invalid verifier configuration value.
	ErrConfigInvalidVerify = errors.New("invalid verify configuration")

	// ErrConfigInvalidGateway indicates an invalid gateway configuration value.
	ErrConfigInvalidGateway = errors.New("invalid gateway configuration")

	// ErrConfigInvalidStore indicates an invalid store configuration value.
	ErrConfigInvalidStore = errors.New("invalid store configuration")

	// ErrConfigInvalidLogging indicates an invalid logging configuration value.
	ErrConfigInvalidLogging = errors.New("invalid logging configuration")
)

// Interactive input errors.
var (
	// ErrPromptCanceled indicates the user aborted an interactive prompt, or
	// a prompt was requested without a terminal attached.
	ErrPromptCanceled = errors.New("prompt canceled")

	// ErrInvalidOutputFormat indicates the --output flag named an
	// unsupported format.
	ErrInvalidOutputFormat = errors.New("invalid output format")
)

// Storage and filesystem errors.
var (
	// ErrBundleBusy indicates another process holds the bundle mutex for the
	// target spec.
	ErrBundleBusy = errors.New("spec bundle busy")

	// ErrLockTimeout indicates a file lock could not be acquired within the
	// configured deadline.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrStoreClosed indicates an operation was attempted on a closed store.
	ErrStoreClosed = errors.New("store closed")

	// ErrGitOperation indicates a git command failed; the message carries the
	// command and its stderr.
	ErrGitOperation = errors.New("git operation failed")

	// ErrCheckpointOrder indicates a checkpoint write would violate the
	// strictly increasing step_index sequence for its execution.
	ErrCheckpointOrder = errors.New("checkpoint out of order")

	// ErrSchemaVersion indicates a persisted record carries an unsupported
	// schema version.
	ErrSchemaVersion = errors.New("unsupported schema version")
)
