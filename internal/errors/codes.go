package errors

import "errors"

// Code is the stable machine-readable category attached to errors that cross
// the orchestrator boundary. Codes appear in JSON output and event payloads,
// so their string values must not change.
type Code string

// Error codes returned by orchestrator operations.
const (
	// CodeValidation covers malformed input: unknown workflows, bad flags,
	// invalid arguments, malformed spec IDs, and descriptor failures.
	CodeValidation Code = "validation_error"

	// CodeGovernance covers policy gates: missing --apply, missing
	// --allow-network, and writes outside the governed trees.
	CodeGovernance Code = "governance_error"

	// CodeInsufficientCredits covers pre-flight balance rejections.
	CodeInsufficientCredits Code = "insufficient_credits"

	// CodeRateLimited covers per-user request rate rejections.
	CodeRateLimited Code = "rate_limited"

	// CodeProvider covers provider call failures, including exhausted
	// fallback chains.
	CodeProvider Code = "provider_error"

	// CodeBundleBusy covers contention on a spec bundle mutex.
	CodeBundleBusy Code = "bundle_busy"

	// CodeInterruptTimeout covers expired human-input interrupts.
	CodeInterruptTimeout Code = "interrupt_timeout"

	// CodeStepFailed covers workflow step failures during execution.
	CodeStepFailed Code = "step_failed"

	// CodeNotFound covers lookups of executions, checkpoints, interrupts,
	// specs, users, and providers that do not exist.
	CodeNotFound Code = "not_found"

	// CodeIO covers filesystem and storage failures.
	CodeIO Code = "io_error"

	// CodeInternal covers unexpected failures; details are logged with a
	// correlation ID rather than exposed to the caller.
	CodeInternal Code = "internal_error"
)

// codeEntry pairs a sentinel error with its code. Matching uses errors.Is(),
// so the order of entries decides precedence when chains overlap.
type codeEntry struct {
	err  error
	code Code
}

//nolint:gochecknoglobals // Pre-built mapping for efficiency
var codeEntries = []codeEntry{
	// Not-found lookups are checked before broad validation so that a
	// wrapped ErrSpecNotFound classifies as not_found.
	{ErrExecutionNotFound, CodeNotFound},
	{ErrCheckpointNotFound, CodeNotFound},
	{ErrInterruptNotFound, CodeNotFound},
	{ErrSpecNotFound, CodeNotFound},
	{ErrTasksNotFound, CodeNotFound},
	{ErrArtifactNotFound, CodeNotFound},
	{ErrReportNotFound, CodeNotFound},
	{ErrUserNotFound, CodeNotFound},
	{ErrProviderNotFound, CodeNotFound},

	{ErrUnknownWorkflow, CodeValidation},
	{ErrUnknownFlag, CodeValidation},
	{ErrUnknownArgument, CodeValidation},
	{ErrMissingArgument, CodeValidation},
	{ErrInvalidArgument, CodeValidation},
	{ErrInvalidSpecID, CodeValidation},
	{ErrInvalidHook, CodeValidation},
	{ErrDescriptorInvalid, CodeValidation},
	{ErrDuplicateWorkflow, CodeValidation},
	{ErrStepCycle, CodeValidation},
	{ErrNotAwaitingInput, CodeValidation},
	{ErrNotResumable, CodeValidation},
	{ErrNotCancelable, CodeValidation},
	{ErrInvalidCredentials, CodeValidation},
	{ErrInvalidOutputFormat, CodeValidation},
	{ErrInvalidAmount, CodeValidation},
	{ErrUserExists, CodeValidation},
	{ErrSchemaVersion, CodeValidation},
	{ErrConfigNil, CodeValidation},
	{ErrConfigInvalidEngine, CodeValidation},
	{ErrConfigInvalidVerify, CodeValidation},
	{ErrConfigInvalidGateway, CodeValidation},
	{ErrConfigInvalidStore, CodeValidation},
	{ErrConfigInvalidLogging, CodeValidation},

	{ErrApplyRequired, CodeGovernance},
	{ErrNetworkNotAllowed, CodeGovernance},
	{ErrPathOutsideScope, CodeGovernance},
	{ErrUserDisabled, CodeGovernance},
	{ErrAdminRequired, CodeGovernance},
	{ErrProviderDisabled, CodeGovernance},

	{ErrInsufficientCredits, CodeInsufficientCredits},
	{ErrRateLimited, CodeRateLimited},

	{ErrNoRouteAvailable, CodeProvider},
	{ErrProviderRequest, CodeProvider},

	{ErrBundleBusy, CodeBundleBusy},
	{ErrInterruptTimeout, CodeInterruptTimeout},
	{ErrStepFailed, CodeStepFailed},

	{ErrLockTimeout, CodeIO},
	{ErrStoreClosed, CodeIO},
	{ErrCheckpointOrder, CodeIO},
	{ErrGitOperation, CodeIO},
}

// CodeOf classifies err into a stable error code by walking the wrap chain.
// A nil error has no code and returns the empty string. Errors that match no
// sentinel classify as internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, entry := range codeEntries {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}
