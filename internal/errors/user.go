package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries is the pre-built mapping of sentinel errors to their user-facing messages.
// This single source of truth ensures UserMessage and Actionable stay in sync.
// Using a slice (not a map) because errors.Is() requires proper error chain traversal.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Workflows & routing
	// ===================
	{
		err: ErrUnknownWorkflow,
		info: ErrorInfo{
			Message: "No workflow with that name is registered.",
			Action:  "Run 'smartspec recommend' to see which workflow fits the current spec, or check the name for typos.",
		},
	},
	{
		err: ErrSpecNotFound,
		info: ErrorInfo{
			Message: "No spec bundle exists for that spec ID.",
			Action:  "Run 'smartspec run generate_spec' to create the bundle, or check the spec ID.",
		},
	},
	{
		err: ErrTasksNotFound,
		info: ErrorInfo{
			Message: "The spec bundle has no tasks.md to verify.",
			Action:  "Run 'smartspec run generate_tasks' first to produce the task list.",
		},
	},
	{
		err: ErrArtifactNotFound,
		info: ErrorInfo{
			Message: "The spec bundle is missing an artifact this workflow depends on.",
			Action:  "Run the authoring workflows in order: generate_spec, generate_plan, generate_tasks.",
		},
	},
	{
		err: ErrReportNotFound,
		info: ErrorInfo{
			Message: "No verification report has been recorded for this spec bundle.",
			Action:  "Run 'smartspec run verify_tasks --spec <spec-id>' first.",
		},
	},
	{
		err: ErrInvalidSpecID,
		info: ErrorInfo{
			Message: "Spec IDs look like spec-<category>-<number>-<slug>, e.g. spec-feat-012-user-auth.",
			Action:  "Check the spec ID spelling and format.",
		},
	},
	{
		err: ErrDescriptorInvalid,
		info: ErrorInfo{
			Message: "A workflow descriptor failed validation, so the registry refused to start.",
			Action:  "Fix the descriptor listed in the error detail under .spec/workflows/ and retry.",
		},
	},

	// ===================
	// Governance
	// ===================
	{
		err: ErrApplyRequired,
		info: ErrorInfo{
			Message: "This workflow writes spec artifacts and was invoked without --apply (dry-run).",
			Action:  "Re-run with --apply to persist changes, or keep the dry-run to preview them.",
		},
	},
	{
		err: ErrNetworkNotAllowed,
		info: ErrorInfo{
			Message: "This workflow calls an LLM provider, which requires --allow-network.",
			Action:  "Re-run with --allow-network, or choose a deterministic workflow such as verify_tasks.",
		},
	},
	{
		err: ErrPathOutsideScope,
		info: ErrorInfo{
			Message: "A write targeted a path outside the governed specs/ and .spec/ trees.",
			Action:  "Workflows may only modify spec artifacts and runtime state. Check the descriptor's outputs.",
		},
	},

	// ===================
	// Executions
	// ===================
	{
		err: ErrExecutionNotFound,
		info: ErrorInfo{
			Message: "No execution exists with that ID.",
			Action:  "Run 'smartspec status' without arguments to list recent executions.",
		},
	},
	{
		err: ErrNotAwaitingInput,
		info: ErrorInfo{
			Message: "That execution is not paused waiting for input.",
			Action:  "Check 'smartspec status <execution-id>'; respond only applies while status is paused.",
		},
	},
	{
		err: ErrNotResumable,
		info: ErrorInfo{
			Message: "That execution cannot be resumed from its current status.",
			Action:  "Only failed or stopped executions with a checkpoint can resume. Completed runs resume as a no-op.",
		},
	},
	{
		err: ErrInterruptTimeout,
		info: ErrorInfo{
			Message: "The approval request expired before a response arrived.",
			Action:  "Resume the execution from its last checkpoint and respond within the deadline.",
		},
	},
	{
		err: ErrBundleBusy,
		info: ErrorInfo{
			Message: "Another operation holds the lock on this spec bundle.",
			Action:  "Wait for the other run to finish, or cancel it with 'smartspec cancel <execution-id>'.",
		},
	},

	// ===================
	// Gateway & accounts
	// ===================
	{
		err: ErrInsufficientCredits,
		info: ErrorInfo{
			Message: "Your credit balance cannot cover the estimated cost of this request.",
			Action:  "Top up with 'smartspec credits topup', or lower the budget priority.",
		},
	},
	{
		err: ErrRateLimited,
		info: ErrorInfo{
			Message: "Too many gateway requests in the current window.",
			Action:  "Wait for the window to pass and retry; the error detail includes the retry delay.",
		},
	},
	{
		err: ErrNoRouteAvailable,
		info: ErrorInfo{
			Message: "Every provider in the routing chain was unavailable or failed.",
			Action:  "Check provider API keys and status with 'smartspec providers list', then retry.",
		},
	},
	{
		err: ErrProviderDisabled,
		info: ErrorInfo{
			Message: "The requested provider is administratively disabled.",
			Action:  "An admin can re-enable it with 'smartspec providers enable <name>'.",
		},
	},
	{
		err: ErrUserDisabled,
		info: ErrorInfo{
			Message: "This account is deactivated and cannot spend credits.",
			Action:  "Ask an admin to reactivate the account.",
		},
	},
	{
		err: ErrInvalidCredentials,
		info: ErrorInfo{
			Message: "Email or password did not match an active account.",
			Action:  "Check the credentials, or register with 'smartspec users register'.",
		},
	},
}

// errorInfoMap provides O(1) lookup for direct sentinel error matches.
// Built once from errorInfoEntries during package initialization.
//
//nolint:gochecknoglobals // Pre-built mapping for O(1) lookup performance
var errorInfoMap = buildErrorInfoMap()

// buildErrorInfoMap creates a map from the errorInfoEntries slice.
// This is called once during package init for O(1) direct lookups.
func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error.
// It first tries O(1) direct map lookup for unwrapped sentinel errors,
// then falls back to errors.Is() traversal for wrapped errors.
// Returns an ErrorInfo with the original error message if not found.
func getErrorInfo(err error) ErrorInfo {
	// Fast path: O(1) lookup for direct sentinel errors
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	// Slow path: errors.Is() for wrapped errors
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// This function maps sentinel errors to helpful, actionable messages
// that are suitable for display to end users.
//
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action the user can take to resolve or work around the issue.
//
// For errors that are not recoverable or have no clear action, the action
// string will be empty.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
