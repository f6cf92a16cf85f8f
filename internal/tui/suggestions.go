package tui

import (
	"errors"

	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// ActionableError wraps an error with an actionable suggestion.
// Used to provide users with clear next steps when errors occur.
//
// Example usage:
//
//	err := NewActionableError("spec not found", "Run: smartspec ask \"what specs exist\"")
//	output.Error(err)
//	// Outputs: ✗ spec not found
//	//            ▸ Try: smartspec ask "what specs exist"
type ActionableError struct {
	// Message is the primary error message.
	Message string

	// Suggestion provides actionable guidance for resolving the error.
	// Should start with a verb (e.g., "Run: smartspec recommend").
	Suggestion string

	// Context provides optional additional information about the error.
	// When present, it is appended to the message in parentheses.
	Context string
}

// NewActionableError creates a new ActionableError with message and suggestion.
func NewActionableError(msg, suggestion string) *ActionableError {
	return &ActionableError{
		Message:    msg,
		Suggestion: suggestion,
	}
}

// Error implements the error interface. Returns the message with context if
// provided, e.g., "spec not found (spec-feat-001-auth)".
func (e *ActionableError) Error() string {
	if e.Context != "" {
		return e.Message + " (" + e.Context + ")"
	}
	return e.Message
}

// WithContext adds optional context to the error.
// Returns the same error for method chaining.
func (e *ActionableError) WithContext(ctx string) *ActionableError {
	e.Context = ctx
	return e
}

// ErrorSuggestion maps a sentinel error to its suggested fix.
type ErrorSuggestion struct {
	Error      error
	Suggestion string
}

// errorSuggestions maps common errors to helpful suggestions.
// Each suggestion should be actionable and start with a verb.
//
//nolint:gochecknoglobals // Intentional package-level constant for error suggestions
var errorSuggestions = []ErrorSuggestion{
	// Bundle errors
	{sserrors.ErrSpecNotFound, "Run: smartspec ask \"what specs exist\""},
	{sserrors.ErrInvalidSpecID, "Use the spec-<category>-<number>-<slug> form, e.g. spec-feat-001-auth"},
	{sserrors.ErrTasksNotFound, "Run: smartspec run generate_tasks --spec <id> --apply --allow-network"},
	{sserrors.ErrReportNotFound, "Run: smartspec verify <id>"},
	{sserrors.ErrBundleBusy, "Wait for the running workflow or run: smartspec status"},
	{sserrors.ErrLockTimeout, "Wait for the running workflow or run: smartspec status"},

	// Governance errors
	{sserrors.ErrApplyRequired, "Add: --apply"},
	{sserrors.ErrNetworkNotAllowed, "Add: --allow-network"},

	// Workflow errors
	{sserrors.ErrUnknownWorkflow, "Run: smartspec recommend"},

	// Execution lifecycle errors
	{sserrors.ErrExecutionNotFound, "Run: smartspec status"},
	{sserrors.ErrCheckpointNotFound, "Run: smartspec status"},
	{sserrors.ErrInterruptNotFound, "Run: smartspec status <execution-id>"},
	{sserrors.ErrNotAwaitingInput, "Run: smartspec status <execution-id>"},
	{sserrors.ErrNotResumable, "Run: smartspec status <execution-id>"},
	{sserrors.ErrNotCancelable, "Run: smartspec status <execution-id>"},

	// Gateway errors
	{sserrors.ErrInsufficientCredits, "Run: smartspec credits topup --amount <credits>"},
	{sserrors.ErrRateLimited, "Wait a minute and retry"},
	{sserrors.ErrProviderDisabled, "Run: smartspec providers enable <name>"},
	{sserrors.ErrNoRouteAvailable, "Set ANTHROPIC_API_KEY or OPENAI_API_KEY and retry"},
	{sserrors.ErrUserNotFound, "Run: smartspec users register --email <email>"},

	// Git errors
	{sserrors.ErrGitOperation, "Check: git status"},
}

// SuggestionForError returns a suggestion for the given error.
// Returns empty string if no suggestion is available.
func SuggestionForError(err error) string {
	if err == nil {
		return ""
	}

	for _, es := range errorSuggestions {
		if errors.Is(err, es.Error) {
			return es.Suggestion
		}
	}
	return ""
}

// WrapWithSuggestion creates an ActionableError from an error if a suggestion
// exists. Returns the original error unchanged otherwise, preserving error
// types when suggestions don't exist.
func WrapWithSuggestion(err error) error {
	if err == nil {
		return nil
	}

	suggestion := SuggestionForError(err)
	if suggestion == "" {
		return err
	}
	return NewActionableError(err.Error(), suggestion)
}
