package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWrapNilError verifies Wrap and Wrapf return nil for nil input.
func TestWrapNilError(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, Wrapf(nil, "context %s", "arg"))
}

// TestWrapPreservesChain verifies wrapped errors still match sentinels.
func TestWrapPreservesChain(t *testing.T) {
	err := Wrap(ErrBundleBusy, "acquiring lock")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBundleBusy)
	assert.Contains(t, err.Error(), "acquiring lock")

	err = Wrapf(ErrExecutionNotFound, "loading execution %s", "exec-123")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionNotFound)
	assert.Contains(t, err.Error(), "exec-123")
}

// TestCodeOf verifies sentinel-to-code classification through wrap chains.
func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "nil error", err: nil, want: ""},
		{name: "unknown workflow", err: ErrUnknownWorkflow, want: CodeValidation},
		{name: "wrapped unknown workflow", err: Wrap(ErrUnknownWorkflow, "routing"), want: CodeValidation},
		{name: "apply required", err: ErrApplyRequired, want: CodeGovernance},
		{name: "path outside scope", err: fmt.Errorf("writing report: %w", ErrPathOutsideScope), want: CodeGovernance},
		{name: "insufficient credits", err: ErrInsufficientCredits, want: CodeInsufficientCredits},
		{name: "rate limited", err: ErrRateLimited, want: CodeRateLimited},
		{name: "no route", err: ErrNoRouteAvailable, want: CodeProvider},
		{name: "bundle busy", err: ErrBundleBusy, want: CodeBundleBusy},
		{name: "interrupt timeout", err: ErrInterruptTimeout, want: CodeInterruptTimeout},
		{name: "step failed", err: ErrStepFailed, want: CodeStepFailed},
		{name: "execution not found", err: ErrExecutionNotFound, want: CodeNotFound},
		{name: "spec not found beats validation", err: Wrap(ErrSpecNotFound, "observing bundle"), want: CodeNotFound},
		{name: "lock timeout", err: ErrLockTimeout, want: CodeIO},
		{name: "unclassified error", err: stderrors.New("boom"), want: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

// TestCreditError verifies the typed credit error carries its numbers and
// unwraps to the sentinel.
func TestCreditError(t *testing.T) {
	err := &CreditError{Balance: 40, Required: 100}

	assert.Equal(t, int64(60), err.Shortfall())
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Equal(t, CodeInsufficientCredits, CodeOf(err))
	assert.Contains(t, err.Error(), "balance 40")
	assert.Contains(t, err.Error(), "required 100")
	assert.Contains(t, err.Error(), "short 60")
}

// TestRateLimitError verifies the typed rate limit error.
func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{RetryAfter: 12 * time.Second, Limit: 60}

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, CodeRateLimited, CodeOf(err))
	assert.Contains(t, err.Error(), "12s")
}

// TestBundleBusyError verifies the typed bundle busy error.
func TestBundleBusyError(t *testing.T) {
	err := &BundleBusyError{SpecID: "spec-feat-001-demo"}

	assert.ErrorIs(t, err, ErrBundleBusy)
	assert.Equal(t, CodeBundleBusy, CodeOf(err))
	assert.Contains(t, err.Error(), "spec-feat-001-demo")
}

// TestInternalError verifies the correlation ID is exposed and the cause
// stays reachable through Unwrap.
func TestInternalError(t *testing.T) {
	cause := stderrors.New("disk exploded")
	err := &InternalError{CorrelationID: "c0ffee42", Err: cause}

	assert.Contains(t, err.Error(), "c0ffee42")
	assert.NotContains(t, err.Error(), "disk exploded")
	assert.ErrorIs(t, err, cause)
}

// TestUserMessage verifies known sentinels map to friendly messages and
// unknown errors fall through to their own text.
func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))

	msg := UserMessage(Wrap(ErrApplyRequired, "executing"))
	assert.Contains(t, msg, "--apply")

	msg = UserMessage(stderrors.New("some obscure failure"))
	assert.Equal(t, "some obscure failure", msg)
}

// TestActionable verifies message/action pairs resolve via errors.Is.
func TestActionable(t *testing.T) {
	message, action := Actionable(fmt.Errorf("gateway: %w", ErrInsufficientCredits))
	assert.Contains(t, message, "credit balance")
	assert.Contains(t, action, "topup")

	message, action = Actionable(nil)
	assert.Empty(t, message)
	assert.Empty(t, action)
}
