package tui

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

func TestActionableError(t *testing.T) {
	t.Run("message only", func(t *testing.T) {
		ae := NewActionableError("spec not found", "Run: smartspec recommend")
		assert.Equal(t, "spec not found", ae.Error())
		assert.Equal(t, "Run: smartspec recommend", ae.Suggestion)
	})

	t.Run("with context", func(t *testing.T) {
		ae := NewActionableError("spec not found", "Run: smartspec recommend").
			WithContext("spec-feat-001-auth")
		assert.Equal(t, "spec not found (spec-feat-001-auth)", ae.Error())
	})
}

func TestSuggestionForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, ""},
		{"unknown error", errors.New("something else"), ""},
		{"direct sentinel", sserrors.ErrApplyRequired, "Add: --apply"},
		{
			"wrapped sentinel",
			fmt.Errorf("start workflow: %w", sserrors.ErrNetworkNotAllowed),
			"Add: --allow-network",
		},
		{
			"deeply wrapped sentinel",
			fmt.Errorf("run: %w", fmt.Errorf("gateway: %w", sserrors.ErrInsufficientCredits)),
			"Run: smartspec credits topup --amount <credits>",
		},
		{
			"spec lookup",
			sserrors.ErrSpecNotFound,
			"Run: smartspec ask \"what specs exist\"",
		},
		{
			"awaiting input",
			sserrors.ErrNotAwaitingInput,
			"Run: smartspec status <execution-id>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestionForError(tt.err))
		})
	}
}

func TestWrapWithSuggestion(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, WrapWithSuggestion(nil))
	})

	t.Run("unknown error returned unchanged", func(t *testing.T) {
		err := errors.New("no suggestion for this")
		got := WrapWithSuggestion(err)

		require.ErrorIs(t, got, err)
		var ae *ActionableError
		assert.False(t, errors.As(got, &ae), "error without suggestion should not be wrapped")
	})

	t.Run("known error becomes actionable", func(t *testing.T) {
		wrapped := WrapWithSuggestion(sserrors.ErrProviderDisabled)

		var ae *ActionableError
		require.ErrorAs(t, wrapped, &ae)
		assert.Equal(t, sserrors.ErrProviderDisabled.Error(), ae.Message)
		assert.Contains(t, ae.Suggestion, "smartspec providers enable")
	})
}
