package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"empty is allowed", "", false},
		{"whitespace is allowed", "  \n", false},
		{"empty object", "{}", false},
		{"object with values", `{"retries": 3, "reviewer": "em"}`, false},
		{"array rejected", `[1, 2, 3]`, true},
		{"scalar rejected", `"just a string"`, true},
		{"malformed rejected", `{"open`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "JSON object")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// The prompt functions refuse to run without a terminal on stdin, which is
// exactly the situation under go test. Non-interactive callers are expected
// to use the --approve/--reject/--modify flags instead.
func TestRespondForm_RequiresTerminal(t *testing.T) {
	interrupt := &domain.PendingInterrupt{
		ID:          "0f9e8d7c-6b5a-4433-2211-ffeeddccbbaa",
		ExecutionID: "a1b2c3d4-e5f6-7890-abcd-ef0123456789",
		StepName:    "review_diff",
		Prompt:      "Apply the generated changes?",
		Deadline:    time.Now().Add(10 * time.Minute),
	}

	resp, err := RespondForm(interrupt)
	require.ErrorIs(t, err, sserrors.ErrPromptCanceled)
	assert.Nil(t, resp)
}

func TestConfirm_RequiresTerminal(t *testing.T) {
	confirmed, err := Confirm("Cancel the running execution?", false)
	require.ErrorIs(t, err, sserrors.ErrPromptCanceled)
	assert.False(t, confirmed)
}

func TestTheme(t *testing.T) {
	require.NotNil(t, Theme())
}

func TestAdaptFormWidth_Bounds(t *testing.T) {
	// Detection failure falls back to the default; success clamps to the
	// same range. Either way the width stays usable.
	width := adaptFormWidth()
	assert.GreaterOrEqual(t, width, MinFormWidth)
	assert.LessOrEqual(t, width, DefaultFormWidth)
}
