package steps

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
)

func TestHumanStep_RaisesInterrupt(t *testing.T) {
	env := newTestEnv(t)
	step := NewHumanStep()

	req := env.request(constants.WorkflowImplementTasks, domain.WorkflowStep{
		Name:    "approve",
		Type:    domain.StepTypeHuman,
		Config:  map[string]string{"prompt": "Apply the guidance, then approve."},
		Timeout: time.Hour,
	}, testSpecID, true)

	res, err := step.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, constants.StepStatusAwaitingInput, res.Status)

	require.NotNil(t, res.Interrupt)
	assert.Equal(t, "Apply the guidance, then approve.", res.Interrupt.Prompt)
	assert.Equal(t, time.Hour, res.Interrupt.Timeout)

	var out struct {
		Prompt string `json:"prompt"`
	}
	require.NoError(t, json.Unmarshal(res.Output, &out))
	assert.Equal(t, res.Interrupt.Prompt, out.Prompt)
}

func TestHumanStep_DefaultPrompt(t *testing.T) {
	env := newTestEnv(t)
	step := NewHumanStep()

	req := env.request(constants.WorkflowImplementTasks, domain.WorkflowStep{
		Name: "approve",
		Type: domain.StepTypeHuman,
	}, testSpecID, true)

	res, err := step.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.Interrupt)
	assert.Equal(t, `Approve step "approve" to continue.`, res.Interrupt.Prompt)
	assert.Zero(t, res.Interrupt.Timeout, "no step timeout means the engine default applies")
}
