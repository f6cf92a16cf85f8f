package steps

import (
	"context"
	"fmt"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
)

// HumanStep asks the engine to pause the execution for an approve, reject,
// or modify decision. The engine owns the wait, the timeout, and the merge of
// a modify payload; this executor only raises the interrupt.
type HumanStep struct{}

// NewHumanStep returns the human executor.
func NewHumanStep() *HumanStep {
	return &HumanStep{}
}

// Type implements engine.StepExecutor.
func (s *HumanStep) Type() domain.StepType { return domain.StepTypeHuman }

// Execute implements engine.StepExecutor.
func (s *HumanStep) Execute(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	prompt := req.Step.Config["prompt"]
	if prompt == "" {
		prompt = fmt.Sprintf("Approve step %q to continue.", req.Step.Name)
	}

	raw, err := marshalOutput(struct {
		Prompt string `json:"prompt"`
	}{Prompt: prompt})
	if err != nil {
		return nil, err
	}

	return &engine.StepResult{
		Status: constants.StepStatusAwaitingInput,
		Output: raw,
		Interrupt: &engine.InterruptRequest{
			Prompt:  prompt,
			Timeout: req.Step.Timeout,
		},
	}, nil
}
