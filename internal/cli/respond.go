package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/tui"
)

// respondOptions holds the respond command's own flags.
type respondOptions struct {
	execution string
	approve   bool
	reject    bool
	modify    string
	note      string
}

// InterruptResponder delivers interrupt decisions, satisfied by the
// orchestrator plus its engine.
type InterruptResponder interface {
	Respond(ctx context.Context, interruptID string, resp domain.InterruptResponse) error
}

// ExecutionResponder resolves an execution's oldest pending interrupt.
type ExecutionResponder interface {
	RespondExecution(ctx context.Context, executionID string, resp domain.InterruptResponse) error
	PendingInterrupts(executionID string) []domain.PendingInterrupt
}

// AddRespondCommand adds the respond command to the root command.
func AddRespondCommand(parent *cobra.Command, flags *GlobalFlags) {
	opts := &respondOptions{}

	cmd := &cobra.Command{
		Use:   "respond [interrupt-id]",
		Short: "Answer a paused execution's interrupt",
		Long: `Deliver an approve, reject, or modify decision to a pending
human-in-the-loop interrupt. Address the interrupt by id, or use
--execution to answer the oldest pending interrupt of an execution.
Without a decision flag an interactive form collects the decision.

Examples:
  smartspec respond 4f9c2a1b --approve
  smartspec respond 4f9c2a1b --reject --note "plan touches the wrong package"
  smartspec respond --execution 81d0 --modify '{"max_tasks": 5}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ec, err := ResolveExecutionContext(ctx, flags)
			if err != nil {
				return err
			}
			o, err := system(ctx, ec, nil)
			if err != nil {
				return err
			}
			defer closeSystem(o)

			interruptID := ""
			if len(args) == 1 {
				interruptID = args[0]
			}
			return runRespond(ctx, os.Stdout, flags, opts, interruptID, o, o.Engine(), o.Store())
		},
	}

	cmd.Flags().StringVar(&opts.execution, "execution", "", "answer the oldest pending interrupt of this execution")
	cmd.Flags().BoolVar(&opts.approve, "approve", false, "approve and let the step's proposed output stand")
	cmd.Flags().BoolVar(&opts.reject, "reject", false, "reject and fail the execution at this step")
	cmd.Flags().StringVar(&opts.modify, "modify", "", "approve with a JSON object of state overrides")
	cmd.Flags().StringVar(&opts.note, "note", "", "reviewer note recorded with the decision")
	cmd.MarkFlagsMutuallyExclusive("approve", "reject", "modify")

	parent.AddCommand(cmd)
}

// runRespond builds the decision and routes it to the interrupt.
func runRespond(ctx context.Context, w io.Writer, flags *GlobalFlags, opts *respondOptions, interruptID string,
	responder InterruptResponder, execResponder ExecutionResponder, lister ExecutionLister) error {
	if interruptID == "" && opts.execution == "" {
		return errors.Wrap(errors.ErrInvalidArgument, "provide an interrupt id or --execution")
	}
	if interruptID != "" && opts.execution != "" {
		return errors.Wrap(errors.ErrInvalidArgument, "interrupt id and --execution are mutually exclusive")
	}

	resp, err := buildResponse(opts)
	if err != nil {
		return err
	}

	if opts.execution != "" {
		execID, err := ResolveExecutionID(ctx, lister, opts.execution)
		if err != nil {
			return err
		}
		if resp == nil {
			resp, err = interactiveResponse(execResponder, execID)
			if err != nil {
				return err
			}
		}
		if err := execResponder.RespondExecution(ctx, execID, *resp); err != nil {
			return err
		}
	} else {
		if resp == nil {
			return errors.Wrap(errors.ErrInvalidArgument,
				"pass --approve, --reject, or --modify, or use --execution for the interactive form")
		}
		if err := responder.Respond(ctx, interruptID, *resp); err != nil {
			return err
		}
	}

	out := outputTo(w, flags)
	if flags.Output == OutputJSON {
		return out.JSON(resp)
	}
	out.Success(fmt.Sprintf("decision %s delivered", resp.Action))
	return nil
}

// buildResponse maps the decision flags onto an interrupt response. Returns
// nil when no decision flag was set.
func buildResponse(opts *respondOptions) (*domain.InterruptResponse, error) {
	switch {
	case opts.approve:
		return &domain.InterruptResponse{Action: domain.InterruptApprove, Note: opts.note}, nil
	case opts.reject:
		return &domain.InterruptResponse{Action: domain.InterruptReject, Note: opts.note}, nil
	case opts.modify != "":
		if !json.Valid([]byte(opts.modify)) {
			return nil, errors.Wrap(errors.ErrInvalidArgument, "--modify must be a JSON object")
		}
		return &domain.InterruptResponse{
			Action:  domain.InterruptModify,
			Payload: json.RawMessage(opts.modify),
			Note:    opts.note,
		}, nil
	default:
		return nil, nil
	}
}

// interactiveResponse runs the decision form against the execution's oldest
// pending interrupt.
func interactiveResponse(execResponder ExecutionResponder, execID string) (*domain.InterruptResponse, error) {
	pending := execResponder.PendingInterrupts(execID)
	if len(pending) == 0 {
		return nil, errors.Wrapf(errors.ErrNotAwaitingInput, "execution %s", tui.ShortID(execID))
	}
	return tui.RespondForm(&pending[0])
}
