package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/tui"
)

// ExecutionResumer starts a new execution from a persisted checkpoint.
type ExecutionResumer interface {
	Resume(ctx context.Context, checkpointID string) (*domain.Execution, error)
}

// CheckpointFinder resolves an execution's most recent checkpoint.
type CheckpointFinder interface {
	LatestCheckpoint(ctx context.Context, executionID string) (*domain.Checkpoint, error)
}

// AddResumeCommand adds the resume command to the root command.
func AddResumeCommand(parent *cobra.Command, flags *GlobalFlags) {
	var execRef string

	cmd := &cobra.Command{
		Use:   "resume [checkpoint-id]",
		Short: "Resume a failed or canceled execution",
		Long: `Start a fresh execution from a persisted checkpoint. The new execution
reuses the checkpointed state and continues at the step after the
checkpoint. Pass a checkpoint id, or --execution to resume from an
execution's latest checkpoint.`,
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

			checkpointID := ""
			if len(args) == 1 {
				checkpointID = args[0]
			}
			return runResume(ctx, os.Stdout, flags, checkpointID, execRef, o, o.Store(), o.Store())
		},
	}

	cmd.Flags().StringVar(&execRef, "execution", "", "resume from this execution's latest checkpoint")

	parent.AddCommand(cmd)
}

// runResume resolves the checkpoint and starts the resumed execution.
func runResume(ctx context.Context, w io.Writer, flags *GlobalFlags, checkpointID, execRef string,
	resumer ExecutionResumer, finder CheckpointFinder, lister ExecutionLister) error {
	switch {
	case checkpointID != "" && execRef != "":
		return errors.Wrap(errors.ErrInvalidArgument, "checkpoint id and --execution are mutually exclusive")
	case checkpointID == "" && execRef == "":
		return errors.Wrap(errors.ErrInvalidArgument, "provide a checkpoint id or --execution")
	case execRef != "":
		execID, err := ResolveExecutionID(ctx, lister, execRef)
		if err != nil {
			return err
		}
		cp, err := finder.LatestCheckpoint(ctx, execID)
		if err != nil {
			return err
		}
		checkpointID = cp.ID
	}

	exec, err := resumer.Resume(ctx, checkpointID)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(exec)
	}
	out := tui.NewTTYOutput(w)
	out.Success(fmt.Sprintf("execution %s resumed from checkpoint %s (%s)",
		tui.ShortID(exec.ID), tui.ShortID(checkpointID), exec.Workflow))
	out.Info(fmt.Sprintf("follow with: smartspec events %s --follow", exec.ID))
	return nil
}
