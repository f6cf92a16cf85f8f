package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/tui"
)

// ExecutionCanceler requests cooperative cancellation of an execution.
type ExecutionCanceler interface {
	Cancel(ctx context.Context, executionID string) error
}

// AddCancelCommand adds the cancel command to the root command.
func AddCancelCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "cancel <execution-id>",
		Short: "Cancel a running execution",
		Long: `Request cooperative cancellation of a running execution. The current step
gets a grace period to finish; the last completed checkpoint survives, so
the execution stays resumable with 'smartspec resume'.`,
		Args: cobra.ExactArgs(1),
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

			return runCancel(ctx, os.Stdout, flags, args[0], o, o.Store())
		},
	}

	parent.AddCommand(cmd)
}

// runCancel resolves the execution and requests its cancellation.
func runCancel(ctx context.Context, w io.Writer, flags *GlobalFlags, ref string, canceler ExecutionCanceler, lister ExecutionLister) error {
	id, err := ResolveExecutionID(ctx, lister, ref)
	if err != nil {
		return err
	}
	if err := canceler.Cancel(ctx, id); err != nil {
		return err
	}

	out := outputTo(w, flags)
	if flags.Output == OutputJSON {
		return out.JSON(map[string]string{"execution_id": id, "status": "canceling"})
	}
	out.Success(fmt.Sprintf("cancellation requested for %s", tui.ShortID(id)))
	out.Info("the current step finishes its grace period before the execution stops")
	return nil
}
