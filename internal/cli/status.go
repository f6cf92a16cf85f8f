package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/engine"
	"github.com/mrz1836/smartspec/internal/store"
	"github.com/mrz1836/smartspec/internal/tui"
)

const (
	// statusListLimit caps how many executions the bare status listing shows.
	statusListLimit = 20

	// statusBarWidth is the progress bar width in the detail view.
	statusBarWidth = 30
)

// ProgressReader reports execution progress, satisfied by the orchestrator.
type ProgressReader interface {
	Status(ctx context.Context, executionID string) (*engine.Progress, error)
}

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(parent *cobra.Command, flags *GlobalFlags) {
	var specFilter string

	cmd := &cobra.Command{
		Use:   "status [execution-id]",
		Short: "Show execution progress",
		Long: `Without arguments, list recent executions. With an execution id (or an
unambiguous prefix), show that execution's step-by-step progress and any
pending interrupts.`,
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

			if len(args) == 0 {
				return runStatusList(ctx, os.Stdout, flags, specFilter, o.Store())
			}
			return runStatusOne(ctx, os.Stdout, flags, args[0], o, o.Store())
		},
	}

	cmd.Flags().StringVar(&specFilter, "spec", "", "only list executions for this spec bundle")

	parent.AddCommand(cmd)
}

// runStatusList renders the recent-execution table.
func runStatusList(ctx context.Context, w io.Writer, flags *GlobalFlags, specFilter string, lister ExecutionLister) error {
	execs, err := lister.ListExecutions(ctx, store.ExecutionFilter{
		SpecID: specFilter,
		Limit:  statusListLimit,
	})
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(execs)
	}
	if len(execs) == 0 {
		tui.NewTTYOutput(w).Info("no executions yet; start one with 'smartspec run'")
		return nil
	}

	table := tui.NewExecutionTable(tui.BuildExecutionRows(execs))
	return table.Render(w)
}

// runStatusOne renders one execution's progress detail.
func runStatusOne(ctx context.Context, w io.Writer, flags *GlobalFlags, ref string, progress ProgressReader, lister ExecutionLister) error {
	id, err := ResolveExecutionID(ctx, lister, ref)
	if err != nil {
		return err
	}

	p, err := progress.Status(ctx, id)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(p)
	}
	renderProgress(w, p)
	return nil
}

// renderProgress writes the human-readable progress detail.
func renderProgress(w io.Writer, p *engine.Progress) {
	exec := p.Execution
	styles := tui.NewOutputStyles()

	fmt.Fprintf(w, "%s  %s\n", tui.StyleBold.Render(exec.Workflow), tui.ShortID(exec.ID))
	if exec.SpecID != "" {
		fmt.Fprintf(w, "spec:    %s\n", exec.SpecID)
	}
	fmt.Fprintf(w, "status:  %s\n", tui.FormatStatusWithIcon(exec.Status, exec.Status.String()))
	if !exec.StartedAt.IsZero() {
		fmt.Fprintf(w, "started: %s\n", tui.RelativeTime(exec.StartedAt))
	}
	if exec.Error != "" {
		fmt.Fprintf(w, "error:   %s\n", styles.Error.Render(exec.Error))
	}

	bar := tui.NewProgressBar(statusBarWidth)
	fmt.Fprintln(w, tui.ProgressLine(bar, p.Fraction, p.CompletedSteps, p.TotalSteps, p.LastStep))

	if len(p.Steps) > 0 {
		fmt.Fprintln(w)
		for _, step := range p.Steps {
			fmt.Fprintf(w, "  %2d. %s %s%s\n",
				step.Index,
				tui.StepStatusIcon(step.Status),
				step.Name,
				stepTiming(step))
		}
	}

	for _, pending := range p.Interrupts {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Warning.Render(fmt.Sprintf("⏸ waiting on %s: %s", pending.StepName, pending.Prompt)))
		fmt.Fprintf(w, "respond with: smartspec respond %s\n", pending.ID)
	}
}

// stepTiming renders the elapsed time suffix for a finished or running step.
func stepTiming(step engine.StepRecord) string {
	if step.StartedAt == nil {
		return ""
	}
	end := time.Now().UTC()
	if step.EndedAt != nil {
		end = *step.EndedAt
	}
	return "  " + tui.StyleDim.Render(tui.FormatDuration(end.Sub(*step.StartedAt)))
}
