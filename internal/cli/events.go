package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/tui"
)

// EventStreamer subscribes to an execution's ordered event stream.
type EventStreamer interface {
	Events(ctx context.Context, executionID string) (<-chan domain.Event, error)
}

// ExecutionGetter loads one execution row, satisfied by the store.
type ExecutionGetter interface {
	GetExecution(ctx context.Context, id string) (*domain.Execution, error)
}

// AddEventsCommand adds the events command to the root command.
func AddEventsCommand(parent *cobra.Command, flags *GlobalFlags) {
	var follow bool

	cmd := &cobra.Command{
		Use:   "events <execution-id>",
		Short: "Stream an execution's event log",
		Long: `Print the ordered event stream for one execution as JSON Lines. Finished
executions replay their persisted log; running executions replay history
and then stream live until the terminal event. With --follow on a
terminal, a live progress view is shown instead of raw events.`,
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

			return runEvents(ctx, os.Stdout, flags, args[0], follow, o, o.Store(), o.Store())
		},
	}

	cmd.Flags().BoolVar(&follow, "follow", false, "show a live progress view instead of raw events")

	parent.AddCommand(cmd)
}

// runEvents resolves the execution and streams its events.
func runEvents(ctx context.Context, w io.Writer, flags *GlobalFlags, ref string, follow bool,
	streamer EventStreamer, getter ExecutionGetter, lister ExecutionLister) error {
	id, err := ResolveExecutionID(ctx, lister, ref)
	if err != nil {
		return err
	}

	events, err := streamer.Events(ctx, id)
	if err != nil {
		return err
	}

	if follow && flags.Output != OutputJSON && term.IsTerminal(int(os.Stdout.Fd())) {
		exec, err := getter.GetExecution(ctx, id)
		if err != nil {
			return err
		}
		model := tui.NewFollowModel(exec, events)
		program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(w))
		if _, err := program.Run(); err != nil {
			return errors.Wrap(err, "event follow view failed")
		}
		return followOutcome(model)
	}

	if flags.Output == OutputJSON || follow {
		return streamEventLines(ctx, w, events)
	}
	return streamEventText(ctx, w, events)
}

// streamEventText prints one styled line per event for terminal readers.
func streamEventText(ctx context.Context, w io.Writer, events <-chan domain.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-events:
			if !open {
				return nil
			}
			fmt.Fprintln(w, eventTextLine(ev))
			if ev.Type == domain.EventWorkflowFailed {
				return errors.Wrap(errors.ErrStepFailed, ev.Error)
			}
		}
	}
}

// eventTextLine formats one event for the plain text stream.
func eventTextLine(ev domain.Event) string {
	line := fmt.Sprintf("%4d  %s %s", ev.Sequence, tui.EventIcon(ev.Type), ev.Type)
	if ev.StepName != "" {
		line += "  " + ev.StepName
	}
	if ev.Error != "" {
		line += "  " + tui.NewOutputStyles().Error.Render(ev.Error)
	}
	if ev.Reason != "" {
		line += "  " + tui.StyleDim.Render(ev.Reason)
	}
	return line
}
