package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/orchestrator"
	"github.com/mrz1836/smartspec/internal/tui"
)

// QueryAsker answers natural-language questions about the workspace.
type QueryAsker interface {
	Ask(ctx context.Context, input string) (*orchestrator.AskResult, error)
}

// AddAskCommand adds the ask command to the root command.
func AddAskCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a question about the workspace",
		Long: `Answer a natural-language question about spec bundles, executions, and
what to run next. Status questions answer from observed bundle state,
recommendation questions run the decision table.

Examples:
  smartspec ask "where are we on spec-feat-001-user-auth"
  smartspec ask what should I run next
  smartspec ask "do we have a spec for rate limiting"`,
		Args: cobra.MinimumNArgs(1),
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

			return runAsk(ctx, os.Stdout, flags, strings.Join(args, " "),
				&spinnerAsker{inner: o, flags: flags})
		},
	}

	parent.AddCommand(cmd)
}

// runAsk dispatches the question and renders the answer.
func runAsk(ctx context.Context, w io.Writer, flags *GlobalFlags, question string, asker QueryAsker) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return errors.Wrap(errors.ErrInvalidArgument, "question is empty")
	}

	result, err := asker.Ask(ctx, question)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(result)
	}

	fmt.Fprintln(w, result.Answer)

	if rec := result.Recommendation; rec != nil && rec.Workflow != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, tui.StyleDim.Render("run it with: "+suggestedRunCommand(rec)))
	}
	return nil
}
