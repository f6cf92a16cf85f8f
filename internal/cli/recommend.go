package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/tui"
)

// Recommender answers "what should run next" for one spec bundle.
// Satisfied by *orchestrator.Orchestrator; used for dependency injection in
// tests.
type Recommender interface {
	Recommend(ctx context.Context, id domain.SpecID) (*domain.Recommendation, error)
}

// SpecLister enumerates the bundles in the workspace.
type SpecLister interface {
	ListSpecs() ([]domain.SpecID, error)
}

// AddRecommendCommand adds the recommend command to the root command.
func AddRecommendCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "recommend [spec-id]",
		Short: "Recommend the next workflow for a spec bundle",
		Long: `Observe a spec bundle and recommend the next pipeline workflow from the
decision table: generate_spec through release_tagger.

The recommendation is advice only; nothing executes until 'smartspec run'.
With no spec-id, the sole bundle in the workspace is used.

Examples:
  smartspec recommend spec-feat-001-user-auth
  smartspec recommend --output json`,
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

			return runRecommend(ctx, os.Stdout, flags, args, o, o.Layout())
		},
	}
	parent.AddCommand(cmd)
}

// runRecommend resolves the target bundle and renders the recommendation.
func runRecommend(ctx context.Context, w io.Writer, flags *GlobalFlags, args []string, rec Recommender, specs SpecLister) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	id, err := targetSpec(args, specs)
	if err != nil {
		return err
	}

	recommendation, err := rec.Recommend(ctx, id)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(recommendation)
	}
	renderRecommendation(w, recommendation)
	return nil
}

// targetSpec picks the bundle a command applies to: the named one, or the
// sole bundle in the workspace.
func targetSpec(args []string, specs SpecLister) (domain.SpecID, error) {
	if len(args) > 0 {
		return domain.ParseSpecID(args[0])
	}

	ids, err := specs.ListSpecs()
	if err != nil {
		return domain.SpecID{}, err
	}
	switch len(ids) {
	case 0:
		return domain.SpecID{}, errors.Wrap(errors.ErrSpecNotFound, "the workspace has no spec bundles")
	case 1:
		return ids[0], nil
	default:
		names := make([]string, len(ids))
		for i := range ids {
			names[i] = ids[i].String()
		}
		return domain.SpecID{}, errors.Wrapf(errors.ErrInvalidArgument,
			"several spec bundles exist, name one of: %s", strings.Join(names, ", "))
	}
}

// renderRecommendation prints the human-readable recommendation.
func renderRecommendation(w io.Writer, rec *domain.Recommendation) {
	styles := tui.NewOutputStyles()

	if rec.Workflow == "" {
		_, _ = fmt.Fprintln(w, rec.Rationale)
		return
	}

	_, _ = fmt.Fprintf(w, "%s %s\n", tui.StyleBold.Render("Next:"), rec.Workflow)
	_, _ = fmt.Fprintf(w, "  %s\n", rec.Rationale)
	if rec.EstimatedDuration > 0 {
		_, _ = fmt.Fprintf(w, "  estimated duration: %s\n", tui.FormatDuration(rec.EstimatedDuration))
	}
	for _, warning := range rec.Warnings {
		_, _ = fmt.Fprintf(w, "  %s\n", styles.Warning.Render("! "+warning))
	}

	_, _ = fmt.Fprintf(w, "\n  %s\n", styles.Dim.Render(suggestedRunCommand(rec)))
}

// suggestedRunCommand composes the copy-pasteable run invocation for a
// recommendation, including the governance flags the workflow needs.
func suggestedRunCommand(rec *domain.Recommendation) string {
	command := "smartspec run " + rec.Workflow
	if rec.SpecID != "" {
		command += " --spec " + rec.SpecID
	}
	for _, flag := range rec.RequiredFlags {
		command += " --" + flag
	}
	return command
}
