package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/bundle"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/tui"
	"github.com/mrz1836/smartspec/internal/verify"
)

// reportFilePerm is the mode for reports written via --out.
const reportFilePerm = 0o600

// AddVerifyCommand adds the verify command to the root command.
func AddVerifyCommand(parent *cobra.Command, flags *GlobalFlags) {
	var outPath string

	cmd := &cobra.Command{
		Use:   "verify [spec-id]",
		Short: "Verify task evidence for a spec bundle",
		Long: `Read the bundle's tasks.md and check every claimed task's evidence hooks
against the repository: files exist, symbols resolve, tests are present.
The report is advisory and nothing is written to the bundle; use the
verify_tasks workflow with --apply to persist a governed report.

With no spec-id, the sole bundle in the workspace is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ec, err := ResolveExecutionContext(ctx, flags)
			if err != nil {
				return err
			}

			layout := bundle.NewLayout(ec.Root)
			verifier, err := verify.NewVerifier(ec.Root,
				verify.WithThreshold(ec.Config.Verify.FuzzyThreshold),
				verify.WithMaxSuggestions(ec.Config.Verify.MaxSuggestions))
			if err != nil {
				return err
			}

			return runVerify(ctx, os.Stdout, flags, args, outPath,
				&spinnerVerifier{inner: verifier, flags: flags}, layout)
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "also write the markdown report to this path")

	parent.AddCommand(cmd)
}

// TaskVerifier runs evidence verification on one tasks document.
type TaskVerifier interface {
	Run(ctx context.Context, tasksPath string) (*domain.VerificationReport, error)
}

// TasksLocator resolves bundle task documents, satisfied by the layout.
type TasksLocator interface {
	SpecLister
	TasksFile(id domain.SpecID) string
}

// runVerify resolves the bundle, runs verification, and renders the report.
func runVerify(ctx context.Context, w io.Writer, flags *GlobalFlags, args []string, outPath string,
	verifier TaskVerifier, layout TasksLocator) error {
	id, err := targetSpec(args, layout)
	if err != nil {
		return err
	}

	report, err := verifier.Run(ctx, layout.TasksFile(id))
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(verify.RenderMarkdown(report)), reportFilePerm); err != nil {
			return err
		}
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(report)
	}

	fmt.Fprint(w, tui.RenderMarkdown(verify.RenderMarkdown(report)))
	renderVerifySummary(w, report)
	return nil
}

// renderVerifySummary appends the one-line verdict under the report.
func renderVerifySummary(w io.Writer, report *domain.VerificationReport) {
	styles := tui.NewOutputStyles()
	totals := report.Totals

	switch {
	case totals.Tasks == 0:
		fmt.Fprintln(w, styles.Warning.Render("no tasks to verify"))
	case report.Clean():
		fmt.Fprintln(w, styles.Success.Render(
			fmt.Sprintf("✓ all %d task(s) verified", totals.Tasks)))
	default:
		fmt.Fprintln(w, styles.Error.Render(
			fmt.Sprintf("✗ %d failed, %d unverifiable of %d task(s)",
				totals.Failed, totals.Unverifiable, totals.Tasks)))
	}
}
