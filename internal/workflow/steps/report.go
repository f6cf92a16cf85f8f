package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/clock"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/verify"
)

// ReportStep closes every workflow: it writes the human-readable report.md
// and then summary.json into the run directory. The summary goes last so a
// directory holding one marks a run that actually finished; recommendation
// relies on that when discovering verification runs.
type ReportStep struct {
	clk clock.Clock
}

// NewReportStep returns the report executor. A nil clock uses the wall clock.
func NewReportStep(clk clock.Clock) *ReportStep {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &ReportStep{clk: clk}
}

// Type implements engine.StepExecutor.
func (s *ReportStep) Type() domain.StepType { return domain.StepTypeReport }

// stepOutcome is one step's final state inside summary.json.
type stepOutcome struct {
	Name   string               `json:"name"`
	Type   domain.StepType      `json:"type"`
	Status constants.StepStatus `json:"status"`
	Error  string               `json:"error,omitempty"`
}

// runSummaryDoc is the machine-readable summary.json written at the end of
// every run. Its verification fields line up with bundle.RunSummary so
// verify_tasks summaries stay loadable by recommendation; other workflows
// simply omit them.
type runSummaryDoc struct {
	RunID         string               `json:"run_id"`
	Workflow      string               `json:"workflow"`
	SpecID        string               `json:"spec_id,omitempty"`
	GeneratedAt   time.Time            `json:"generated_at"`
	Clean         *bool                `json:"clean,omitempty"`
	Totals        *domain.ReportTotals `json:"totals,omitempty"`
	Steps         []stepOutcome        `json:"steps"`
	SchemaVersion string               `json:"schema_version"`
}

// Execute implements engine.StepExecutor.
func (s *ReportStep) Execute(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	format := req.Step.Config["format"]
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "json" {
		return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "report step %s: unknown format %q", req.Step.Name, format)
	}

	specID := ""
	id, err := resolveSpecID(req)
	switch {
	case err == nil:
		specID = id.String()
	case errors.Is(err, sserrors.ErrSpecNotFound):
		// Spec-less run; the report just omits the spec line.
	default:
		return nil, err
	}

	var report *domain.VerificationReport
	if raw, ok := req.State.Value(KeyVerificationReport); ok {
		report = &domain.VerificationReport{}
		if uerr := json.Unmarshal(raw, report); uerr != nil {
			return nil, sserrors.Wrap(uerr, "decoding verification report from run state")
		}
	}

	now := s.clk.Now().UTC()
	generatedAt := now
	if report != nil {
		generatedAt = report.GeneratedAt
	}

	outcomes := stepOutcomes(req)
	dir := runDir(req)

	var reportPath string
	if format == "markdown" {
		reportPath = filepath.Join(dir, constants.ReportFileName)
		body := renderRunReport(req, specID, now, outcomes, report)
		if werr := req.Writer.WriteRuntime(ctx, reportPath, []byte(body)); werr != nil {
			return nil, werr
		}
	}
	req.Progress(0.6)

	doc := runSummaryDoc{
		RunID:         req.Execution.ID,
		Workflow:      req.Execution.Workflow,
		SpecID:        specID,
		GeneratedAt:   generatedAt,
		Steps:         outcomes,
		SchemaVersion: constants.ReportSchemaVersion,
	}
	if report != nil {
		clean := report.Clean()
		doc.Clean = &clean
		doc.Totals = &report.Totals
	}

	summaryRaw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, sserrors.Wrap(err, "encoding run summary")
	}
	summaryPath := filepath.Join(dir, constants.SummaryFileName)
	if err := req.Writer.WriteRuntime(ctx, summaryPath, append(summaryRaw, '\n')); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("component", "steps").
		Str("workflow", req.Execution.Workflow).
		Str("run_id", req.Execution.ID).
		Str("dir", req.Layout.Rel(dir)).
		Msg("run report written")

	raw, err := marshalOutput(struct {
		Report  string `json:"report,omitempty"`
		Summary string `json:"summary"`
	}{
		Report:  relOrEmpty(req, reportPath),
		Summary: req.Layout.Rel(summaryPath),
	})
	if err != nil {
		return nil, err
	}

	return &engine.StepResult{
		Status:  constants.StepStatusCompleted,
		Output:  raw,
		Summary: "run report written to " + req.Layout.Rel(dir),
	}, nil
}

// stepOutcomes snapshots the run's step records. The report step itself is
// recorded as completed: the files it writes exist only if it finishes.
func stepOutcomes(req *engine.StepRequest) []stepOutcome {
	records := req.State.Records()
	out := make([]stepOutcome, 0, len(records))
	for _, rec := range records {
		status := rec.Status
		if rec.Name == req.Step.Name {
			status = constants.StepStatusCompleted
		}
		out = append(out, stepOutcome{
			Name:   rec.Name,
			Type:   rec.Type,
			Status: status,
			Error:  rec.Error,
		})
	}
	return out
}

// renderRunReport builds report.md: a run header, the step table, each
// step's one-line output summary when it recorded one, and the full
// verification report when this run produced one.
func renderRunReport(req *engine.StepRequest, specID string, now time.Time, outcomes []stepOutcome, report *domain.VerificationReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run Report: %s\n\n", req.Execution.Workflow)
	fmt.Fprintf(&b, "- **Execution:** %s\n", req.Execution.ID)
	if specID != "" {
		fmt.Fprintf(&b, "- **Spec:** %s\n", specID)
	}
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", now.Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("## Steps\n\n")
	b.WriteString("| # | Step | Type | Status |\n")
	b.WriteString("|---|---|---|---|\n")
	for i, o := range outcomes {
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, o.Name, o.Type, o.Status)
	}

	var failures []stepOutcome
	for _, o := range outcomes {
		if o.Error != "" {
			failures = append(failures, o)
		}
	}
	if len(failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, o := range failures {
			fmt.Fprintf(&b, "- **%s:** %s\n", o.Name, o.Error)
		}
	}

	if report != nil {
		b.WriteString("\n---\n\n")
		b.WriteString(verify.RenderMarkdown(report))
	}
	return b.String()
}

// relOrEmpty keeps the empty path empty instead of resolving it.
func relOrEmpty(req *engine.StepRequest, path string) string {
	if path == "" {
		return ""
	}
	return req.Layout.Rel(path)
}
