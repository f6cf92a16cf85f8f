package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// VerifyStep runs the evidence verifier over the bundle's tasks.md, persists
// the full report as report.json in the run directory, and shares it with
// downstream steps through run state.
type VerifyStep struct {
	verifier TaskVerifier
}

// NewVerifyStep returns the verify executor.
func NewVerifyStep(verifier TaskVerifier) *VerifyStep {
	return &VerifyStep{verifier: verifier}
}

// Type implements engine.StepExecutor.
func (s *VerifyStep) Type() domain.StepType { return domain.StepTypeVerify }

// Execute implements engine.StepExecutor.
func (s *VerifyStep) Execute(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if s.verifier == nil {
		return nil, sserrors.Wrap(sserrors.ErrInvalidArgument, "verify step has no verifier wired")
	}

	id, err := resolveSpecID(req)
	if err != nil {
		return nil, err
	}
	req.Progress(0.1)

	report, err := s.verifier.Run(ctx, req.Layout.Rel(req.Layout.TasksFile(id)))
	if err != nil {
		return nil, err
	}
	report.SpecID = id.String()
	req.Progress(0.7)

	raw, err := json.Marshal(report)
	if err != nil {
		return nil, sserrors.Wrap(err, "encoding verification report")
	}

	req.State.SetValue(KeyVerificationReport, raw)

	path := filepath.Join(runDir(req), constants.ReportDataFileName)
	if err := req.Writer.WriteRuntime(ctx, path, raw); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("component", "steps").
		Str("spec_id", report.SpecID).
		Int("tasks", report.Totals.Tasks).
		Int("verified", report.Totals.Verified).
		Int("failed", report.Totals.Failed).
		Int("unverifiable", report.Totals.Unverifiable).
		Bool("clean", report.Clean()).
		Msg("tasks verified")

	return &engine.StepResult{
		Status:  constants.StepStatusCompleted,
		Output:  raw,
		Summary: verifySummary(report),
	}, nil
}

// verifySummary renders the one-line outcome for logs and status output.
func verifySummary(report *domain.VerificationReport) string {
	s := fmt.Sprintf("%d/%d tasks verified", report.Totals.Verified, report.Totals.Tasks)
	if report.Totals.Failed > 0 {
		s += fmt.Sprintf(", %d failed", report.Totals.Failed)
	}
	if report.Totals.Unverifiable > 0 {
		s += fmt.Sprintf(", %d unverifiable", report.Totals.Unverifiable)
	}
	return s
}
