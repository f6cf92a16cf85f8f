package steps

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/bundle"
	"github.com/mrz1836/smartspec/internal/clock"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

var reportTestNow = time.Date(2026, 1, 15, 12, 30, 0, 0, time.UTC)

func reportRequest(env *testEnv, workflow string, records ...engine.StepRecord) *engine.StepRequest {
	req := env.request(workflow, domain.WorkflowStep{
		Name: "report",
		Type: domain.StepTypeReport,
	}, testSpecID, true)
	req.State = newTestState(workflow, records...)
	return req
}

func TestReportStep_VerifyRunLeavesLoadableSummary(t *testing.T) {
	env := newTestEnv(t)
	step := NewReportStep(clock.NewFake(reportTestNow))

	req := reportRequest(env, constants.WorkflowVerifyTasks,
		engine.StepRecord{Name: "verify", Type: domain.StepTypeVerify, Index: 0, Status: constants.StepStatusCompleted},
		engine.StepRecord{Name: "report", Type: domain.StepTypeReport, Index: 1, Status: constants.StepStatusRunning},
	)

	report := sampleReport(testSpecID.String(),
		passedVerdict("TASK-001", "Implement login"),
		failedVerdict("TASK-002", "Add login endpoint", true, domain.CategoryMissingTests, 1),
	)
	raw, err := json.Marshal(report)
	require.NoError(t, err)
	req.State.SetValue(KeyVerificationReport, raw)

	res, err := step.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, constants.StepStatusCompleted, res.Status)

	dir := env.layout.RunDir(constants.WorkflowVerifyTasks, req.Execution.ID)
	assert.Equal(t, "run report written to "+env.layout.Rel(dir), res.Summary)

	body, err := os.ReadFile(filepath.Join(dir, constants.ReportFileName)) //#nosec G304 -- test fixture path
	require.NoError(t, err)
	md := string(body)
	assert.Contains(t, md, "# Run Report: verify_tasks")
	assert.Contains(t, md, "- **Spec:** spec-feat-012-user-auth")
	assert.Contains(t, md, "- **Generated:** 2026-01-15 12:30:00 UTC")
	assert.Contains(t, md, "| 1 | verify | verify | completed |")
	assert.Contains(t, md, "| 2 | report | report | completed |")
	assert.Contains(t, md, "# Verification Report")
	assert.Contains(t, md, "TASK-002")

	// The summary must be loadable by the recommendation path.
	summary, err := bundle.LatestRunSummary(env.layout, testSpecID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, req.Execution.ID, summary.RunID)
	assert.False(t, summary.Clean)
	assert.Equal(t, report.Totals, summary.Totals)
	assert.True(t, summary.GeneratedAt.Equal(report.GeneratedAt),
		"summary must carry the report's timestamp, not the report step's clock")
}

func TestReportStep_OwnRecordReadsCompleted(t *testing.T) {
	env := newTestEnv(t)
	step := NewReportStep(clock.NewFake(reportTestNow))

	req := reportRequest(env, constants.WorkflowGenerateSpec,
		engine.StepRecord{Name: "draft", Type: domain.StepTypeGenerate, Index: 0, Status: constants.StepStatusCompleted},
		engine.StepRecord{Name: "report", Type: domain.StepTypeReport, Index: 1, Status: constants.StepStatusRunning},
	)

	_, err := step.Execute(context.Background(), req)
	require.NoError(t, err)

	path := filepath.Join(env.layout.RunDir(constants.WorkflowGenerateSpec, req.Execution.ID), constants.SummaryFileName)
	data, err := os.ReadFile(path) //#nosec G304 -- test fixture path
	require.NoError(t, err)

	var doc runSummaryDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Steps, 2)
	assert.Equal(t, constants.StepStatusCompleted, doc.Steps[1].Status,
		"the report step records itself as completed; the file exists only if it finished")
}

func TestReportStep_NonVerifyRunOmitsVerificationFields(t *testing.T) {
	env := newTestEnv(t)
	step := NewReportStep(clock.NewFake(reportTestNow))

	req := reportRequest(env, constants.WorkflowGenerateSpec,
		engine.StepRecord{Name: "draft", Type: domain.StepTypeGenerate, Index: 0, Status: constants.StepStatusCompleted},
		engine.StepRecord{Name: "report", Type: domain.StepTypeReport, Index: 1, Status: constants.StepStatusRunning},
	)

	_, err := step.Execute(context.Background(), req)
	require.NoError(t, err)

	path := filepath.Join(env.layout.RunDir(constants.WorkflowGenerateSpec, req.Execution.ID), constants.SummaryFileName)
	data, err := os.ReadFile(path) //#nosec G304 -- test fixture path
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	_, hasClean := m["clean"]
	assert.False(t, hasClean)
	_, hasTotals := m["totals"]
	assert.False(t, hasTotals)

	var doc runSummaryDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.True(t, doc.GeneratedAt.Equal(reportTestNow))

	md, err := os.ReadFile(filepath.Join(env.layout.RunDir(constants.WorkflowGenerateSpec, req.Execution.ID), constants.ReportFileName)) //#nosec G304 -- test fixture path
	require.NoError(t, err)
	assert.NotContains(t, string(md), "Verification Report")
}

func TestReportStep_FailureSection(t *testing.T) {
	env := newTestEnv(t)
	step := NewReportStep(clock.NewFake(reportTestNow))

	req := reportRequest(env, constants.WorkflowGeneratePlan,
		engine.StepRecord{Name: "draft", Type: domain.StepTypeGenerate, Index: 0, Status: constants.StepStatusFailed, Error: "provider timeout"},
		engine.StepRecord{Name: "report", Type: domain.StepTypeReport, Index: 1, Status: constants.StepStatusRunning},
	)

	_, err := step.Execute(context.Background(), req)
	require.NoError(t, err)

	md, err := os.ReadFile(filepath.Join(env.layout.RunDir(constants.WorkflowGeneratePlan, req.Execution.ID), constants.ReportFileName)) //#nosec G304 -- test fixture path
	require.NoError(t, err)
	assert.Contains(t, string(md), "## Failures")
	assert.Contains(t, string(md), "- **draft:** provider timeout")
}

func TestReportStep_JSONFormatSkipsMarkdown(t *testing.T) {
	env := newTestEnv(t)
	step := NewReportStep(clock.NewFake(reportTestNow))

	req := reportRequest(env, constants.WorkflowGenerateSpec,
		engine.StepRecord{Name: "report", Type: domain.StepTypeReport, Index: 0, Status: constants.StepStatusRunning},
	)
	req.Step.Config = map[string]string{"format": "json"}

	res, err := step.Execute(context.Background(), req)
	require.NoError(t, err)

	dir := env.layout.RunDir(constants.WorkflowGenerateSpec, req.Execution.ID)
	_, err = os.Stat(filepath.Join(dir, constants.ReportFileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, constants.SummaryFileName))
	require.NoError(t, err)

	var out struct {
		Report  string `json:"report,omitempty"`
		Summary string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(res.Output, &out))
	assert.Empty(t, out.Report)
	assert.NotEmpty(t, out.Summary)
}

func TestReportStep_UnknownFormat(t *testing.T) {
	env := newTestEnv(t)
	step := NewReportStep(clock.NewFake(reportTestNow))

	req := reportRequest(env, constants.WorkflowGenerateSpec)
	req.Step.Config = map[string]string{"format": "pdf"}

	_, err := step.Execute(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrInvalidArgument)
}

func TestReportStep_SpeclessRun(t *testing.T) {
	env := newTestEnv(t)
	step := NewReportStep(clock.NewFake(reportTestNow))

	req := reportRequest(env, constants.WorkflowGenerateSpec,
		engine.StepRecord{Name: "report", Type: domain.StepTypeReport, Index: 0, Status: constants.StepStatusRunning},
	)
	req.HasSpec = false
	req.SpecID = domain.SpecID{}

	_, err := step.Execute(context.Background(), req)
	require.NoError(t, err)

	md, err := os.ReadFile(filepath.Join(env.layout.RunDir(constants.WorkflowGenerateSpec, req.Execution.ID), constants.ReportFileName)) //#nosec G304 -- test fixture path
	require.NoError(t, err)
	assert.NotContains(t, string(md), "- **Spec:**")
}
