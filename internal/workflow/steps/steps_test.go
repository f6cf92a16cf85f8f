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
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// testEnv is a scratch repository with the layout and writer wired the way
// the engine wires them for real dispatches.
type testEnv struct {
	root   string
	layout *bundle.Layout
	writer *bundle.Writer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	return &testEnv{
		root:   root,
		layout: bundle.NewLayout(root),
		writer: bundle.NewWriter(bundle.NewGuard(root), true),
	}
}

// request builds a StepRequest the way the engine does for one dispatch.
func (e *testEnv) request(workflow string, step domain.WorkflowStep, id domain.SpecID, hasSpec bool) *engine.StepRequest {
	return &engine.StepRequest{
		Execution: domain.Execution{ID: "run-" + workflow, Workflow: workflow},
		Step:      step,
		StepIndex: 1,
		SpecID:    id,
		HasSpec:   hasSpec,
		Args:      domain.Args{},
		Flags:     domain.Flags{Apply: true, AllowNetwork: true},
		State:     newTestState(workflow),
		Layout:    e.layout,
		Writer:    e.writer,
		Progress:  func(float64) {},
	}
}

// writeBundle materializes governed artifacts for a spec.
func (e *testEnv) writeBundle(t *testing.T, id domain.SpecID, files map[string]string) {
	t.Helper()
	dir := e.layout.SpecDir(id)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
}

// writeVerifyRun persists a finished verification run the way the verify and
// report steps would have left it.
func (e *testEnv) writeVerifyRun(t *testing.T, runID string, report *domain.VerificationReport) {
	t.Helper()
	dir := e.layout.RunDir(constants.WorkflowVerifyTasks, runID)
	require.NoError(t, os.MkdirAll(dir, 0o750))

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.ReportDataFileName), raw, 0o600))

	summary, err := json.Marshal(bundle.NewRunSummary(runID, report))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.SummaryFileName), summary, 0o600))
}

func newTestState(workflow string, steps ...engine.StepRecord) *engine.State {
	recs := make([]*engine.StepRecord, 0, len(steps))
	for i := range steps {
		rec := steps[i]
		recs = append(recs, &rec)
	}
	return engine.NewState(&engine.RunState{
		Workflow:      workflow,
		Steps:         recs,
		Outputs:       make(map[string]json.RawMessage),
		Data:          make(map[string]json.RawMessage),
		SchemaVersion: constants.ExecutionSchemaVersion,
	})
}

// sampleReport aggregates verdicts into a consistent report fixture.
func sampleReport(specID string, verdicts ...domain.TaskVerdict) *domain.VerificationReport {
	report := &domain.VerificationReport{
		SpecID:        specID,
		TasksPath:     "specs/feat/" + specID + "/tasks.md",
		GeneratedAt:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		ByCategory:    make(map[domain.TaskCategory]int),
		Tasks:         verdicts,
		SchemaVersion: constants.ReportSchemaVersion,
	}
	for _, v := range verdicts {
		report.Totals.Tasks++
		report.ByCategory[v.Category]++
		switch {
		case v.Passed:
			report.Totals.Verified++
		case v.Category == domain.CategoryUnverifiable:
			report.Totals.Unverifiable++
		default:
			report.Totals.Failed++
		}
		if v.Claimed {
			report.Totals.Claimed++
		}
	}
	return report
}

func passedVerdict(taskID, title string) domain.TaskVerdict {
	return domain.TaskVerdict{
		TaskID:   taskID,
		Title:    title,
		Claimed:  true,
		Category: domain.CategoryVerified,
		Passed:   true,
	}
}

func failedVerdict(taskID, title string, claimed bool, cat domain.TaskCategory, priority int) domain.TaskVerdict {
	return domain.TaskVerdict{
		TaskID:   taskID,
		Title:    title,
		Claimed:  claimed,
		Category: cat,
		Priority: priority,
		Hooks: []domain.HookResult{{
			Hook:     domain.EvidenceHook{Kind: domain.HookKindTest, Path: "tests/missing_test.go", Line: 4},
			Resolved: false,
			Reason:   domain.HookFailMissingFile,
			Detail:   "tests/missing_test.go does not exist",
		}},
		Remediation: []string{"Create test file: tests/missing_test.go"},
	}
}

var testSpecID = domain.SpecID{Category: "feat", Number: 12, Slug: "user-auth"}

func TestResolveSpecID_FromRequest(t *testing.T) {
	env := newTestEnv(t)
	req := env.request("verify_tasks", domain.WorkflowStep{Name: "verify"}, testSpecID, true)

	id, err := resolveSpecID(req)
	require.NoError(t, err)
	assert.Equal(t, testSpecID, id)
}

func TestResolveSpecID_FromState(t *testing.T) {
	env := newTestEnv(t)
	req := env.request("generate_spec", domain.WorkflowStep{Name: "report"}, domain.SpecID{}, false)
	req.State.SetString(KeySpecID, testSpecID.String())

	id, err := resolveSpecID(req)
	require.NoError(t, err)
	assert.Equal(t, testSpecID, id)
}

func TestResolveSpecID_Missing(t *testing.T) {
	env := newTestEnv(t)
	req := env.request("verify_tasks", domain.WorkflowStep{Name: "verify"}, domain.SpecID{}, false)

	_, err := resolveSpecID(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrSpecNotFound)
}

func TestLatestVerification_PrefersRunState(t *testing.T) {
	env := newTestEnv(t)
	req := env.request("sync_tasks_checkboxes", domain.WorkflowStep{Name: "sync"}, testSpecID, true)

	inState := sampleReport(testSpecID.String(), passedVerdict("TASK-001", "Implement login"))
	raw, err := json.Marshal(inState)
	require.NoError(t, err)
	req.State.SetValue(KeyVerificationReport, raw)

	// A different, older report on disk must lose to the in-flight one.
	env.writeVerifyRun(t, "older-run", sampleReport(testSpecID.String(),
		failedVerdict("TASK-001", "Implement login", true, domain.CategoryMissingTests, 1)))

	report, runID, err := latestVerification(req, testSpecID)
	require.NoError(t, err)
	assert.Equal(t, req.Execution.ID, runID)
	assert.Equal(t, 1, report.Totals.Verified)
}

func TestLatestVerification_ReadsPersistedRun(t *testing.T) {
	env := newTestEnv(t)
	req := env.request("sync_tasks_checkboxes", domain.WorkflowStep{Name: "sync"}, testSpecID, true)

	persisted := sampleReport(testSpecID.String(),
		failedVerdict("TASK-002", "Add login endpoint", false, domain.CategoryNotImplemented, 2))
	env.writeVerifyRun(t, "verify-run-1", persisted)

	report, runID, err := latestVerification(req, testSpecID)
	require.NoError(t, err)
	assert.Equal(t, "verify-run-1", runID)
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, "TASK-002", report.Tasks[0].TaskID)
}

func TestLatestVerification_NeverVerified(t *testing.T) {
	env := newTestEnv(t)
	req := env.request("sync_tasks_checkboxes", domain.WorkflowStep{Name: "sync"}, testSpecID, true)

	_, _, err := latestVerification(req, testSpecID)
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrReportNotFound)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "# Title\n\nBody.\n", stripFence("```markdown\n# Title\n\nBody.\n```"))
	assert.Equal(t, "plain text", stripFence("plain text"))
	// An unterminated fence is left alone rather than mangled.
	assert.Equal(t, "```\nhalf open", stripFence("```\nhalf open"))
}

func TestRegister_CoversEveryStepType(t *testing.T) {
	reg := engine.NewExecutorRegistry()
	Register(reg, Deps{})

	for _, st := range []domain.StepType{
		domain.StepTypeGenerate,
		domain.StepTypeVerify,
		domain.StepTypePromptPack,
		domain.StepTypeSync,
		domain.StepTypeHuman,
		domain.StepTypeGitTag,
		domain.StepTypeDocs,
		domain.StepTypeReport,
	} {
		exec, err := reg.Get(st)
		require.NoError(t, err, "missing executor for %s", st)
		assert.Equal(t, st, exec.Type())
	}
}

// fakeChat is a ChatClient that returns canned text and records calls.
type fakeChat struct {
	text   string
	err    error
	userID string
	calls  []*domain.ChatRequest
}

func (f *fakeChat) Chat(_ context.Context, userID string, req *domain.ChatRequest) (*domain.ChatResult, error) {
	f.userID = userID
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatResult{
		Text:           f.text,
		Provider:       "anthropic",
		Model:          "anthropic/claude-sonnet-4",
		Usage:          domain.TokenUsage{InputTokens: 120, OutputTokens: 80},
		RawCostUSD:     0.01,
		DebitedCredits: 10,
	}, nil
}

// fakeTagger is a Tagger backed by an in-memory tag set.
type fakeTagger struct {
	tags     map[string]string
	tagErr   error
	headHash string
}

func newFakeTagger() *fakeTagger {
	return &fakeTagger{tags: make(map[string]string), headHash: "abc1234"}
}

func (f *fakeTagger) TagExists(_ context.Context, name string) (bool, error) {
	if f.tagErr != nil {
		return false, f.tagErr
	}
	_, ok := f.tags[name]
	return ok, nil
}

func (f *fakeTagger) CreateTag(_ context.Context, name, message string) error {
	if f.tagErr != nil {
		return f.tagErr
	}
	f.tags[name] = message
	return nil
}

func (f *fakeTagger) Head(_ context.Context) (string, error) {
	return f.headHash, nil
}
