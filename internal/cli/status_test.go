package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	"github.com/mrz1836/smartspec/internal/errors"
)

// fakeProgressReader returns a canned progress snapshot.
type fakeProgressReader struct {
	progress *engine.Progress
	err      error
}

func (f *fakeProgressReader) Status(_ context.Context, _ string) (*engine.Progress, error) {
	return f.progress, f.err
}

func TestRunStatusList(t *testing.T) {
	t.Parallel()

	execs := []*domain.Execution{
		{
			ID:          "aaaa1111-0000-0000-0000-000000000001",
			Workflow:    constants.WorkflowVerifyTasks,
			SpecID:      "spec-feat-001-user-auth",
			Status:      constants.ExecutionStatusCompleted,
			CurrentStep: 3,
			TotalSteps:  3,
			StartedAt:   time.Now().Add(-time.Hour),
		},
		{
			ID:         "bbbb2222-0000-0000-0000-000000000002",
			Workflow:   constants.WorkflowGeneratePlan,
			Status:     constants.ExecutionStatusRunning,
			TotalSteps: 4,
			StartedAt:  time.Now().Add(-time.Minute),
		},
	}

	t.Run("table output", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		err := runStatusList(context.Background(), &buf, &GlobalFlags{Output: OutputText}, "",
			&fakeExecutionLister{execs: execs})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "aaaa1111")
		assert.Contains(t, buf.String(), constants.WorkflowGeneratePlan)
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		err := runStatusList(context.Background(), &buf, &GlobalFlags{Output: OutputJSON}, "",
			&fakeExecutionLister{execs: execs})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"bbbb2222-0000-0000-0000-000000000002"`)
	})

	t.Run("empty workspace", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		err := runStatusList(context.Background(), &buf, &GlobalFlags{Output: OutputText}, "",
			&fakeExecutionLister{})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "no executions yet")
	})
}

func TestRunStatusOne(t *testing.T) {
	t.Parallel()

	started := time.Now().Add(-5 * time.Minute).UTC()
	ended := started.Add(30 * time.Second)
	lister := &fakeExecutionLister{execs: []*domain.Execution{
		{ID: "aaaa1111-0000-0000-0000-000000000001"},
	}}
	reader := &fakeProgressReader{progress: &engine.Progress{
		Execution: &domain.Execution{
			ID:         "aaaa1111-0000-0000-0000-000000000001",
			Workflow:   constants.WorkflowVerifyTasks,
			SpecID:     "spec-feat-001-user-auth",
			Status:     constants.ExecutionStatusPaused,
			TotalSteps: 3,
			StartedAt:  started,
		},
		CompletedSteps: 1,
		TotalSteps:     3,
		Fraction:       1.0 / 3.0,
		LastStep:       "load_tasks",
		Steps: []engine.StepRecord{
			{Name: "load_tasks", Index: 1, Status: constants.StepStatusCompleted, StartedAt: &started, EndedAt: &ended},
			{Name: "verify", Index: 2, Status: constants.StepStatusAwaitingInput},
			{Name: "report", Index: 3, Status: constants.StepStatusPending},
		},
		Interrupts: []domain.PendingInterrupt{{
			ID:       "cccc3333-0000-0000-0000-000000000003",
			StepName: "verify",
			Prompt:   "accept the 2 unverifiable tasks?",
		}},
	}}

	t.Run("detail view", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		err := runStatusOne(context.Background(), &buf, &GlobalFlags{Output: OutputText},
			"aaaa1111", reader, lister)
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, constants.WorkflowVerifyTasks)
		assert.Contains(t, out, "spec-feat-001-user-auth")
		assert.Contains(t, out, "load_tasks")
		assert.Contains(t, out, "accept the 2 unverifiable tasks?")
		assert.Contains(t, out, "smartspec respond cccc3333-0000-0000-0000-000000000003")
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		err := runStatusOne(context.Background(), &buf, &GlobalFlags{Output: OutputJSON},
			"aaaa1111", reader, lister)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"completed_steps"`)
	})

	t.Run("unknown execution", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		err := runStatusOne(context.Background(), &buf, &GlobalFlags{Output: OutputText},
			"zzzz", reader, lister)
		assert.ErrorIs(t, err, errors.ErrExecutionNotFound)
	})
}
