package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
)

// fakeResumer records the checkpoint it resumed from.
type fakeResumer struct {
	checkpointID string
	exec         *domain.Execution
	err          error
}

func (f *fakeResumer) Resume(_ context.Context, checkpointID string) (*domain.Execution, error) {
	f.checkpointID = checkpointID
	return f.exec, f.err
}

// fakeCheckpointFinder serves the latest checkpoint of an execution.
type fakeCheckpointFinder struct {
	cp  *domain.Checkpoint
	err error
}

func (f *fakeCheckpointFinder) LatestCheckpoint(_ context.Context, _ string) (*domain.Checkpoint, error) {
	return f.cp, f.err
}

func TestRunResume_ByCheckpoint(t *testing.T) {
	t.Parallel()

	resumer := &fakeResumer{exec: &domain.Execution{
		ID:       "dddd4444-0000-0000-0000-000000000004",
		Workflow: constants.WorkflowImplementTasks,
	}}

	var buf bytes.Buffer
	err := runResume(context.Background(), &buf, &GlobalFlags{Output: OutputText},
		"eeee5555-0000-0000-0000-000000000005", "",
		resumer, &fakeCheckpointFinder{}, &fakeExecutionLister{})
	require.NoError(t, err)

	assert.Equal(t, "eeee5555-0000-0000-0000-000000000005", resumer.checkpointID)
	assert.Contains(t, buf.String(), "dddd4444")
	assert.Contains(t, buf.String(), "resumed")
}

func TestRunResume_ByExecution(t *testing.T) {
	t.Parallel()

	lister := &fakeExecutionLister{execs: []*domain.Execution{
		{ID: "aaaa1111-0000-0000-0000-000000000001"},
	}}
	finder := &fakeCheckpointFinder{cp: &domain.Checkpoint{
		ID:          "eeee5555-0000-0000-0000-000000000005",
		ExecutionID: "aaaa1111-0000-0000-0000-000000000001",
	}}
	resumer := &fakeResumer{exec: &domain.Execution{
		ID:       "dddd4444-0000-0000-0000-000000000004",
		Workflow: constants.WorkflowImplementTasks,
	}}

	var buf bytes.Buffer
	err := runResume(context.Background(), &buf, &GlobalFlags{Output: OutputJSON},
		"", "aaaa1111", resumer, finder, lister)
	require.NoError(t, err)
	assert.Equal(t, "eeee5555-0000-0000-0000-000000000005", resumer.checkpointID)
	assert.Contains(t, buf.String(), `"dddd4444-0000-0000-0000-000000000004"`)
}

func TestRunResume_Validation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := runResume(context.Background(), &buf, &GlobalFlags{Output: OutputText},
		"", "", &fakeResumer{}, &fakeCheckpointFinder{}, &fakeExecutionLister{})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	err = runResume(context.Background(), &buf, &GlobalFlags{Output: OutputText},
		"cp", "exec", &fakeResumer{}, &fakeCheckpointFinder{}, &fakeExecutionLister{})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestRunResume_NoCheckpoint(t *testing.T) {
	t.Parallel()

	lister := &fakeExecutionLister{execs: []*domain.Execution{
		{ID: "aaaa1111-0000-0000-0000-000000000001"},
	}}
	finder := &fakeCheckpointFinder{err: errors.ErrCheckpointNotFound}

	var buf bytes.Buffer
	err := runResume(context.Background(), &buf, &GlobalFlags{Output: OutputText},
		"", "aaaa1111", &fakeResumer{}, finder, lister)
	assert.ErrorIs(t, err, errors.ErrCheckpointNotFound)
}

func TestRunCancel(t *testing.T) {
	t.Parallel()

	lister := &fakeExecutionLister{execs: []*domain.Execution{
		{ID: "aaaa1111-0000-0000-0000-000000000001"},
	}}

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		canceler := &fakeCanceler{}
		var buf bytes.Buffer
		err := runCancel(context.Background(), &buf, &GlobalFlags{Output: OutputText},
			"aaaa1111", canceler, lister)
		require.NoError(t, err)
		assert.Equal(t, "aaaa1111-0000-0000-0000-000000000001", canceler.executionID)
		assert.Contains(t, buf.String(), "cancellation requested")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		err := runCancel(context.Background(), &buf, &GlobalFlags{Output: OutputJSON},
			"aaaa1111", &fakeCanceler{}, lister)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"canceling"`)
	})

	t.Run("not cancelable", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		err := runCancel(context.Background(), &buf, &GlobalFlags{Output: OutputText},
			"aaaa1111", &fakeCanceler{err: errors.ErrNotCancelable}, lister)
		assert.ErrorIs(t, err, errors.ErrNotCancelable)
	})
}

// fakeCanceler records cancellation requests.
type fakeCanceler struct {
	executionID string
	err         error
}

func (f *fakeCanceler) Cancel(_ context.Context, executionID string) error {
	f.executionID = executionID
	return f.err
}
