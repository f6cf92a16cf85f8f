package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	"github.com/mrz1836/smartspec/internal/errors"
)

// fakeStarter records the execute request and returns a canned execution.
type fakeStarter struct {
	req  engine.ExecuteRequest
	exec *domain.Execution
	err  error
}

func (f *fakeStarter) Execute(_ context.Context, req engine.ExecuteRequest) (*domain.Execution, error) {
	f.req = req
	return f.exec, f.err
}

// fakeStreamer serves a pre-filled, closed event channel.
type fakeStreamer struct {
	events []domain.Event
	err    error
}

func (f *fakeStreamer) Events(_ context.Context, _ string) (<-chan domain.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan domain.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func TestParseWorkflowArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    string
		pairs   []string
		want    domain.Args
		wantErr bool
	}{
		{
			name: "spec only",
			spec: "spec-feat-001-user-auth",
			want: domain.Args{"spec": "spec-feat-001-user-auth"},
		},
		{
			name:  "args only",
			pairs: []string{"title=User auth", "category=feat"},
			want:  domain.Args{"title": "User auth", "category": "feat"},
		},
		{
			name:  "spec plus args",
			spec:  "spec-feat-001-user-auth",
			pairs: []string{"prompt=add login"},
			want:  domain.Args{"spec": "spec-feat-001-user-auth", "prompt": "add login"},
		},
		{
			name:  "value containing equals",
			pairs: []string{"query=a=b"},
			want:  domain.Args{"query": "a=b"},
		},
		{
			name: "empty",
			want: domain.Args{},
		},
		{
			name:    "missing separator",
			pairs:   []string{"title"},
			wantErr: true,
		},
		{
			name:    "empty name",
			pairs:   []string{"=value"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseWorkflowArgs(tc.spec, tc.pairs)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRunRun_Start(t *testing.T) {
	t.Parallel()

	starter := &fakeStarter{exec: &domain.Execution{
		ID:         "aaaa1111-0000-0000-0000-000000000001",
		Workflow:   constants.WorkflowVerifyTasks,
		Status:     constants.ExecutionStatusRunning,
		TotalSteps: 3,
	}}

	var buf bytes.Buffer
	flags := &GlobalFlags{Output: OutputText}
	opts := &runOptions{
		workflow: WorkflowFlags{Apply: true},
		spec:     "spec-feat-001-user-auth",
	}

	err := runRun(context.Background(), &buf, flags, opts, constants.WorkflowVerifyTasks, starter, &fakeStreamer{})
	require.NoError(t, err)

	assert.Equal(t, constants.WorkflowVerifyTasks, starter.req.Workflow)
	assert.Equal(t, "spec-feat-001-user-auth", starter.req.Args["spec"])
	assert.True(t, starter.req.Flags.Apply)
	assert.Contains(t, buf.String(), "aaaa1111")
	assert.Contains(t, buf.String(), "smartspec events")
}

func TestRunRun_JSONOutput(t *testing.T) {
	t.Parallel()

	starter := &fakeStarter{exec: &domain.Execution{
		ID:       "aaaa1111-0000-0000-0000-000000000001",
		Workflow: constants.WorkflowVerifyTasks,
	}}

	var buf bytes.Buffer
	flags := &GlobalFlags{Output: OutputJSON}

	err := runRun(context.Background(), &buf, flags, &runOptions{}, constants.WorkflowVerifyTasks, starter, &fakeStreamer{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"aaaa1111-0000-0000-0000-000000000001"`)
	assert.True(t, starter.req.Flags.JSON)
}

func TestRunRun_ValidateOnly(t *testing.T) {
	t.Parallel()

	starter := &fakeStarter{err: errors.Wrap(errors.ErrValidateOnly, "verify_tasks")}

	var buf bytes.Buffer
	flags := &GlobalFlags{Output: OutputText}
	opts := &runOptions{workflow: WorkflowFlags{ValidateOnly: true}}

	err := runRun(context.Background(), &buf, flags, opts, constants.WorkflowVerifyTasks, starter, &fakeStreamer{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "validated")
}

func TestRunRun_ExecuteError(t *testing.T) {
	t.Parallel()

	starter := &fakeStarter{err: errors.ErrApplyRequired}

	var buf bytes.Buffer
	err := runRun(context.Background(), &buf, &GlobalFlags{Output: OutputText}, &runOptions{},
		constants.WorkflowGenerateSpec, starter, &fakeStreamer{})
	assert.ErrorIs(t, err, errors.ErrApplyRequired)
}

func TestRunRun_BadArg(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	opts := &runOptions{args: []string{"broken"}}
	err := runRun(context.Background(), &buf, &GlobalFlags{Output: OutputText}, opts,
		constants.WorkflowGenerateSpec, &fakeStarter{}, &fakeStreamer{})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestRunRun_FollowJSONStream(t *testing.T) {
	t.Parallel()

	starter := &fakeStarter{exec: &domain.Execution{
		ID:       "aaaa1111-0000-0000-0000-000000000001",
		Workflow: constants.WorkflowVerifyTasks,
	}}
	streamer := &fakeStreamer{events: []domain.Event{
		{Type: domain.EventWorkflowStarted, Sequence: 1},
		{Type: domain.EventWorkflowCompleted, Sequence: 2},
	}}

	var buf bytes.Buffer
	flags := &GlobalFlags{Output: OutputJSON}
	opts := &runOptions{follow: true}

	err := runRun(context.Background(), &buf, flags, opts, constants.WorkflowVerifyTasks, starter, streamer)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), string(domain.EventWorkflowCompleted))
}

func TestRunRun_FollowFailureIsError(t *testing.T) {
	t.Parallel()

	starter := &fakeStarter{exec: &domain.Execution{ID: "aaaa1111-0000-0000-0000-000000000001"}}
	streamer := &fakeStreamer{events: []domain.Event{
		{Type: domain.EventWorkflowStarted, Sequence: 1},
		{Type: domain.EventWorkflowFailed, Sequence: 2, Error: "step verify failed"},
	}}

	var buf bytes.Buffer
	flags := &GlobalFlags{Output: OutputJSON}
	opts := &runOptions{follow: true}

	err := runRun(context.Background(), &buf, flags, opts, constants.WorkflowVerifyTasks, starter, streamer)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStepFailed)
}
