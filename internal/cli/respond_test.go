package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
)

// fakeResponder records which interrupt was answered.
type fakeResponder struct {
	interruptID string
	resp        domain.InterruptResponse
	err         error
}

func (f *fakeResponder) Respond(_ context.Context, interruptID string, resp domain.InterruptResponse) error {
	f.interruptID = interruptID
	f.resp = resp
	return f.err
}

// fakeExecResponder records execution-scoped decisions.
type fakeExecResponder struct {
	executionID string
	resp        domain.InterruptResponse
	pending     []domain.PendingInterrupt
	err         error
}

func (f *fakeExecResponder) RespondExecution(_ context.Context, executionID string, resp domain.InterruptResponse) error {
	f.executionID = executionID
	f.resp = resp
	return f.err
}

func (f *fakeExecResponder) PendingInterrupts(_ string) []domain.PendingInterrupt {
	return f.pending
}

func TestBuildResponse(t *testing.T) {
	t.Parallel()

	t.Run("approve", func(t *testing.T) {
		t.Parallel()
		resp, err := buildResponse(&respondOptions{approve: true, note: "lgtm"})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, domain.InterruptApprove, resp.Action)
		assert.Equal(t, "lgtm", resp.Note)
	})

	t.Run("reject", func(t *testing.T) {
		t.Parallel()
		resp, err := buildResponse(&respondOptions{reject: true})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, domain.InterruptReject, resp.Action)
	})

	t.Run("modify", func(t *testing.T) {
		t.Parallel()
		resp, err := buildResponse(&respondOptions{modify: `{"max_tasks": 5}`})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, domain.InterruptModify, resp.Action)
		assert.JSONEq(t, `{"max_tasks": 5}`, string(resp.Payload))
	})

	t.Run("modify with invalid json", func(t *testing.T) {
		t.Parallel()
		_, err := buildResponse(&respondOptions{modify: "{broken"})
		assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	})

	t.Run("no decision", func(t *testing.T) {
		t.Parallel()
		resp, err := buildResponse(&respondOptions{})
		require.NoError(t, err)
		assert.Nil(t, resp)
	})
}

func TestRunRespond_ByInterruptID(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{}
	var buf bytes.Buffer
	err := runRespond(context.Background(), &buf, &GlobalFlags{Output: OutputText},
		&respondOptions{approve: true}, "cccc3333-0000-0000-0000-000000000003",
		responder, &fakeExecResponder{}, &fakeExecutionLister{})
	require.NoError(t, err)

	assert.Equal(t, "cccc3333-0000-0000-0000-000000000003", responder.interruptID)
	assert.Equal(t, domain.InterruptApprove, responder.resp.Action)
	assert.Contains(t, buf.String(), "approve")
}

func TestRunRespond_ByExecution(t *testing.T) {
	t.Parallel()

	lister := &fakeExecutionLister{execs: []*domain.Execution{
		{ID: "aaaa1111-0000-0000-0000-000000000001"},
	}}
	execResponder := &fakeExecResponder{}

	var buf bytes.Buffer
	err := runRespond(context.Background(), &buf, &GlobalFlags{Output: OutputJSON},
		&respondOptions{execution: "aaaa1111", modify: `{"retry": true}`}, "",
		&fakeResponder{}, execResponder, lister)
	require.NoError(t, err)

	assert.Equal(t, "aaaa1111-0000-0000-0000-000000000001", execResponder.executionID)
	assert.Equal(t, domain.InterruptModify, execResponder.resp.Action)
	assert.JSONEq(t, `{"retry": true}`, string(execResponder.resp.Payload))

	var payload domain.InterruptResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, domain.InterruptModify, payload.Action)
}

func TestRunRespond_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		opts        *respondOptions
		interruptID string
	}{
		{name: "neither target", opts: &respondOptions{approve: true}},
		{
			name:        "both targets",
			opts:        &respondOptions{approve: true, execution: "aaaa"},
			interruptID: "cccc3333-0000-0000-0000-000000000003",
		},
		{
			name:        "interrupt id without decision",
			opts:        &respondOptions{},
			interruptID: "cccc3333-0000-0000-0000-000000000003",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			err := runRespond(context.Background(), &buf, &GlobalFlags{Output: OutputText},
				tc.opts, tc.interruptID, &fakeResponder{}, &fakeExecResponder{}, &fakeExecutionLister{})
			assert.ErrorIs(t, err, errors.ErrInvalidArgument)
		})
	}
}

func TestRunRespond_ResponderError(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{err: errors.ErrInterruptNotFound}
	var buf bytes.Buffer
	err := runRespond(context.Background(), &buf, &GlobalFlags{Output: OutputText},
		&respondOptions{reject: true}, "cccc3333-0000-0000-0000-000000000003",
		responder, &fakeExecResponder{}, &fakeExecutionLister{})
	assert.ErrorIs(t, err, errors.ErrInterruptNotFound)
}
