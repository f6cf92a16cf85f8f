package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/store"
)

// fakeExecutionLister serves canned executions for prefix resolution.
type fakeExecutionLister struct {
	execs []*domain.Execution
	err   error
}

func (f *fakeExecutionLister) ListExecutions(_ context.Context, _ store.ExecutionFilter) ([]*domain.Execution, error) {
	return f.execs, f.err
}

func TestResolveExecutionID(t *testing.T) {
	t.Parallel()

	lister := &fakeExecutionLister{execs: []*domain.Execution{
		{ID: "aaaa1111-0000-0000-0000-000000000001"},
		{ID: "aaaa2222-0000-0000-0000-000000000002"},
		{ID: "bbbb3333-0000-0000-0000-000000000003"},
	}}

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr error
	}{
		{name: "exact match", ref: "bbbb3333-0000-0000-0000-000000000003", want: "bbbb3333-0000-0000-0000-000000000003"},
		{name: "unique prefix", ref: "bbbb", want: "bbbb3333-0000-0000-0000-000000000003"},
		{name: "short unique prefix", ref: "aaaa2", want: "aaaa2222-0000-0000-0000-000000000002"},
		{name: "ambiguous prefix", ref: "aaaa", wantErr: errors.ErrInvalidArgument},
		{name: "no match", ref: "cccc", wantErr: errors.ErrExecutionNotFound},
		{name: "empty", ref: "", wantErr: errors.ErrInvalidArgument},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveExecutionID(context.Background(), lister, tc.ref)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveExecutionID_ListerError(t *testing.T) {
	t.Parallel()

	lister := &fakeExecutionLister{err: errors.ErrStoreClosed}
	_, err := ResolveExecutionID(context.Background(), lister, "aaaa")
	assert.ErrorIs(t, err, errors.ErrStoreClosed)
}
