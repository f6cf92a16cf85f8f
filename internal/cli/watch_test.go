package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/testutil"
)

func TestGovernedArtifact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "spec file", path: filepath.Join("specs", "feat", "spec-feat-001-x", constants.SpecFileName), want: true},
		{name: "plan file", path: constants.PlanFileName, want: true},
		{name: "tasks file", path: constants.TasksFileName, want: true},
		{name: "editor swap file", path: ".spec.md.swp", want: false},
		{name: "research notes", path: "research.md", want: false},
		{name: "directory itself", path: "specs/feat/spec-feat-001-x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, governedArtifact(tt.path))
		})
	}
}

func TestWatchRecommend(t *testing.T) {
	t.Parallel()

	id := testutil.MustSpecID(t, "spec-feat-001-user-auth")

	t.Run("prints refreshed recommendation", func(t *testing.T) {
		t.Parallel()
		rec := &fakeRecommender{rec: &domain.Recommendation{
			Workflow:  constants.WorkflowGeneratePlan,
			SpecID:    id.String(),
			Rationale: "spec.md changed after plan.md was generated",
		}}
		var buf bytes.Buffer
		err := watchRecommend(context.Background(), &buf, &GlobalFlags{Output: OutputText}, id, rec)
		require.NoError(t, err)
		assert.Equal(t, id, rec.id)
		assert.Contains(t, buf.String(), "spec-feat-001-user-auth")
		assert.Contains(t, buf.String(), constants.WorkflowGeneratePlan)
	})

	t.Run("mid-edit bundle keeps watching", func(t *testing.T) {
		t.Parallel()
		rec := &fakeRecommender{err: errors.Wrap(errors.ErrSpecNotFound, "bundle is mid-rename")}
		var buf bytes.Buffer
		err := watchRecommend(context.Background(), &buf, &GlobalFlags{Output: OutputText}, id, rec)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "bundle is mid-rename")
	})

	t.Run("other errors stop the watch", func(t *testing.T) {
		t.Parallel()
		rec := &fakeRecommender{err: errors.ErrStoreClosed}
		var buf bytes.Buffer
		err := watchRecommend(context.Background(), &buf, &GlobalFlags{Output: OutputText}, id, rec)
		assert.ErrorIs(t, err, errors.ErrStoreClosed)
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		rec := &fakeRecommender{rec: &domain.Recommendation{Workflow: constants.WorkflowVerifyTasks, SpecID: id.String()}}
		var buf bytes.Buffer
		err := watchRecommend(context.Background(), &buf, &GlobalFlags{Output: OutputJSON}, id, rec)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"workflow"`)
	})
}
