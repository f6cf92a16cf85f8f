package steps

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

func TestGitTagStep_CreatesAnnotatedTag(t *testing.T) {
	env := newTestEnv(t)
	tagger := newFakeTagger()
	step := NewGitTagStep(tagger)

	req := env.request(constants.WorkflowReleaseTagger, domain.WorkflowStep{
		Name:   "tag",
		Type:   domain.StepTypeGitTag,
		Config: map[string]string{"prefix": constants.ReleaseTagPrefix},
	}, testSpecID, true)

	res, err := step.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, constants.StepStatusCompleted, res.Status)
	assert.Equal(t, "created tag release/spec-feat-012-user-auth", res.Summary)

	assert.Equal(t, "Release spec-feat-012-user-auth", tagger.tags["release/spec-feat-012-user-auth"])

	var out tagOutput
	require.NoError(t, json.Unmarshal(res.Output, &out))
	assert.Equal(t, "release/spec-feat-012-user-auth", out.Tag)
	assert.Equal(t, "abc1234", out.Commit)
	assert.True(t, out.Created)
}

func TestGitTagStep_ExistingTagIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	tagger := newFakeTagger()
	tagger.tags["release/spec-feat-012-user-auth"] = "Release spec-feat-012-user-auth"
	step := NewGitTagStep(tagger)

	req := env.request(constants.WorkflowReleaseTagger, domain.WorkflowStep{
		Name: "tag",
		Type: domain.StepTypeGitTag,
	}, testSpecID, true)

	res, err := step.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "tag release/spec-feat-012-user-auth already exists", res.Summary)

	var out tagOutput
	require.NoError(t, json.Unmarshal(res.Output, &out))
	assert.False(t, out.Created)
}

func TestGitTagStep_CustomMessage(t *testing.T) {
	env := newTestEnv(t)
	tagger := newFakeTagger()
	step := NewGitTagStep(tagger)

	req := env.request(constants.WorkflowReleaseTagger, domain.WorkflowStep{
		Name: "tag",
		Type: domain.StepTypeGitTag,
	}, testSpecID, true)
	req.Args["message"] = "Ship user auth to production"

	_, err := step.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Ship user auth to production", tagger.tags["release/spec-feat-012-user-auth"])
}

func TestGitTagStep_TaggerFailure(t *testing.T) {
	env := newTestEnv(t)
	tagger := newFakeTagger()
	tagger.tagErr = sserrors.Wrap(sserrors.ErrGitOperation, "git tag: not a repository")
	step := NewGitTagStep(tagger)

	req := env.request(constants.WorkflowReleaseTagger, domain.WorkflowStep{
		Name: "tag",
		Type: domain.StepTypeGitTag,
	}, testSpecID, true)

	_, err := step.Execute(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrGitOperation)
}

func TestGitTagStep_NoTaggerWired(t *testing.T) {
	env := newTestEnv(t)
	step := NewGitTagStep(nil)

	req := env.request(constants.WorkflowReleaseTagger, domain.WorkflowStep{
		Name: "tag",
		Type: domain.StepTypeGitTag,
	}, testSpecID, true)

	_, err := step.Execute(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrInvalidArgument)
}
