package steps

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// GitTagStep creates the annotated release tag for a completed bundle. An
// already-existing tag makes the step a no-op rather than a failure, so
// re-running release_tagger converges instead of erroring.
type GitTagStep struct {
	tagger Tagger
}

// NewGitTagStep returns the git_tag executor.
func NewGitTagStep(tagger Tagger) *GitTagStep {
	return &GitTagStep{tagger: tagger}
}

// Type implements engine.StepExecutor.
func (s *GitTagStep) Type() domain.StepType { return domain.StepTypeGitTag }

// tagOutput is what a git_tag step records in run state.
type tagOutput struct {
	SpecID  string `json:"spec_id"`
	Tag     string `json:"tag"`
	Commit  string `json:"commit,omitempty"`
	Created bool   `json:"created"`
}

// Execute implements engine.StepExecutor.
func (s *GitTagStep) Execute(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if s.tagger == nil {
		return nil, sserrors.Wrap(sserrors.ErrInvalidArgument, "git_tag step has no tagger wired")
	}

	id, err := resolveSpecID(req)
	if err != nil {
		return nil, err
	}

	prefix := req.Step.Config["prefix"]
	if prefix == "" {
		prefix = constants.ReleaseTagPrefix
	}
	name := prefix + id.String()

	exists, err := s.tagger.TagExists(ctx, name)
	if err != nil {
		return nil, err
	}
	req.Progress(0.3)

	out := tagOutput{SpecID: id.String(), Tag: name}
	if !exists {
		message := req.Args["message"]
		if message == "" {
			message = fmt.Sprintf("Release %s", id)
		}
		if err := s.tagger.CreateTag(ctx, name, message); err != nil {
			return nil, err
		}
		out.Created = true
	}

	if commit, herr := s.tagger.Head(ctx); herr == nil {
		out.Commit = commit
	}

	zerolog.Ctx(ctx).Info().
		Str("component", "steps").
		Str("spec_id", out.SpecID).
		Str("tag", out.Tag).
		Bool("created", out.Created).
		Msg("release tag ensured")

	raw, err := marshalOutput(out)
	if err != nil {
		return nil, err
	}

	summary := "created tag " + name
	if !out.Created {
		summary = "tag " + name + " already exists"
	}
	return &engine.StepResult{
		Status:  constants.StepStatusCompleted,
		Output:  raw,
		Summary: summary,
	}, nil
}
