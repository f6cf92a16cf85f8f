package steps

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/prompts"
)

// systemPrompt frames every drafting call.
const systemPrompt = "You are SmartSpec's drafting model. You produce precise, " +
	"complete engineering artifacts in markdown and nothing else."

// GenerateStep produces an artifact through the LLM gateway: a new spec.md
// (minting the bundle), a plan.md or tasks.md for an existing bundle, or
// runtime implementation guidance. The artifact kind comes from step config.
type GenerateStep struct {
	gw     ChatClient
	userID string
}

// NewGenerateStep returns the generate executor. Every call is billed to
// userID, the operator account this process runs as.
func NewGenerateStep(gw ChatClient, userID string) *GenerateStep {
	return &GenerateStep{gw: gw, userID: userID}
}

// Type implements engine.StepExecutor.
func (s *GenerateStep) Type() domain.StepType { return domain.StepTypeGenerate }

// generateOutput is what a generate step records in run state.
type generateOutput struct {
	SpecID         string            `json:"spec_id"`
	Artifact       string            `json:"artifact"`
	Path           string            `json:"path,omitempty"`
	Changed        bool              `json:"changed"`
	Model          string            `json:"model,omitempty"`
	Usage          domain.TokenUsage `json:"usage"`
	DebitedCredits int64             `json:"debited_credits,omitempty"`
	VerifyRun      string            `json:"verify_run,omitempty"`
}

// Execute implements engine.StepExecutor.
func (s *GenerateStep) Execute(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if s.gw == nil {
		return nil, sserrors.Wrap(sserrors.ErrNoRouteAvailable, "generate step has no gateway wired")
	}

	artifact := req.Step.Config["artifact"]
	switch artifact {
	case "spec":
		return s.draftSpec(ctx, req)
	case "plan":
		return s.draftPlan(ctx, req)
	case "tasks":
		return s.draftTasks(ctx, req)
	case "guidance":
		return s.draftGuidance(ctx, req)
	default:
		return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "generate step %s: unknown artifact %q", req.Step.Name, artifact)
	}
}

// draftSpec mints or reuses a bundle identity and drafts its spec.md.
// Re-running with the same title finds the existing bundle by slug, so two
// identical invocations converge on one bundle instead of numbering a twin.
func (s *GenerateStep) draftSpec(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	title := strings.TrimSpace(req.Args["title"])
	if title == "" {
		return nil, sserrors.Wrap(sserrors.ErrMissingArgument, "title")
	}
	category := req.Args["category"]
	if category == "" {
		category = "feat"
	}
	slug := domain.SlugFromTitle(title)
	if slug == "" {
		return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "title %q yields an empty slug", title)
	}

	id, err := s.resolveBundle(req, category, slug)
	if err != nil {
		return nil, err
	}

	prompt, err := prompts.Render(prompts.SpecDraft, prompts.SpecDraftData{
		SpecID:   id.String(),
		Title:    title,
		Category: category,
		Guidance: req.Args["prompt"],
	})
	if err != nil {
		return nil, err
	}
	req.Progress(0.2)

	text, result, err := s.complete(ctx, req, domain.TaskClassReasoning, prompt)
	if err != nil {
		return nil, err
	}
	req.Progress(0.8)

	changed, err := writeIfChanged(ctx, req, req.Layout.SpecFile(id), text)
	if err != nil {
		return nil, err
	}

	req.State.SetString(KeySpecID, id.String())

	return s.finish(ctx, req, generateOutput{
		SpecID:         id.String(),
		Artifact:       constants.SpecFileName,
		Path:           req.Layout.Rel(req.Layout.SpecFile(id)),
		Changed:        changed,
		Model:          result.Model,
		Usage:          result.Usage,
		DebitedCredits: result.DebitedCredits,
	})
}

// resolveBundle picks the bundle identity for a spec draft: an explicit spec
// argument wins, then an existing bundle with the same category and slug,
// then a freshly minted number.
func (s *GenerateStep) resolveBundle(req *engine.StepRequest, category, slug string) (domain.SpecID, error) {
	if req.HasSpec {
		return req.SpecID, nil
	}

	ids, err := req.Layout.ListSpecs()
	if err != nil {
		return domain.SpecID{}, err
	}
	for _, id := range ids {
		if id.Category == category && id.Slug == slug {
			return id, nil
		}
	}

	number, err := req.Layout.NextNumber(category)
	if err != nil {
		return domain.SpecID{}, err
	}
	return domain.SpecID{Category: category, Number: number, Slug: slug}, nil
}

// draftPlan drafts plan.md from the bundle's spec.md.
func (s *GenerateStep) draftPlan(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	id, err := resolveSpecID(req)
	if err != nil {
		return nil, err
	}
	specContent, err := readArtifact(req.Layout, req.Layout.SpecFile(id))
	if err != nil {
		return nil, err
	}

	prompt, err := prompts.Render(prompts.PlanDraft, prompts.PlanDraftData{
		SpecID:      id.String(),
		SpecContent: specContent,
		Guidance:    req.Args["prompt"],
	})
	if err != nil {
		return nil, err
	}
	req.Progress(0.2)

	text, result, err := s.complete(ctx, req, domain.TaskClassReasoning, prompt)
	if err != nil {
		return nil, err
	}
	req.Progress(0.8)

	changed, err := writeIfChanged(ctx, req, req.Layout.PlanFile(id), text)
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, req, generateOutput{
		SpecID:         id.String(),
		Artifact:       constants.PlanFileName,
		Path:           req.Layout.Rel(req.Layout.PlanFile(id)),
		Changed:        changed,
		Model:          result.Model,
		Usage:          result.Usage,
		DebitedCredits: result.DebitedCredits,
	})
}

// draftTasks drafts tasks.md from the bundle's spec.md and plan.md.
func (s *GenerateStep) draftTasks(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	id, err := resolveSpecID(req)
	if err != nil {
		return nil, err
	}
	specContent, err := readArtifact(req.Layout, req.Layout.SpecFile(id))
	if err != nil {
		return nil, err
	}
	planContent, err := readArtifact(req.Layout, req.Layout.PlanFile(id))
	if err != nil {
		return nil, err
	}

	prompt, err := prompts.Render(prompts.TasksDraft, prompts.TasksDraftData{
		SpecID:      id.String(),
		SpecContent: specContent,
		PlanContent: planContent,
		Guidance:    req.Args["prompt"],
	})
	if err != nil {
		return nil, err
	}
	req.Progress(0.2)

	text, result, err := s.complete(ctx, req, domain.TaskClassCodeGeneration, prompt)
	if err != nil {
		return nil, err
	}
	req.Progress(0.8)

	changed, err := writeIfChanged(ctx, req, req.Layout.TasksFile(id), text)
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, req, generateOutput{
		SpecID:         id.String(),
		Artifact:       constants.TasksFileName,
		Path:           req.Layout.Rel(req.Layout.TasksFile(id)),
		Changed:        changed,
		Model:          result.Model,
		Usage:          result.Usage,
		DebitedCredits: result.DebitedCredits,
	})
}

// draftGuidance renders implementation guidance for the bundle's failing
// tasks into the run directory. With no verification on record the raw
// tasks.md is used instead; with a clean report there is nothing to guide and
// the step completes without a gateway call.
func (s *GenerateStep) draftGuidance(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	id, err := resolveSpecID(req)
	if err != nil {
		return nil, err
	}

	data := prompts.ImplementGuideData{
		SpecID:   id.String(),
		Guidance: req.Args["prompt"],
	}
	var verifyRun string

	report, runID, err := latestVerification(req, id)
	switch {
	case err == nil:
		failed := report.FailedTasks()
		if len(failed) == 0 {
			out, merr := marshalOutput(generateOutput{SpecID: id.String(), Artifact: constants.GuidanceFileName})
			if merr != nil {
				return nil, merr
			}
			return &engine.StepResult{
				Status:  constants.StepStatusCompleted,
				Output:  out,
				Summary: "verification is clean; nothing to implement",
			}, nil
		}
		data.HasReport = true
		data.Tasks = packTasks(failed)
		verifyRun = runID

	case errors.Is(err, sserrors.ErrReportNotFound):
		tasksContent, rerr := readArtifact(req.Layout, req.Layout.TasksFile(id))
		if rerr != nil {
			return nil, rerr
		}
		data.TasksContent = tasksContent

	default:
		return nil, err
	}

	prompt, err := prompts.Render(prompts.ImplementGuide, data)
	if err != nil {
		return nil, err
	}
	req.Progress(0.2)

	text, result, err := s.complete(ctx, req, domain.TaskClassCodeGeneration, prompt)
	if err != nil {
		return nil, err
	}
	req.Progress(0.8)

	path := filepath.Join(runDir(req), constants.GuidanceFileName)
	if err := req.Writer.WriteRuntime(ctx, path, []byte(text)); err != nil {
		return nil, err
	}

	return s.finish(ctx, req, generateOutput{
		SpecID:         id.String(),
		Artifact:       constants.GuidanceFileName,
		Path:           req.Layout.Rel(path),
		Changed:        true,
		Model:          result.Model,
		Usage:          result.Usage,
		DebitedCredits: result.DebitedCredits,
		VerifyRun:      verifyRun,
	})
}

// complete runs one gateway call and normalizes the completion text.
func (s *GenerateStep) complete(ctx context.Context, req *engine.StepRequest, class domain.TaskClass, prompt string) (string, *domain.ChatResult, error) {
	chatReq := &domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: systemPrompt},
			{Role: domain.RoleUserMsg, Content: prompt},
		},
		TaskClass: class,
		Priority:  domain.PriorityQuality,
		Metadata: map[string]string{
			"workflow":  req.Execution.Workflow,
			"execution": req.Execution.ID,
			"step":      req.Step.Name,
		},
	}

	result, err := s.gw.Chat(ctx, s.userID, chatReq)
	if err != nil {
		return "", nil, err
	}

	text := strings.TrimSpace(stripFence(result.Text))
	if text == "" {
		return "", nil, sserrors.Wrap(sserrors.ErrProviderRequest, "provider returned an empty completion")
	}
	return text + "\n", result, nil
}

// finish marshals the output and logs the billing line all drafts share.
func (s *GenerateStep) finish(ctx context.Context, req *engine.StepRequest, out generateOutput) (*engine.StepResult, error) {
	raw, err := marshalOutput(out)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("component", "steps").
		Str("artifact", out.Artifact).
		Str("spec_id", out.SpecID).
		Str("model", out.Model).
		Int64("debited_credits", out.DebitedCredits).
		Bool("changed", out.Changed).
		Msg("artifact drafted")

	summary := "drafted " + out.Artifact + " for " + out.SpecID
	if !out.Changed {
		summary = out.Artifact + " already up to date for " + out.SpecID
	}
	return &engine.StepResult{
		Status:  constants.StepStatusCompleted,
		Output:  raw,
		Summary: summary,
	}, nil
}

// writeIfChanged writes a governed artifact only when its content differs
// from what is on disk, keeping re-runs with identical drafts write-free.
func writeIfChanged(ctx context.Context, req *engine.StepRequest, path, content string) (bool, error) {
	existing, err := os.ReadFile(path) //#nosec G304 -- path is constructed from the layout
	if err == nil && bytes.Equal(existing, []byte(content)) {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, sserrors.Wrapf(err, "reading %s", req.Layout.Rel(path))
	}
	if err := req.Writer.WriteGoverned(ctx, path, []byte(content)); err != nil {
		return false, err
	}
	return true, nil
}
