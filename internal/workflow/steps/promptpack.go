package steps

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	"github.com/mrz1836/smartspec/internal/prompts"
)

// packOrder fixes the category rendering order, highest urgency first.
var packOrder = []domain.TaskCategory{
	domain.CategoryNotImplemented,
	domain.CategoryMissingTests,
	domain.CategoryMissingCode,
	domain.CategorySymbolIssue,
	domain.CategoryContentIssue,
	domain.CategoryNamingIssue,
	domain.CategoryUnverifiable,
}

// PromptPackStep renders the latest verification failures into per-category
// prompt files under .spec/prompts/<verify-run-id>/, ready to paste into an
// implementation session. The directory is keyed by the verification run, not
// this execution, so recommendation can tell whether the latest report has
// been packed.
type PromptPackStep struct{}

// NewPromptPackStep returns the prompt_pack executor.
func NewPromptPackStep() *PromptPackStep {
	return &PromptPackStep{}
}

// Type implements engine.StepExecutor.
func (s *PromptPackStep) Type() domain.StepType { return domain.StepTypePromptPack }

// packOutput is what a prompt_pack step records in run state.
type packOutput struct {
	SpecID    string   `json:"spec_id"`
	VerifyRun string   `json:"verify_run,omitempty"`
	Dir       string   `json:"dir,omitempty"`
	Files     []string `json:"files,omitempty"`
	Tasks     int      `json:"tasks"`
	Clean     bool     `json:"clean,omitempty"`
}

// Execute implements engine.StepExecutor.
func (s *PromptPackStep) Execute(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	id, err := resolveSpecID(req)
	if err != nil {
		return nil, err
	}

	report, runID, err := latestVerification(req, id)
	if err != nil {
		return nil, err
	}

	failed := report.FailedTasks()
	if len(failed) == 0 {
		raw, merr := marshalOutput(packOutput{SpecID: id.String(), VerifyRun: runID, Clean: true})
		if merr != nil {
			return nil, merr
		}
		return &engine.StepResult{
			Status:  constants.StepStatusCompleted,
			Output:  raw,
			Summary: "verification is clean; no prompts to pack",
		}, nil
	}

	groups := make(map[domain.TaskCategory][]domain.TaskVerdict)
	for _, v := range failed {
		groups[v.Category] = append(groups[v.Category], v)
	}

	dir := req.Layout.PromptPackDir(runID)
	var files []string
	for i, cat := range packOrder {
		verdicts, ok := groups[cat]
		if !ok {
			continue
		}

		rendered, rerr := prompts.Render(prompts.PackCategory, prompts.PackCategoryData{
			SpecID:   id.String(),
			RunID:    runID,
			Category: string(cat),
			Heading:  packHeading(cat),
			Advice:   packAdvice(cat),
			Tasks:    packTasks(verdicts),
		})
		if rerr != nil {
			return nil, rerr
		}

		path := filepath.Join(dir, string(cat)+".md")
		if werr := req.Writer.WriteRuntime(ctx, path, []byte(rendered)); werr != nil {
			return nil, werr
		}
		files = append(files, string(cat)+".md")
		req.Progress(float64(i+1) / float64(len(packOrder)))
	}

	zerolog.Ctx(ctx).Info().
		Str("component", "steps").
		Str("spec_id", id.String()).
		Str("verify_run", runID).
		Int("files", len(files)).
		Int("tasks", len(failed)).
		Msg("prompt pack rendered")

	raw, err := marshalOutput(packOutput{
		SpecID:    id.String(),
		VerifyRun: runID,
		Dir:       req.Layout.Rel(dir),
		Files:     files,
		Tasks:     len(failed),
	})
	if err != nil {
		return nil, err
	}

	return &engine.StepResult{
		Status:  constants.StepStatusCompleted,
		Output:  raw,
		Summary: fmt.Sprintf("packed %d prompt files covering %d failing tasks", len(files), len(failed)),
	}, nil
}

// packHeading names a failure category for humans.
func packHeading(cat domain.TaskCategory) string {
	switch cat {
	case domain.CategoryNotImplemented:
		return "Not implemented"
	case domain.CategoryMissingTests:
		return "Missing tests"
	case domain.CategoryMissingCode:
		return "Missing code"
	case domain.CategorySymbolIssue:
		return "Missing symbols"
	case domain.CategoryContentIssue:
		return "Content mismatches"
	case domain.CategoryNamingIssue:
		return "Naming issues"
	case domain.CategoryUnverifiable:
		return "Unverifiable tasks"
	default:
		return string(cat)
	}
}

// packAdvice states what kind of work the category calls for.
func packAdvice(cat domain.TaskCategory) string {
	switch cat {
	case domain.CategoryNotImplemented:
		return "No code or test evidence resolved for these tasks. Build the implementation and its tests from scratch."
	case domain.CategoryMissingTests:
		return "Implementation code exists but its tests do not. Write the missing tests before touching the code."
	case domain.CategoryMissingCode:
		return "Tests exist but the implementation does not. Make the listed tests pass."
	case domain.CategorySymbolIssue:
		return "The files exist but the expected definitions are missing. Add the named symbols."
	case domain.CategoryContentIssue:
		return "Files and symbols exist but a content predicate fails. Align the content with what the task claims."
	case domain.CategoryNamingIssue:
		return "The evidence points at files that almost exist. Rename the files or fix the hook paths, whichever is wrong."
	case domain.CategoryUnverifiable:
		return "These tasks carry no usable evidence hooks. Add hooks so verification can prove them."
	default:
		return "Resolve each failing evidence hook below."
	}
}
