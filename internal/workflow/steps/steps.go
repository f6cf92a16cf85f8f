// Package steps implements the executor behind every workflow step type.
// One executor instance serves every step of its type across concurrent
// executions; collaborators are injected once at wiring time and the engine
// hands each dispatch its runtime data through a StepRequest.
//
// This package follows strict import rules:
//   - CAN import: internal/bundle, internal/clock, internal/constants,
//     internal/ctxutil, internal/domain, internal/engine, internal/errors,
//     internal/prompts, internal/verify, standard library
//   - MUST NOT import: internal/cli, internal/gateway, internal/git,
//     internal/orchestrator, internal/store, internal/tui
//
// The gateway and git stay behind the ChatClient and Tagger interfaces so
// executors are testable with local fakes; *gateway.Gateway and *git.Client
// satisfy them at wiring time.
package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrz1836/smartspec/internal/bundle"
	"github.com/mrz1836/smartspec/internal/clock"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/prompts"
)

// ChatClient is the slice of the LLM gateway that generate steps consume.
type ChatClient interface {
	Chat(ctx context.Context, userID string, req *domain.ChatRequest) (*domain.ChatResult, error)
}

// TaskVerifier is the slice of the evidence verifier the verify step
// consumes. tasksPath is repository-relative.
type TaskVerifier interface {
	Run(ctx context.Context, tasksPath string) (*domain.VerificationReport, error)
}

// Tagger is the slice of the git client that the git_tag step consumes.
type Tagger interface {
	// TagExists reports whether the named tag already exists.
	TagExists(ctx context.Context, name string) (bool, error)

	// CreateTag creates an annotated tag at HEAD.
	CreateTag(ctx context.Context, name, message string) error

	// Head returns the abbreviated commit hash the tag would point at.
	Head(ctx context.Context) (string, error)
}

// Shared run-state data keys. Steps communicate across an execution through
// these; modify responses may overwrite them.
const (
	// KeyVerificationReport holds the full VerificationReport JSON produced
	// by a verify step, for downstream steps of the same execution.
	KeyVerificationReport = "verification_report"

	// KeySpecID holds a bundle id minted mid-execution (spec drafting) so
	// later steps of a spec-less invocation can find the bundle.
	KeySpecID = "spec_id"

	// keyDocsDigestPrefix prefixes per-artifact digest keys written by docs
	// digest steps and consumed by the assemble step.
	keyDocsDigestPrefix = "docs_digest:"
)

// Deps bundles the collaborators the executors need at wiring time.
type Deps struct {
	// Verifier resolves evidence hooks against the repository.
	Verifier TaskVerifier

	// Gateway serves generate steps. UserID names the operator account every
	// generation is billed to.
	Gateway ChatClient
	UserID  string

	// Tagger serves git_tag steps.
	Tagger Tagger

	// Clock stamps report steps; nil uses the wall clock.
	Clock clock.Clock
}

// Register constructs one executor per step type and registers them all.
func Register(reg *engine.ExecutorRegistry, deps Deps) {
	reg.Register(NewGenerateStep(deps.Gateway, deps.UserID))
	reg.Register(NewVerifyStep(deps.Verifier))
	reg.Register(NewPromptPackStep())
	reg.Register(NewSyncStep())
	reg.Register(NewHumanStep())
	reg.Register(NewGitTagStep(deps.Tagger))
	reg.Register(NewDocsStep())
	reg.Register(NewReportStep(deps.Clock))
}

// resolveSpecID returns the bundle the step operates on: the admitted spec
// when the invocation carried one, otherwise the id a spec-drafting step
// minted earlier in the same execution.
func resolveSpecID(req *engine.StepRequest) (domain.SpecID, error) {
	if req.HasSpec {
		return req.SpecID, nil
	}
	s, ok := req.State.StringValue(KeySpecID)
	if !ok {
		return domain.SpecID{}, sserrors.Wrapf(sserrors.ErrSpecNotFound, "step %s has no spec to operate on", req.Step.Name)
	}
	return domain.ParseSpecID(s)
}

// latestVerification returns the newest verification report for a bundle and
// the run id that produced it. A verify step earlier in the same execution
// wins; otherwise the newest persisted verify_tasks run is loaded from disk.
func latestVerification(req *engine.StepRequest, id domain.SpecID) (*domain.VerificationReport, string, error) {
	if raw, ok := req.State.Value(KeyVerificationReport); ok {
		var report domain.VerificationReport
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, "", sserrors.Wrap(err, "decoding verification report from run state")
		}
		return &report, req.Execution.ID, nil
	}

	summary, err := bundle.LatestRunSummary(req.Layout, id)
	if err != nil {
		return nil, "", err
	}
	if summary == nil {
		return nil, "", sserrors.Wrapf(sserrors.ErrReportNotFound, "%s has never been verified", id)
	}

	path := filepath.Join(req.Layout.RunDir(constants.WorkflowVerifyTasks, summary.RunID), constants.ReportDataFileName)
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed from the layout
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", sserrors.Wrapf(sserrors.ErrReportNotFound, "run %s left no %s", summary.RunID, constants.ReportDataFileName)
		}
		return nil, "", sserrors.Wrap(err, "reading verification report")
	}

	var report domain.VerificationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, "", sserrors.Wrap(err, "parsing verification report")
	}
	return &report, summary.RunID, nil
}

// runDir resolves the execution's report directory, honoring the --out
// override of the workflow segment under .spec/reports/.
func runDir(req *engine.StepRequest) string {
	workflow := req.Execution.Workflow
	if req.Flags.Out != "" {
		workflow = req.Flags.Out
	}
	return req.Layout.RunDir(workflow, req.Execution.ID)
}

// readArtifact loads one governed artifact, mapping absence to a typed error
// that names the missing file.
func readArtifact(layout *bundle.Layout, path string) (string, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed from the layout
	if err != nil {
		if os.IsNotExist(err) {
			return "", sserrors.Wrapf(sserrors.ErrArtifactNotFound, "%s", layout.Rel(path))
		}
		return "", sserrors.Wrapf(err, "reading %s", layout.Rel(path))
	}
	return string(data), nil
}

// packTasks converts failed verdicts into the prompt template shape, keeping
// only unresolved evidence lines.
func packTasks(verdicts []domain.TaskVerdict) []prompts.PackTask {
	out := make([]prompts.PackTask, 0, len(verdicts))
	for _, v := range verdicts {
		pt := prompts.PackTask{
			ID:          v.TaskID,
			Title:       v.Title,
			Claimed:     v.Claimed,
			Priority:    v.Priority,
			Remediation: v.Remediation,
		}
		for _, h := range v.Hooks {
			if h.Resolved {
				continue
			}
			pt.Evidence = append(pt.Evidence, describeHookFailure(h))
		}
		out = append(out, pt)
	}
	return out
}

// describeHookFailure renders one failing hook as a single line for prompts.
func describeHookFailure(h domain.HookResult) string {
	target := h.Hook.Path
	if target == "" {
		target = fmt.Sprintf("line %d", h.Hook.Line)
	}
	kind := string(h.Hook.Kind)
	if kind == "" {
		kind = "hook"
	}
	line := fmt.Sprintf("%s %s: %s", kind, target, h.Reason)
	if h.Detail != "" {
		line += " (" + h.Detail + ")"
	}
	return line
}

// stripFence removes a wrapping markdown code fence, which models sometimes
// add despite instructions. Inner fences are left alone.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return s
	}
	end := strings.LastIndex(t, "```")
	if end <= nl {
		return s
	}
	return t[nl+1 : end]
}

// marshalOutput serializes a step output struct; a failure here is a
// programming error surfaced as a step failure.
func marshalOutput(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, sserrors.Wrap(err, "encoding step output")
	}
	return raw, nil
}
