package steps

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/verify"
)

// checkboxRegex matches the claim mark of a checklist bullet so it can be
// rewritten in place without disturbing the rest of the line.
var checkboxRegex = regexp.MustCompile(`^(\s*[-*]\s+\[)[ xX](\])`)

// SyncStep rewrites tasks.md claim bits to match the latest verification
// verdicts: verified tasks get checked, failing and unverifiable tasks get
// unchecked. Tasks the report never judged are left alone. A second run after
// a successful one finds nothing to change and writes nothing.
type SyncStep struct{}

// NewSyncStep returns the sync executor.
func NewSyncStep() *SyncStep {
	return &SyncStep{}
}

// Type implements engine.StepExecutor.
func (s *SyncStep) Type() domain.StepType { return domain.StepTypeSync }

// syncOutput is what a sync step records in run state.
type syncOutput struct {
	SpecID    string `json:"spec_id"`
	VerifyRun string `json:"verify_run"`
	Tasks     int    `json:"tasks"`
	Claimed   int    `json:"claimed"`
	Revoked   int    `json:"revoked"`
	Changed   bool   `json:"changed"`
}

// Execute implements engine.StepExecutor.
func (s *SyncStep) Execute(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
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

	tasksPath := req.Layout.TasksFile(id)
	content, err := readArtifact(req.Layout, tasksPath)
	if err != nil {
		return nil, err
	}
	doc, err := verify.ParseDocument(strings.NewReader(content), req.Layout.Rel(tasksPath))
	if err != nil {
		return nil, err
	}
	req.Progress(0.3)

	verdicts := make(map[string]domain.TaskVerdict, len(report.Tasks))
	for _, v := range report.Tasks {
		verdicts[strings.ToUpper(v.TaskID)] = v
	}

	lines := strings.Split(content, "\n")
	claimed, revoked := 0, 0
	for i := range doc.Tasks {
		task := &doc.Tasks[i]
		verdict, ok := verdicts[strings.ToUpper(task.ID)]
		if !ok || verdict.Passed == task.Claimed {
			continue
		}
		if task.Line < 1 || task.Line > len(lines) {
			return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "task %s points at line %d outside the document", task.ID, task.Line)
		}

		rewritten, matched := setClaim(lines[task.Line-1], verdict.Passed)
		if !matched {
			// The document changed shape since parsing; matching by id
			// already survived reordering, so a non-checklist line here
			// means the parse and the file disagree.
			return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "task %s line %d is not a checklist bullet", task.ID, task.Line)
		}
		lines[task.Line-1] = rewritten
		if verdict.Passed {
			claimed++
		} else {
			revoked++
		}
	}
	req.Progress(0.7)

	changed := claimed+revoked > 0
	if changed {
		if err := req.Writer.WriteGoverned(ctx, tasksPath, []byte(strings.Join(lines, "\n"))); err != nil {
			return nil, err
		}
	}

	zerolog.Ctx(ctx).Info().
		Str("component", "steps").
		Str("spec_id", id.String()).
		Str("verify_run", runID).
		Int("claimed", claimed).
		Int("revoked", revoked).
		Msg("checkboxes synced")

	raw, err := marshalOutput(syncOutput{
		SpecID:    id.String(),
		VerifyRun: runID,
		Tasks:     len(doc.Tasks),
		Claimed:   claimed,
		Revoked:   revoked,
		Changed:   changed,
	})
	if err != nil {
		return nil, err
	}

	summary := "checkboxes already in sync"
	if changed {
		summary = syncSummary(claimed, revoked)
	}
	return &engine.StepResult{
		Status:  constants.StepStatusCompleted,
		Output:  raw,
		Summary: summary,
	}, nil
}

// setClaim rewrites the claim mark of a checklist line. The second return
// reports whether the line was a checklist bullet at all.
func setClaim(line string, claimed bool) (string, bool) {
	if !checkboxRegex.MatchString(line) {
		return line, false
	}
	mark := " "
	if claimed {
		mark = "x"
	}
	return checkboxRegex.ReplaceAllString(line, "${1}"+mark+"${2}"), true
}

// syncSummary renders the one-line outcome for logs.
func syncSummary(claimed, revoked int) string {
	switch {
	case claimed > 0 && revoked > 0:
		return fmt.Sprintf("checked %d and unchecked %d tasks", claimed, revoked)
	case claimed > 0:
		return fmt.Sprintf("checked %d verified tasks", claimed)
	default:
		return fmt.Sprintf("unchecked %d failing tasks", revoked)
	}
}
