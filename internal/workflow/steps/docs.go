package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/verify"
)

// digestSources fixes which artifacts are digestible and their order in the
// assembled document.
var digestSources = []string{
	constants.SpecFileName,
	constants.PlanFileName,
	constants.TasksFileName,
}

// DocsStep serves the generate_docs graph in two modes selected by config:
// a "source" step digests one governed artifact into run state, and the
// "output" step assembles the digests into docs.md. Digesting is local
// extraction, not generation, so the whole workflow runs without network and
// its output is a pure function of the artifacts.
type DocsStep struct{}

// NewDocsStep returns the docs executor.
func NewDocsStep() *DocsStep {
	return &DocsStep{}
}

// Type implements engine.StepExecutor.
func (s *DocsStep) Type() domain.StepType { return domain.StepTypeDocs }

// artifactDigest is one source artifact boiled down for the assembled doc.
type artifactDigest struct {
	Source       string   `json:"source"`
	Missing      bool     `json:"missing,omitempty"`
	Title        string   `json:"title,omitempty"`
	Headings     []string `json:"headings,omitempty"`
	Words        int      `json:"words"`
	TasksTotal   int      `json:"tasks_total,omitempty"`
	TasksClaimed int      `json:"tasks_claimed,omitempty"`
}

// Execute implements engine.StepExecutor.
func (s *DocsStep) Execute(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	source := req.Step.Config["source"]
	output := req.Step.Config["output"]
	switch {
	case source != "" && output != "":
		return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "docs step %s declares both source and output", req.Step.Name)
	case source != "":
		return s.digest(req, source)
	case output != "":
		return s.assemble(ctx, req)
	default:
		return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "docs step %s declares neither source nor output", req.Step.Name)
	}
}

// digest extracts one artifact's outline into run state.
func (s *DocsStep) digest(req *engine.StepRequest, source string) (*engine.StepResult, error) {
	id, err := resolveSpecID(req)
	if err != nil {
		return nil, err
	}
	path, err := artifactPath(req, id, source)
	if err != nil {
		return nil, err
	}

	d := artifactDigest{Source: source}
	content, err := readArtifact(req.Layout, path)
	switch {
	case err == nil:
		fillDigest(&d, source, content, req.Layout.Rel(path))
	case errors.Is(err, sserrors.ErrArtifactNotFound):
		d.Missing = true
	default:
		return nil, err
	}

	raw, err := marshalOutput(d)
	if err != nil {
		return nil, err
	}
	req.State.SetValue(keyDocsDigestPrefix+source, raw)

	summary := "digested " + source
	if d.Missing {
		summary = source + " is missing; digested as absent"
	}
	return &engine.StepResult{
		Status:  constants.StepStatusCompleted,
		Output:  raw,
		Summary: summary,
	}, nil
}

// fillDigest populates outline fields from the artifact content.
func fillDigest(d *artifactDigest, source, content, relPath string) {
	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "# ") && d.Title == "":
			d.Title = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "## "):
			d.Headings = append(d.Headings, strings.TrimSpace(line[3:]))
		}
	}
	d.Words = len(strings.Fields(content))

	if source != constants.TasksFileName {
		return
	}
	doc, err := verify.ParseDocument(strings.NewReader(content), relPath)
	if err != nil {
		return
	}
	d.TasksTotal = len(doc.Tasks)
	d.TasksClaimed = doc.ClaimedCount()
}

// assemble renders docs.md from the digests the sibling steps left in run
// state. The output carries no timestamps, so an unchanged bundle assembles
// to the identical document and the write is skipped.
func (s *DocsStep) assemble(ctx context.Context, req *engine.StepRequest) (*engine.StepResult, error) {
	id, err := resolveSpecID(req)
	if err != nil {
		return nil, err
	}

	var digests []artifactDigest
	for _, source := range digestSources {
		raw, ok := req.State.Value(keyDocsDigestPrefix + source)
		if !ok {
			continue
		}
		var d artifactDigest
		if uerr := json.Unmarshal(raw, &d); uerr != nil {
			return nil, sserrors.Wrapf(uerr, "decoding digest for %s", source)
		}
		digests = append(digests, d)
	}
	if len(digests) == 0 {
		return nil, sserrors.Wrap(sserrors.ErrInvalidArgument, "assemble step found no digests in run state")
	}
	req.Progress(0.4)

	content := renderDocs(id, digests)
	changed, err := writeIfChanged(ctx, req, req.Layout.DocsFile(id), content)
	if err != nil {
		return nil, err
	}

	raw, err := marshalOutput(struct {
		SpecID   string `json:"spec_id"`
		Artifact string `json:"artifact"`
		Sections int    `json:"sections"`
		Changed  bool   `json:"changed"`
	}{SpecID: id.String(), Artifact: constants.DocsFileName, Sections: len(digests), Changed: changed})
	if err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("assembled docs.md from %d digests", len(digests))
	if !changed {
		summary = "docs.md already up to date"
	}
	return &engine.StepResult{
		Status:  constants.StepStatusCompleted,
		Output:  raw,
		Summary: summary,
	}, nil
}

// renderDocs builds the assembled digest document.
func renderDocs(id domain.SpecID, digests []artifactDigest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Bundle Digest: %s\n\n", id)
	b.WriteString("Generated from the governed artifacts. Edit those, not this file.\n")

	for _, d := range digests {
		fmt.Fprintf(&b, "\n## %s\n\n", d.Source)
		if d.Missing {
			b.WriteString("Not present.\n")
			continue
		}
		if d.Title != "" {
			fmt.Fprintf(&b, "**%s**\n\n", d.Title)
		}
		if len(d.Headings) > 0 {
			fmt.Fprintf(&b, "- Sections: %s\n", strings.Join(d.Headings, ", "))
		}
		fmt.Fprintf(&b, "- Words: %d\n", d.Words)
		if d.Source == constants.TasksFileName && d.TasksTotal > 0 {
			fmt.Fprintf(&b, "- Tasks: %d total, %d claimed\n", d.TasksTotal, d.TasksClaimed)
		}
	}
	return b.String()
}

// artifactPath maps a digestible source name onto its governed path.
func artifactPath(req *engine.StepRequest, id domain.SpecID, source string) (string, error) {
	switch source {
	case constants.SpecFileName:
		return req.Layout.SpecFile(id), nil
	case constants.PlanFileName:
		return req.Layout.PlanFile(id), nil
	case constants.TasksFileName:
		return req.Layout.TasksFile(id), nil
	default:
		return "", sserrors.Wrapf(sserrors.ErrInvalidArgument, "artifact %q is not digestible", source)
	}
}
