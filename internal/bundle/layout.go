// Package bundle manages spec bundles on disk: the governed artifact tree
// under specs/ and the runtime tree under .spec/. It observes bundle state
// for workflow recommendation, serializes writers with a per-spec mutex,
// enforces the write scope, and performs atomic artifact writes.
//
// Import rules: bundle may import domain, constants, errors, clock, flock,
// and verify (for task counting); nothing above it.
package bundle

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// Layout resolves every bundle-related path from a repository root. All
// returned paths are absolute; all accepted identifiers are validated spec
// IDs so path traversal cannot be smuggled through a category or slug.
type Layout struct {
	root string
}

// NewLayout creates a Layout rooted at the repository root.
func NewLayout(root string) *Layout {
	return &Layout{root: root}
}

// Root returns the repository root this layout resolves against.
func (l *Layout) Root() string { return l.root }

// SpecDir returns specs/<category>/<spec-id>/ for the given spec.
func (l *Layout) SpecDir(id domain.SpecID) string {
	return filepath.Join(l.root, constants.SpecsDir, id.Category, id.String())
}

// SpecFile returns the governed spec.md path.
func (l *Layout) SpecFile(id domain.SpecID) string {
	return filepath.Join(l.SpecDir(id), constants.SpecFileName)
}

// PlanFile returns the governed plan.md path.
func (l *Layout) PlanFile(id domain.SpecID) string {
	return filepath.Join(l.SpecDir(id), constants.PlanFileName)
}

// TasksFile returns the governed tasks.md path.
func (l *Layout) TasksFile(id domain.SpecID) string {
	return filepath.Join(l.SpecDir(id), constants.TasksFileName)
}

// DocsFile returns the governed docs.md path.
func (l *Layout) DocsFile(id domain.SpecID) string {
	return filepath.Join(l.SpecDir(id), constants.DocsFileName)
}

// TestplanDir returns the governed testplan/ subtree path.
func (l *Layout) TestplanDir(id domain.SpecID) string {
	return filepath.Join(l.SpecDir(id), constants.TestplanDirName)
}

// RuntimeDir returns the runtime tree root (.spec/).
func (l *Layout) RuntimeDir() string {
	return filepath.Join(l.root, constants.RuntimeDir)
}

// ReportsDir returns .spec/reports/<workflow>/ for one workflow.
func (l *Layout) ReportsDir(workflow string) string {
	return filepath.Join(l.RuntimeDir(), constants.ReportsDir, workflow)
}

// RunDir returns .spec/reports/<workflow>/<run-id>/ for one execution.
func (l *Layout) RunDir(workflow, runID string) string {
	return filepath.Join(l.ReportsDir(workflow), runID)
}

// PromptPackDir returns .spec/prompts/<run-id>/ for one verification run.
func (l *Layout) PromptPackDir(runID string) string {
	return filepath.Join(l.RuntimeDir(), constants.PromptsDir, runID)
}

// LockFile returns .spec/locks/<spec-id>.lock for the bundle mutex.
func (l *Layout) LockFile(id domain.SpecID) string {
	return filepath.Join(l.RuntimeDir(), constants.LocksDir, id.String()+".lock")
}

// WorkflowsDir returns .spec/workflows/ where user descriptors live.
func (l *Layout) WorkflowsDir() string {
	return filepath.Join(l.RuntimeDir(), constants.WorkflowsDir)
}

// DatabaseFile returns the sqlite database path inside the runtime tree.
func (l *Layout) DatabaseFile() string {
	return filepath.Join(l.RuntimeDir(), constants.DatabaseFileName)
}

// Rel converts an absolute path under the root back to a slash-separated
// repository-relative path. Returns the input unchanged when it is not under
// the root.
func (l *Layout) Rel(abs string) string {
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return filepath.ToSlash(rel)
}

// FindSpec locates the bundle directory for a spec id. The category embedded
// in the id names the directory, so lookup is a single stat.
// Returns ErrSpecNotFound when the directory does not exist.
func (l *Layout) FindSpec(id domain.SpecID) (string, error) {
	dir := l.SpecDir(id)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", sserrors.Wrapf(sserrors.ErrSpecNotFound, "%s", id)
		}
		return "", sserrors.Wrapf(err, "locating spec %s", id)
	}
	if !info.IsDir() {
		return "", sserrors.Wrapf(sserrors.ErrSpecNotFound, "%s is not a directory", id)
	}
	return dir, nil
}

// ListSpecs walks specs/ and returns every parseable spec id, sorted by
// canonical string. Entries that do not parse as spec ids are skipped.
func (l *Layout) ListSpecs() ([]domain.SpecID, error) {
	specsRoot := filepath.Join(l.root, constants.SpecsDir)
	categories, err := os.ReadDir(specsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, sserrors.Wrap(err, "listing specs directory")
	}

	var ids []domain.SpecID
	for _, category := range categories {
		if !category.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(specsRoot, category.Name()))
		if err != nil {
			return nil, sserrors.Wrapf(err, "listing category %s", category.Name())
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			id, perr := domain.ParseSpecID(entry.Name())
			if perr != nil || id.Category != category.Name() {
				continue
			}
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// NextNumber returns the next free ordinal within a category, starting at 1.
func (l *Layout) NextNumber(category string) (int, error) {
	ids, err := l.ListSpecs()
	if err != nil {
		return 0, err
	}
	next := 1
	for _, id := range ids {
		if id.Category == category && id.Number >= next {
			next = id.Number + 1
		}
	}
	return next, nil
}
