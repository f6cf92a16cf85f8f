package bundle

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mrz1836/smartspec/internal/constants"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Scope labels which tree a path belongs to.
type Scope string

// Write scopes recognized by the guard.
const (
	// ScopeGoverned covers the spec bundle tree (specs/**). Writes require
	// the apply flag.
	ScopeGoverned Scope = "governed"

	// ScopeRuntime covers the runtime tree (.spec/**). Writes require the
	// runtime opt-in but never apply.
	ScopeRuntime Scope = "runtime"
)

// Guard enforces the write-scope discipline: every engine-mediated write
// must land under specs/** or .spec/**. Anything else is a governance
// violation regardless of flags.
type Guard struct {
	root             string
	governedPatterns []string
	runtimePatterns  []string
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGovernedPatterns replaces the governed-tree glob patterns.
func WithGovernedPatterns(patterns ...string) GuardOption {
	return func(g *Guard) { g.governedPatterns = patterns }
}

// WithRuntimePatterns replaces the runtime-tree glob patterns.
func WithRuntimePatterns(patterns ...string) GuardOption {
	return func(g *Guard) { g.runtimePatterns = patterns }
}

// NewGuard creates a Guard for the repository root with the default
// patterns specs/** and .spec/**.
func NewGuard(root string, opts ...GuardOption) *Guard {
	g := &Guard{
		root:             root,
		governedPatterns: []string{constants.SpecsDir + "/**"},
		runtimePatterns:  []string{constants.RuntimeDir + "/**"},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Classify normalizes a path (absolute under the root, or repo-relative)
// and returns its write scope. Paths outside every pattern return
// ErrPathOutsideScope.
func (g *Guard) Classify(path string) (Scope, error) {
	rel, err := g.relative(path)
	if err != nil {
		return "", err
	}

	for _, pattern := range g.governedPatterns {
		if ok, merr := doublestar.Match(pattern, rel); merr == nil && ok {
			return ScopeGoverned, nil
		}
	}
	for _, pattern := range g.runtimePatterns {
		if ok, merr := doublestar.Match(pattern, rel); merr == nil && ok {
			return ScopeRuntime, nil
		}
	}
	return "", sserrors.Wrapf(sserrors.ErrPathOutsideScope, "%s", rel)
}

// Check verifies a path lands in either write scope.
func (g *Guard) Check(path string) error {
	_, err := g.Classify(path)
	return err
}

// relative converts path to a clean, slash-separated repo-relative form.
// Escapes of the root are scope violations, not IO errors.
func (g *Guard) relative(path string) (string, error) {
	if path == "" {
		return "", sserrors.Wrap(sserrors.ErrPathOutsideScope, "empty path")
	}

	candidate := path
	if filepath.IsAbs(candidate) {
		rel, err := filepath.Rel(g.root, candidate)
		if err != nil {
			return "", sserrors.Wrapf(sserrors.ErrPathOutsideScope, "%s", path)
		}
		candidate = rel
	}

	candidate = filepath.ToSlash(filepath.Clean(candidate))
	if candidate == ".." || strings.HasPrefix(candidate, "../") {
		return "", sserrors.Wrapf(sserrors.ErrPathOutsideScope, "%s", path)
	}
	return candidate, nil
}
