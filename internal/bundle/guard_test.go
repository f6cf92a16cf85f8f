package bundle

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

func TestGuardClassify(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "repo")
	guard := NewGuard(root)

	tests := []struct {
		name    string
		path    string
		want    Scope
		wantErr bool
	}{
		{"governed spec file", "specs/feat/spec-feat-001-x/spec.md", ScopeGoverned, false},
		{"governed nested testplan", "specs/core/spec-core-002-y/testplan/cases.md", ScopeGoverned, false},
		{"runtime report", ".spec/reports/verify_tasks/run-1/report.md", ScopeRuntime, false},
		{"runtime lock", ".spec/locks/spec-feat-001-x.lock", ScopeRuntime, false},
		{"absolute under root governed", filepath.Join(root, "specs", "feat", "spec-feat-001-x", "plan.md"), ScopeGoverned, false},
		{"source tree", "src/main.go", "", true},
		{"repo root file", "go.mod", "", true},
		{"parent escape", "../outside/specs/x.md", "", true},
		{"absolute outside root", filepath.Join(string(filepath.Separator), "etc", "passwd"), "", true},
		{"specs lookalike prefix", "specs-archive/spec.md", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := guard.Classify(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, sserrors.ErrPathOutsideScope)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, scope)
		})
	}
}

func TestGuardCustomPatterns(t *testing.T) {
	guard := NewGuard("/repo", WithGovernedPatterns("docs/**"))

	scope, err := guard.Classify("docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, ScopeGoverned, scope)

	_, err = guard.Classify("specs/feat/spec-feat-001-x/spec.md")
	assert.ErrorIs(t, err, sserrors.ErrPathOutsideScope)
}

func TestGuardCleansTraversal(t *testing.T) {
	guard := NewGuard("/repo")

	// Traversal that stays inside the tree is normalized, then matched.
	scope, err := guard.Classify("specs/feat/../feat/spec-feat-001-x/spec.md")
	require.NoError(t, err)
	assert.Equal(t, ScopeGoverned, scope)

	// Traversal that exits specs/ lands wherever it really points.
	_, err = guard.Classify("specs/../main.go")
	assert.ErrorIs(t, err, sserrors.ErrPathOutsideScope)
}
