// Package testutil provides shared test fixtures for SmartSpec.
//
// It builds throwaway spec repositories under t.TempDir so command and
// integration tests can exercise bundle observation, verification, and the
// orchestrator without touching the real working tree. It should only be
// imported by test files (*_test.go).
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
)

// TempRepo creates a temporary repository root with the specs/ and .spec/
// trees in place and returns its path.
func TempRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, constants.SpecsDir), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, constants.RuntimeDir), 0o750))
	return root
}

// MustSpecID parses a spec id or fails the test.
func MustSpecID(t *testing.T, raw string) domain.SpecID {
	t.Helper()
	id, err := domain.ParseSpecID(raw)
	require.NoError(t, err)
	return id
}

// WriteArtifact writes one governed artifact (spec.md, plan.md, tasks.md,
// docs.md) into the bundle for id, creating the bundle directory as needed.
func WriteArtifact(t *testing.T, root string, id domain.SpecID, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, id.BundleDir())
	require.NoError(t, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// WriteBundle creates a full bundle with spec.md, plan.md, and tasks.md so
// tests start from a "tasks present" decision-table state.
func WriteBundle(t *testing.T, root string, id domain.SpecID, tasks string) {
	t.Helper()
	WriteArtifact(t, root, id, constants.SpecFileName, "# "+id.Slug+"\n\nSpecification.\n")
	WriteArtifact(t, root, id, constants.PlanFileName, "# Plan\n\n1. Do the work.\n")
	WriteArtifact(t, root, id, constants.TasksFileName, tasks)
}

// WriteRepoFile writes an arbitrary repository file referenced by evidence
// hooks, creating parent directories as needed.
func WriteRepoFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TasksOneVerified is a minimal tasks.md whose single claimed task carries
// code and test evidence. Pair it with WriteRepoFile calls for
// "internal/auth/auth.go" and "internal/auth/auth_test.go" to produce a
// clean verification.
const TasksOneVerified = `# Tasks

## TASK-001 Password hashing

- [x] Implement password hashing
  evidence: code path=internal/auth/auth.go symbol=HashPassword
  evidence: test path=internal/auth/auth_test.go contains="HashPassword"
`
