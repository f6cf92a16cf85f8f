package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

func TestWriteGovernedRequiresApply(t *testing.T) {
	root := t.TempDir()
	writer := NewWriter(NewGuard(root), false)
	path := filepath.Join(root, "specs", "feat", "spec-feat-001-x", "spec.md")

	err := writer.WriteGoverned(context.Background(), path, []byte("# Spec\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrApplyRequired)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing may touch disk without apply")
}

func TestWriteGovernedWithApply(t *testing.T) {
	root := t.TempDir()
	writer := NewWriter(NewGuard(root), true)
	path := filepath.Join(root, "specs", "feat", "spec-feat-001-x", "spec.md")

	require.NoError(t, writer.WriteGoverned(context.Background(), path, []byte("# Spec\n")))

	data, err := os.ReadFile(path) //#nosec G304 -- test path
	require.NoError(t, err)
	assert.Equal(t, "# Spec\n", string(data))

	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr), "temp file must not survive")

	// Overwrite replaces content atomically.
	require.NoError(t, writer.WriteGoverned(context.Background(), path, []byte("# Spec v2\n")))
	data, err = os.ReadFile(path) //#nosec G304 -- test path
	require.NoError(t, err)
	assert.Equal(t, "# Spec v2\n", string(data))
}

func TestWriteGovernedRefusesRuntimeTree(t *testing.T) {
	root := t.TempDir()
	writer := NewWriter(NewGuard(root), true)
	path := filepath.Join(root, ".spec", "reports", "verify_tasks", "run-1", "report.md")

	err := writer.WriteGoverned(context.Background(), path, []byte("x"))
	assert.ErrorIs(t, err, sserrors.ErrPathOutsideScope)
}

func TestWriteRuntime(t *testing.T) {
	root := t.TempDir()
	// Runtime writes never need apply.
	writer := NewWriter(NewGuard(root), false)
	path := filepath.Join(root, ".spec", "reports", "verify_tasks", "run-1", "report.md")

	require.NoError(t, writer.WriteRuntime(context.Background(), path, []byte("# Report\n")))

	data, err := os.ReadFile(path) //#nosec G304 -- test path
	require.NoError(t, err)
	assert.Equal(t, "# Report\n", string(data))
}

func TestWriteRuntimeRefusesOutsideScope(t *testing.T) {
	root := t.TempDir()
	writer := NewWriter(NewGuard(root), false)

	err := writer.WriteRuntime(context.Background(), filepath.Join(root, "src", "main.go"), []byte("x"))
	assert.ErrorIs(t, err, sserrors.ErrPathOutsideScope)

	err = writer.WriteRuntime(context.Background(), filepath.Join(root, "specs", "feat", "spec-feat-001-x", "spec.md"), []byte("x"))
	assert.ErrorIs(t, err, sserrors.ErrPathOutsideScope, "runtime writer must not touch governed tree")
}

func TestWriteCancelledContext(t *testing.T) {
	root := t.TempDir()
	writer := NewWriter(NewGuard(root), true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := writer.WriteGoverned(ctx, filepath.Join(root, "specs", "feat", "spec-feat-001-x", "spec.md"), []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
