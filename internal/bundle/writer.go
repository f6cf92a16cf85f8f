package bundle

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mrz1836/smartspec/internal/ctxutil"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Writer performs atomic, scope-checked writes into the bundle trees.
// Governed writes (specs/**) additionally require the apply flag; without it
// the write is refused with ErrApplyRequired and nothing touches disk.
type Writer struct {
	guard *Guard
	apply bool
}

// NewWriter creates a Writer. apply reflects the user's --apply flag for
// this invocation.
func NewWriter(guard *Guard, apply bool) *Writer {
	return &Writer{guard: guard, apply: apply}
}

// WriteGoverned atomically writes a governed artifact (specs/** tree).
func (w *Writer) WriteGoverned(ctx context.Context, path string, data []byte) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	scope, err := w.guard.Classify(path)
	if err != nil {
		return err
	}
	if scope != ScopeGoverned {
		return sserrors.Wrapf(sserrors.ErrPathOutsideScope, "governed write targeting %s tree: %s", scope, path)
	}
	if !w.apply {
		return sserrors.Wrapf(sserrors.ErrApplyRequired, "writing %s", path)
	}
	return atomicWrite(path, data)
}

// WriteRuntime atomically writes a runtime artifact (.spec/** tree).
func (w *Writer) WriteRuntime(ctx context.Context, path string, data []byte) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	scope, err := w.guard.Classify(path)
	if err != nil {
		return err
	}
	if scope != ScopeRuntime {
		return sserrors.Wrapf(sserrors.ErrPathOutsideScope, "runtime write targeting %s tree: %s", scope, path)
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data via a temp file in the target directory, syncs it,
// then renames over the destination so readers never observe a torn file.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return sserrors.Wrap(err, "creating parent directory")
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path already passed the scope guard
	if err != nil {
		return sserrors.Wrap(err, "creating temp file")
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return sserrors.Wrap(err, "writing data")
	}

	// Sync before rename so a crash cannot leave an empty destination.
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return sserrors.Wrap(err, "syncing file")
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return sserrors.Wrap(err, "closing file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return sserrors.Wrap(err, "renaming into place")
	}

	return nil
}
