package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

func TestMutexAcquireRelease(t *testing.T) {
	layout := NewLayout(t.TempDir())
	mutex := NewMutex(layout)
	id := mustSpecID(t, "spec-feat-001-alpha")

	release, err := mutex.Acquire(id)
	require.NoError(t, err)
	assert.True(t, mutex.Held(id))

	release()
	assert.False(t, mutex.Held(id))

	// Release is idempotent.
	release()

	release2, err := mutex.Acquire(id)
	require.NoError(t, err)
	release2()
}

func TestMutexContention(t *testing.T) {
	layout := NewLayout(t.TempDir())
	mutex := NewMutex(layout)
	id := mustSpecID(t, "spec-feat-001-alpha")

	release, err := mutex.Acquire(id)
	require.NoError(t, err)
	defer release()

	_, err = mutex.Acquire(id)
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrBundleBusy)

	var busy *sserrors.BundleBusyError
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, "spec-feat-001-alpha", busy.SpecID)
}

func TestMutexIndependentSpecs(t *testing.T) {
	layout := NewLayout(t.TempDir())
	mutex := NewMutex(layout)

	releaseA, err := mutex.Acquire(mustSpecID(t, "spec-feat-001-alpha"))
	require.NoError(t, err)
	defer releaseA()

	// A different bundle locks independently.
	releaseB, err := mutex.Acquire(mustSpecID(t, "spec-feat-002-beta"))
	require.NoError(t, err)
	defer releaseB()
}
