package signal

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	require.NotNil(t, h.Context())
	assert.NoError(t, h.Context().Err())
	assert.False(t, h.WasInterrupted())
}

func TestHandlerFirstSignalCancelsContext(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.sigChan <- syscall.SIGINT

	select {
	case <-h.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after signal")
	}

	select {
	case <-h.Interrupted():
	case <-time.After(2 * time.Second):
		t.Fatal("interrupted channel was not closed after signal")
	}
	assert.True(t, h.WasInterrupted())
}

func TestHandlerSecondSignalHardExits(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	exited := make(chan int, 1)
	h.exit = func(code int) { exited <- code }

	h.sigChan <- syscall.SIGINT
	select {
	case <-h.Interrupted():
	case <-time.After(2 * time.Second):
		t.Fatal("first signal not observed")
	}

	h.sigChan <- syscall.SIGINT
	select {
	case code := <-exited:
		assert.Equal(t, hardExitCode, code)
	case <-time.After(2 * time.Second):
		t.Fatal("second signal did not hard-exit")
	}
}

func TestHandlerStopCancelsContext(t *testing.T) {
	h := NewHandler(context.Background())
	h.Stop()

	select {
	case <-h.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the context")
	}
	assert.False(t, h.WasInterrupted(), "Stop is not an interruption")
}

func TestHandlerStopIsIdempotent(t *testing.T) {
	h := NewHandler(context.Background())
	h.Stop()
	assert.NotPanics(t, func() { h.Stop() })
}

func TestHandlerParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := NewHandler(parent)
	defer h.Stop()

	cancel()

	select {
	case <-h.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("parent cancellation did not propagate")
	}
}
