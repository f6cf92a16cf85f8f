// Package signal provides graceful shutdown handling for SmartSpec commands.
//
// The first SIGINT or SIGTERM cancels the command context so live executions
// can unwind cooperatively (the engine's cancel path: cleanup hooks, final
// checkpoint, terminal event). A second signal hard-exits the process for
// operators who do not want to wait out the grace period.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages (to avoid circular dependencies)
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// hardExitCode is the exit status used when a second signal forces shutdown.
const hardExitCode = 130

// Handler manages graceful shutdown by listening for interrupt signals.
type Handler struct {
	ctx         context.Context //nolint:containedctx // intentional: handler owns the context lifecycle
	cancel      context.CancelFunc
	interrupted chan struct{}
	done        chan struct{}
	once        sync.Once
	stopOnce    sync.Once
	sigChan     chan os.Signal

	// exit is called on the second signal; overridable in tests.
	exit func(code int)
}

// NewHandler creates a signal handler that listens for SIGINT and SIGTERM.
// The first signal cancels the returned context and closes Interrupted; the
// second exits the process immediately.
//
// Usage:
//
//	h := signal.NewHandler(ctx)
//	defer h.Stop()
//	ctx = h.Context()
func NewHandler(parent context.Context) *Handler {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		done:        make(chan struct{}),
		// Buffer of 2 so a rapid second signal is never dropped while the
		// handler is busy with the first.
		sigChan: make(chan os.Signal, 2),
		exit:    os.Exit,
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()

	return h
}

// listen waits for signals until Stop is called. The first signal triggers
// graceful cancellation; the second forces an exit.
func (h *Handler) listen() {
	select {
	case <-h.sigChan:
		h.once.Do(func() {
			close(h.interrupted)
			h.cancel()
		})
	case <-h.done:
		return
	}

	select {
	case <-h.sigChan:
		h.exit(hardExitCode)
	case <-h.done:
	}
}

// wasInterrupted reports whether the interrupted channel is closed.
func wasInterrupted(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Context returns the context that is cancelled on the first signal.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted returns a channel closed when a signal has been received.
// Commands use it to distinguish user interruption from normal errors when
// choosing an exit message.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// WasInterrupted reports whether a signal has been received.
func (h *Handler) WasInterrupted() bool {
	return wasInterrupted(h.interrupted)
}

// Stop releases the signal subscription and cancels the context. Safe to
// call more than once.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
		h.cancel()
	})
}
