package engine

import (
	"sort"
	"sync"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Interrupts tracks live human-in-the-loop pauses. An interrupt exists from
// the moment a human step pauses until a response arrives or the deadline
// expires; exactly one resolution wins.
type Interrupts struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry
}

type pendingEntry struct {
	info domain.PendingInterrupt
	resp chan domain.InterruptResponse
}

// NewInterrupts creates an empty registry.
func NewInterrupts() *Interrupts {
	return &Interrupts{pending: make(map[string]*pendingEntry)}
}

// raise registers a pending interrupt and returns the channel the waiting
// step blocks on. The channel is buffered so the responder never blocks.
func (i *Interrupts) raise(info domain.PendingInterrupt) <-chan domain.InterruptResponse {
	entry := &pendingEntry{
		info: info,
		resp: make(chan domain.InterruptResponse, 1),
	}
	i.mu.Lock()
	i.pending[info.ID] = entry
	i.mu.Unlock()
	return entry.resp
}

// Respond delivers a response to a pending interrupt and removes it. Unknown
// or already-resolved interrupts return ErrInterruptNotFound.
func (i *Interrupts) Respond(id string, resp domain.InterruptResponse) error {
	i.mu.Lock()
	entry, ok := i.pending[id]
	if ok {
		delete(i.pending, id)
	}
	i.mu.Unlock()

	if !ok {
		return sserrors.Wrapf(sserrors.ErrInterruptNotFound, "interrupt %s", id)
	}
	entry.resp <- resp
	return nil
}

// expire removes a pending interrupt after its deadline. It reports whether
// the expiry won; false means a response raced in first and the waiter must
// drain the channel instead.
func (i *Interrupts) expire(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.pending[id]; !ok {
		return false
	}
	delete(i.pending, id)
	return true
}

// Get returns a pending interrupt by id.
func (i *Interrupts) Get(id string) (domain.PendingInterrupt, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.pending[id]
	if !ok {
		return domain.PendingInterrupt{}, false
	}
	return entry.info, true
}

// ForExecution lists pending interrupts for one execution, oldest first.
func (i *Interrupts) ForExecution(executionID string) []domain.PendingInterrupt {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []domain.PendingInterrupt
	for _, entry := range i.pending {
		if entry.info.ExecutionID == executionID {
			out = append(out, entry.info)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].RaisedAt.Before(out[b].RaisedAt) })
	return out
}

// List returns every pending interrupt, oldest first.
func (i *Interrupts) List() []domain.PendingInterrupt {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]domain.PendingInterrupt, 0, len(i.pending))
	for _, entry := range i.pending {
		out = append(out, entry.info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].RaisedAt.Before(out[b].RaisedAt) })
	return out
}
