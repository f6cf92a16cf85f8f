package engine

import (
	"context"
	"sync"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Broadcaster fans execution events out to subscribers. Each execution has
// one stream: an append-only history plus live subscribers. Delivery is
// ordered and exactly-once per subscriber — a subscriber reads the history
// through a cursor, so a slow consumer delays only itself and never drops or
// reorders events. The stream closes at the first terminal event.
type Broadcaster struct {
	mu      sync.Mutex
	streams map[string]*stream
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{streams: make(map[string]*stream)}
}

type stream struct {
	mu     sync.Mutex
	events []domain.Event
	subs   map[int]*subscriber
	nextID int
	done   bool
}

type subscriber struct {
	ch     chan domain.Event
	notify chan struct{}
}

// Open creates the stream for an execution. Opening an existing stream is a
// no-op.
func (b *Broadcaster) Open(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[executionID]; !ok {
		b.streams[executionID] = &stream{subs: make(map[int]*subscriber)}
	}
}

// Publish appends an event to the execution's stream, assigning its sequence
// number, and wakes subscribers. Events published after the terminal event
// are dropped; the returned event carries the assigned sequence.
func (b *Broadcaster) Publish(executionID string, ev domain.Event) domain.Event {
	b.mu.Lock()
	st, ok := b.streams[executionID]
	b.mu.Unlock()
	if !ok {
		return ev
	}

	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return ev
	}
	ev.ExecutionID = executionID
	ev.Sequence = len(st.events) + 1
	st.events = append(st.events, ev)
	if ev.Type.Terminal() {
		st.done = true
	}
	subs := make([]*subscriber, 0, len(st.subs))
	for _, sub := range st.subs {
		subs = append(subs, sub)
	}
	st.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
	return ev
}

// Subscribe attaches a consumer to an execution's stream. The returned
// channel first replays history in order, then delivers live events, and is
// closed after the terminal event or when ctx ends. Unknown executions
// return ErrExecutionNotFound.
func (b *Broadcaster) Subscribe(ctx context.Context, executionID string) (<-chan domain.Event, error) {
	b.mu.Lock()
	st, ok := b.streams[executionID]
	b.mu.Unlock()
	if !ok {
		return nil, sserrors.Wrapf(sserrors.ErrExecutionNotFound, "no event stream for %s", executionID)
	}

	sub := &subscriber{
		ch:     make(chan domain.Event),
		notify: make(chan struct{}, 1),
	}

	st.mu.Lock()
	id := st.nextID
	st.nextID++
	st.subs[id] = sub
	st.mu.Unlock()

	go func() {
		defer func() {
			st.mu.Lock()
			delete(st.subs, id)
			st.mu.Unlock()
			close(sub.ch)
		}()

		cursor := 0
		for {
			st.mu.Lock()
			events := st.events
			done := st.done
			st.mu.Unlock()

			for cursor < len(events) {
				select {
				case sub.ch <- events[cursor]:
					cursor++
				case <-ctx.Done():
					return
				}
			}

			// done was read together with events, so the drained history is
			// final: nothing publishes after the terminal event.
			if done {
				return
			}

			select {
			case <-sub.notify:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub.ch, nil
}

// Evict drops a terminated execution's stream so a long-lived process does
// not hold one history buffer per execution forever. Only done streams are
// evicted; subscribers already attached keep their stream reference and
// drain normally, and later consumers replay from the flushed event log.
func (b *Broadcaster) Evict(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[executionID]
	if !ok {
		return
	}
	st.mu.Lock()
	done := st.done
	st.mu.Unlock()
	if done {
		delete(b.streams, executionID)
	}
}

// History returns a copy of every event published so far.
func (b *Broadcaster) History(executionID string) ([]domain.Event, bool) {
	b.mu.Lock()
	st, ok := b.streams[executionID]
	b.mu.Unlock()
	if !ok {
		return nil, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]domain.Event, len(st.events))
	copy(out, st.events)
	return out, true
}

// Sequence returns the last assigned sequence number for an execution.
func (b *Broadcaster) Sequence(executionID string) int {
	b.mu.Lock()
	st, ok := b.streams[executionID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.events)
}
