// Package observation accumulates the events an environment reports while a
// submission runs.
package observation

import (
	"sync"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
)

// Aggregator keeps events in arrival order until they are drained. It is
// safe for concurrent use; world callbacks append from their own goroutine.
type Aggregator struct {
	mu     sync.Mutex
	events []world.Event
	unsub  func()
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Attach subscribes to every event kind of w, replacing a previous world.
func (a *Aggregator) Attach(w ports.World) {
	cancel := w.Subscribe(world.EventKinds, a.Append)
	a.mu.Lock()
	prev := a.unsub
	a.unsub = cancel
	a.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Detach stops listening to the attached world, if any.
func (a *Aggregator) Detach() {
	a.mu.Lock()
	prev := a.unsub
	a.unsub = nil
	a.mu.Unlock()
	if prev != nil {
		prev()
	}
}

func (a *Aggregator) Append(e world.Event) {
	a.mu.Lock()
	a.events = append(a.events, e)
	a.mu.Unlock()
}

// Reset drops everything collected so far.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.events = nil
	a.mu.Unlock()
}

// Drain returns the collected events and clears the log.
func (a *Aggregator) Drain() []world.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.events
	a.events = nil
	if out == nil {
		out = []world.Event{}
	}
	return out
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}
