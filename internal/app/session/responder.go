package session

import (
	"sync/atomic"

	"agentbridge/internal/domain/world"
)

// responder delivers exactly one response per step, whichever path
// completes first.
type responder struct {
	fired atomic.Bool
	ch    chan []world.Event
	sent  atomic.Pointer[[]world.Event]
}

func newResponder() *responder {
	return &responder{ch: make(chan []world.Event, 1)}
}

// send reports whether events became the response.
func (r *responder) send(events []world.Event) bool {
	if !r.fired.CompareAndSwap(false, true) {
		return false
	}
	r.sent.Store(&events)
	r.ch <- events
	return true
}

func (r *responder) done() <-chan []world.Event {
	return r.ch
}

// response returns what was sent, or nil before the first send.
func (r *responder) response() []world.Event {
	if p := r.sent.Load(); p != nil {
		return *p
	}
	return nil
}
