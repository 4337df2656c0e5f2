package sandbox

import (
	"sync"
	"time"
)

// budget is a pausable countdown. It runs only while the VM executes
// script code; host waits on the world and idle timer waits are paused.
type budget struct {
	mu     sync.Mutex
	left   time.Duration
	since  time.Time
	timer  *time.Timer
	paused int
	expire func()
}

func newBudget(d time.Duration, expire func()) *budget {
	return &budget{left: d, paused: 1, expire: expire}
}

// resume undoes one pause and restarts the countdown when none is left.
func (b *budget) resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused > 0 {
		b.paused--
	}
	if b.paused > 0 || b.timer != nil {
		return
	}
	if b.left <= 0 {
		go b.expire()
		return
	}
	b.since = time.Now()
	b.timer = time.AfterFunc(b.left, b.expire)
}

// pause stops the countdown; pauses nest.
func (b *budget) pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused++
	if b.timer == nil {
		return
	}
	b.timer.Stop()
	b.timer = nil
	b.left -= time.Since(b.since)
}

// remaining is the unspent running time.
func (b *budget) remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		return b.left - time.Since(b.since)
	}
	return b.left
}
