package sandbox

import (
	"context"
	"time"

	"github.com/dop251/goja"
)

// timerLoop backs setTimeout and setInterval. Callbacks only run from
// runNext, on the goroutine that owns the VM.
type timerLoop struct {
	vm     *goja.Runtime
	budget *budget
	seq    int64
	timers map[int64]*timer
}

type timer struct {
	id       int64
	due      time.Time
	interval time.Duration
	repeat   bool
	fn       goja.Callable
	args     []goja.Value
}

func newTimerLoop(vm *goja.Runtime, b *budget) *timerLoop {
	return &timerLoop{vm: vm, budget: b, timers: map[int64]*timer{}}
}

func (l *timerLoop) install() error {
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":    func(call goja.FunctionCall) goja.Value { return l.schedule(call, false) },
		"setInterval":   func(call goja.FunctionCall) goja.Value { return l.schedule(call, true) },
		"clearTimeout":  l.clear,
		"clearInterval": l.clear,
	} {
		if err := l.vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (l *timerLoop) schedule(call goja.FunctionCall, repeat bool) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(l.vm.NewTypeError("callback must be a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	if repeat && delay < time.Millisecond {
		delay = time.Millisecond
	}
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}
	l.seq++
	t := &timer{id: l.seq, due: time.Now().Add(delay), interval: delay, repeat: repeat, fn: fn, args: args}
	l.timers[t.id] = t
	return l.vm.ToValue(t.id)
}

func (l *timerLoop) clear(call goja.FunctionCall) goja.Value {
	delete(l.timers, call.Argument(0).ToInteger())
	return goja.Undefined()
}

func (l *timerLoop) pending() int {
	return len(l.timers)
}

// runNext waits for the earliest timer and fires it. With no timers left
// it blocks until ctx ends, since nothing else can settle the program.
// The budget is paused while waiting.
func (l *timerLoop) runNext(ctx context.Context) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	next := l.earliest()
	if next.repeat {
		next.due = next.due.Add(next.interval)
	} else {
		delete(l.timers, next.id)
	}
	_, err := next.fn(goja.Undefined(), next.args...)
	return err
}

func (l *timerLoop) wait(ctx context.Context) error {
	l.budget.pause()
	defer l.budget.resume()
	next := l.earliest()
	if next == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	wait := time.Until(next.due)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *timerLoop) earliest() *timer {
	var best *timer
	for _, t := range l.timers {
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.id < best.id) {
			best = t
		}
	}
	return best
}
