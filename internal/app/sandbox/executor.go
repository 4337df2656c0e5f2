// Package sandbox evaluates submissions in a fresh JavaScript VM that only
// sees the bindings installed here.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/execution"

	"github.com/dop251/goja"
)

const DefaultHardCap = 3000 * time.Millisecond

var errHardCap = errors.New("sandbox: hard cap exceeded")

type Config struct {
	// HardCap bounds the time one evaluation spends running script code.
	// Waits on the world and on pending timers are not charged; the
	// caller's context bounds those.
	HardCap time.Duration
}

type Executor struct {
	hardCap time.Duration
	library ports.ProgramLibrary
}

// NewExecutor builds an executor. library may be nil, in which case the
// library binding is not installed.
func NewExecutor(cfg Config, library ports.ProgramLibrary) *Executor {
	if cfg.HardCap <= 0 {
		cfg.HardCap = DefaultHardCap
	}
	return &Executor{hardCap: cfg.HardCap, library: library}
}

func (e *Executor) HardCap() time.Duration {
	return e.hardCap
}

// Execute runs s against w. The hard cap and ctx compose so that whichever
// fires first stops the VM; intents already issued stay issued. The hard cap
// only runs while script code does.
func (e *Executor) Execute(ctx context.Context, w ports.World, s execution.Submission) execution.Outcome {
	inner, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	clock := newBudget(e.hardCap, func() { cancel(errHardCap) })
	defer clock.pause()

	vm := goja.New()
	timers := newTimerLoop(vm, clock)
	h := &host{ctx: inner, vm: vm, world: w, library: e.library, budget: clock}
	if err := h.install(timers); err != nil {
		return execution.Failed(execution.Fault{Message: "Evaluation error: " + err.Error()})
	}

	stop := context.AfterFunc(inner, func() {
		vm.Interrupt(context.Cause(inner))
	})
	defer stop()

	prg, err := goja.Compile(execution.UnitName, wrapUnit(s.Unit()), false)
	if err != nil {
		return execution.Failed(compileFault(err))
	}
	clock.resume()
	v, err := vm.RunProgram(prg)
	if err != nil {
		return e.classify(inner, err)
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return execution.Success()
	}
	for {
		switch p.State() {
		case goja.PromiseStateFulfilled:
			return execution.Success()
		case goja.PromiseStateRejected:
			if out, timedOut := e.timedOut(inner); timedOut {
				return out
			}
			return execution.Failed(runtimeFault(p.Result()))
		}
		if err := timers.runNext(inner); err != nil {
			return e.classify(inner, err)
		}
	}
}

func (e *Executor) classify(ctx context.Context, err error) execution.Outcome {
	if out, timedOut := e.timedOut(ctx); timedOut {
		return out
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return execution.Failed(runtimeFault(ex.Value()))
	}
	return execution.Failed(execution.Fault{Message: "Evaluation error: " + err.Error()})
}

func (e *Executor) timedOut(ctx context.Context) (execution.Outcome, bool) {
	if ctx.Err() == nil {
		return execution.Outcome{}, false
	}
	cause := context.Cause(ctx)
	if errors.Is(cause, errHardCap) {
		return execution.TimedOut(execution.ScopeInner, fmt.Sprintf("TimeoutError: user code exceeded %d ms", e.hardCap.Milliseconds())), true
	}
	return execution.TimedOut(execution.ScopeOuter, "TimeoutError: execution cancelled: "+cause.Error()), true
}

// wrapUnit keeps the first unit line on the first program line so stack
// positions need no adjustment.
func wrapUnit(unit string) string {
	return "(async () => {" + unit + "\n})()"
}

func runtimeFault(v goja.Value) execution.Fault {
	if v == nil {
		return execution.Fault{Message: "Evaluation error: Runtime error: undefined"}
	}
	msg := v.String()
	var frames []execution.Frame
	if obj, ok := v.(*goja.Object); ok {
		if m := prop(obj, "message"); !goja.IsUndefined(m) {
			msg = m.String()
		}
		if st := prop(obj, "stack"); !goja.IsUndefined(st) {
			frames = parseStack(st.String())
		}
	}
	return execution.Fault{Message: "Evaluation error: Runtime error: " + msg, Frames: frames}
}

func compileFault(err error) execution.Fault {
	f := execution.Fault{Message: "Evaluation error: " + err.Error()}
	if fr, ok := parseSyntaxPosition(err.Error()); ok {
		f.Frames = []execution.Frame{fr}
	}
	return f
}
