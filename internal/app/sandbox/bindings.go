package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/dop251/goja"
)

const (
	defaultFindRadius = 32
	defaultFindLimit  = 1
)

var errGoalUnreachable = errors.New("Took to long to decide path to goal!")

// host owns the bindings of one evaluation. Every binding runs on the VM
// goroutine and blocks it while waiting on the world.
type host struct {
	ctx     context.Context
	vm      *goja.Runtime
	world   ports.World
	library ports.ProgramLibrary
	budget  *budget
}

func (h *host) install(timers *timerLoop) error {
	if err := timers.install(); err != nil {
		return err
	}
	if err := h.vm.Set("world", h.worldObject()); err != nil {
		return err
	}
	if err := h.vm.Set("console", h.consoleObject()); err != nil {
		return err
	}
	if err := h.vm.Set("Vec3", func(call goja.ConstructorCall) *goja.Object {
		return h.vec(world.Vec3{
			X: call.Argument(0).ToFloat(),
			Y: call.Argument(1).ToFloat(),
			Z: call.Argument(2).ToFloat(),
		})
	}); err != nil {
		return err
	}
	goals := map[string]world.GoalKind{
		"GoalBlock":      world.GoalBlock,
		"GoalNear":       world.GoalNear,
		"GoalXZ":         world.GoalXZ,
		"GoalNearXZ":     world.GoalNearXZ,
		"GoalY":          world.GoalY,
		"GoalGetToBlock": world.GoalGetToBlock,
	}
	for name, kind := range goals {
		if err := h.vm.Set(name, h.goalConstructor(kind)); err != nil {
			return err
		}
	}
	if h.library != nil {
		lib := h.vm.NewObject()
		if err := lib.Set("load", h.loadLibrary); err != nil {
			return err
		}
		if err := h.vm.Set("library", lib); err != nil {
			return err
		}
	}
	return nil
}

func (h *host) throw(err error) {
	panic(h.vm.NewGoError(err))
}

// blocking runs fn with the hard cap paused.
func (h *host) blocking(fn func() error) error {
	h.budget.pause()
	defer h.budget.resume()
	return fn()
}

func (h *host) resolved(v any) goja.Value {
	p, resolve, _ := h.vm.NewPromise()
	resolve(v)
	return h.vm.ToValue(p)
}

func (h *host) worldObject() *goja.Object {
	obj := h.vm.NewObject()
	methods := map[string]func(goja.FunctionCall) goja.Value{
		"issueIntent": h.issueIntent,
		"chat":        h.issueIntent,
		"waitTicks":   h.waitTicks,
		"position": func(goja.FunctionCall) goja.Value {
			return h.vec(h.world.CurrentPosition())
		},
		"isMoving": func(goja.FunctionCall) goja.Value {
			return h.vm.ToValue(h.world.IsMoving())
		},
		"setGoal":    h.setGoal,
		"goto":       h.gotoGoal,
		"stop":       h.stop,
		"observe":    h.observe,
		"inventory":  h.inventory,
		"findBlocks": h.findBlocks,
	}
	for name, fn := range methods {
		_ = obj.Set(name, fn)
	}
	return obj
}

func (h *host) issueIntent(call goja.FunctionCall) goja.Value {
	cmd := call.Argument(0).String()
	if err := h.blocking(func() error { return h.world.IssueIntent(h.ctx, cmd) }); err != nil {
		h.throw(err)
	}
	return h.resolved(nil)
}

func (h *host) waitTicks(call goja.FunctionCall) goja.Value {
	n := int(call.Argument(0).ToInteger())
	if err := h.blocking(func() error { return h.world.AwaitTicks(h.ctx, n) }); err != nil {
		h.throw(err)
	}
	return h.resolved(nil)
}

func (h *host) setGoal(call goja.FunctionCall) goja.Value {
	arg := call.Argument(0)
	var goal *world.Goal
	if !goja.IsUndefined(arg) && !goja.IsNull(arg) {
		g := h.goalFrom(arg)
		goal = &g
	}
	if err := h.blocking(func() error { return h.world.SetGoal(h.ctx, goal) }); err != nil {
		h.throw(err)
	}
	return goja.Undefined()
}

// gotoGoal sets the goal and waits until the agent stops moving.
func (h *host) gotoGoal(call goja.FunctionCall) goja.Value {
	goal := h.goalFrom(call.Argument(0))
	err := h.blocking(func() error {
		if err := h.world.SetGoal(h.ctx, &goal); err != nil {
			return err
		}
		for h.world.IsMoving() {
			if err := h.world.AwaitTicks(h.ctx, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.throw(err)
	}
	if !goal.Reached(h.world.CurrentPosition()) {
		h.throw(errGoalUnreachable)
	}
	return h.resolved(nil)
}

func (h *host) stop(goja.FunctionCall) goja.Value {
	if err := h.blocking(func() error { return h.world.SetGoal(h.ctx, nil) }); err != nil {
		h.throw(err)
	}
	return goja.Undefined()
}

func (h *host) observe(goja.FunctionCall) goja.Value {
	snap, err := h.snapshot()
	if err != nil {
		h.throw(err)
	}
	return h.resolved(h.plain(snap))
}

func (h *host) snapshot() (world.Snapshot, error) {
	var snap world.Snapshot
	err := h.blocking(func() (err error) {
		snap, err = h.world.Observe(h.ctx)
		return err
	})
	return snap, err
}

func (h *host) inventory(goja.FunctionCall) goja.Value {
	snap, err := h.snapshot()
	if err != nil {
		h.throw(err)
	}
	inv := make(map[string]any, len(snap.Inventory))
	for k, v := range snap.Inventory {
		inv[k] = v
	}
	return h.resolved(inv)
}

// findBlocks(name | [names], radius?, limit?)
func (h *host) findBlocks(call goja.FunctionCall) goja.Value {
	var names []string
	switch v := call.Argument(0).Export().(type) {
	case string:
		names = []string{v}
	case []any:
		for _, n := range v {
			names = append(names, fmt.Sprint(n))
		}
	default:
		panic(h.vm.NewTypeError("findBlocks expects a block name or a list of names"))
	}
	radius, limit := defaultFindRadius, defaultFindLimit
	if a := call.Argument(1); !goja.IsUndefined(a) {
		radius = int(a.ToInteger())
	}
	if a := call.Argument(2); !goja.IsUndefined(a) {
		limit = int(a.ToInteger())
	}
	var cells []world.Cell
	err := h.blocking(func() (err error) {
		cells, err = h.world.FindNearestMatchingCells(h.ctx, world.MatchNames(names...), radius, limit)
		return err
	})
	if err != nil {
		h.throw(err)
	}
	out := make([]any, 0, len(cells))
	for _, c := range cells {
		out = append(out, h.vec(c.Vec()))
	}
	return h.resolved(h.vm.NewArray(out...))
}

func (h *host) loadLibrary(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	var (
		path string
		src  []byte
	)
	err := h.blocking(func() (err error) {
		path, src, err = h.library.Resolve(h.ctx, name)
		return err
	})
	if err != nil {
		h.throw(fmt.Errorf("load %s: %w", name, err))
	}
	prg, err := goja.Compile(path, string(src), false)
	if err != nil {
		h.throw(fmt.Errorf("load %s: %w", name, err))
	}
	if _, err := h.vm.RunProgram(prg); err != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			panic(ex.Value())
		}
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			panic(ie)
		}
		h.throw(err)
	}
	return goja.Undefined()
}

func (h *host) consoleObject() *goja.Object {
	obj := h.vm.NewObject()
	logf := func(level func(context.Context, string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, a.String())
			}
			level(h.ctx, "[sandbox] %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}
	_ = obj.Set("log", logf(hlog.CtxInfof))
	_ = obj.Set("info", logf(hlog.CtxInfof))
	_ = obj.Set("debug", logf(hlog.CtxDebugf))
	_ = obj.Set("warn", logf(hlog.CtxWarnf))
	_ = obj.Set("error", logf(hlog.CtxErrorf))
	return obj
}

func (h *host) vec(v world.Vec3) *goja.Object {
	obj := h.vm.NewObject()
	_ = obj.Set("x", v.X)
	_ = obj.Set("y", v.Y)
	_ = obj.Set("z", v.Z)
	_ = obj.Set("offset", func(call goja.FunctionCall) goja.Value {
		return h.vec(v.Add(world.Vec3{
			X: call.Argument(0).ToFloat(),
			Y: call.Argument(1).ToFloat(),
			Z: call.Argument(2).ToFloat(),
		}))
	})
	_ = obj.Set("distanceTo", func(call goja.FunctionCall) goja.Value {
		return h.vm.ToValue(v.DistanceTo(h.vecFrom(call.Argument(0))))
	})
	_ = obj.Set("floored", func(goja.FunctionCall) goja.Value {
		return h.vec(v.Floored())
	})
	_ = obj.Set("toString", func(goja.FunctionCall) goja.Value {
		return h.vm.ToValue(v.String())
	})
	return obj
}

func (h *host) vecFrom(val goja.Value) world.Vec3 {
	obj, ok := val.(*goja.Object)
	if !ok {
		panic(h.vm.NewTypeError("expected a Vec3"))
	}
	return world.Vec3{
		X: prop(obj, "x").ToFloat(),
		Y: prop(obj, "y").ToFloat(),
		Z: prop(obj, "z").ToFloat(),
	}
}

// goalConstructor follows the argument order of the pathfinder goals:
// (x, y, z), (x, y, z, range), (x, z), (x, z, range), (y).
func (h *host) goalConstructor(kind world.GoalKind) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		arg := func(i int) float64 { return call.Argument(i).ToFloat() }
		g := world.Goal{Kind: kind}
		switch kind {
		case world.GoalBlock, world.GoalGetToBlock:
			g.X, g.Y, g.Z = arg(0), arg(1), arg(2)
		case world.GoalNear:
			g.X, g.Y, g.Z, g.Range = arg(0), arg(1), arg(2), arg(3)
		case world.GoalXZ:
			g.X, g.Z = arg(0), arg(1)
		case world.GoalNearXZ:
			g.X, g.Z, g.Range = arg(0), arg(1), arg(2)
		case world.GoalY:
			g.Y = arg(0)
		}
		if err := g.Validate(); err != nil {
			panic(h.vm.NewTypeError(err.Error()))
		}
		obj := h.vm.NewObject()
		_ = obj.Set("kind", string(g.Kind))
		_ = obj.Set("x", g.X)
		_ = obj.Set("y", g.Y)
		_ = obj.Set("z", g.Z)
		_ = obj.Set("range", g.Range)
		return obj
	}
}

func (h *host) goalFrom(val goja.Value) world.Goal {
	obj, ok := val.(*goja.Object)
	if !ok {
		panic(h.vm.NewTypeError("expected a goal"))
	}
	g := world.Goal{
		Kind:  world.GoalKind(prop(obj, "kind").String()),
		X:     prop(obj, "x").ToFloat(),
		Y:     prop(obj, "y").ToFloat(),
		Z:     prop(obj, "z").ToFloat(),
		Range: prop(obj, "range").ToFloat(),
	}
	if err := g.Validate(); err != nil {
		panic(h.vm.NewTypeError(err.Error()))
	}
	return g
}

// plain converts v to JSON-shaped maps so scripts see the wire field names.
func (h *host) plain(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		h.throw(err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		h.throw(err)
	}
	return out
}

func prop(obj *goja.Object, name string) goja.Value {
	if v := obj.Get(name); v != nil {
		return v
	}
	return goja.Undefined()
}
