// Package mock provides a deterministic in-memory world for tests. Ticks
// advance only inside AwaitTicks, optionally paced by TickDelay.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
)

type World struct {
	// TickDelay paces AwaitTicks; zero advances ticks instantly.
	TickDelay time.Duration
	// ObserveErr, when set, is returned by Observe.
	ObserveErr error
	// OnIntent runs after every recorded intent.
	OnIntent func(w *World, cmd string)

	mu       sync.Mutex
	snapshot world.Snapshot
	position world.Vec3
	moving   bool
	cells    map[string][]world.Cell
	goal     *world.Goal
	intents  []string
	tick     int64
	nextID   int
	subs     map[int]subscriber
	hooks    map[int]func(int64)
	done     chan struct{}
	closed   bool
}

type subscriber struct {
	kinds map[string]bool
	fn    func(world.Event)
}

func New() *World {
	return &World{
		snapshot: world.Snapshot{
			Voxels:    []string{"grass_block", "dirt"},
			Inventory: map[string]int{},
			Status: world.Status{
				Health:    20,
				Food:      20,
				Name:      "bot",
				Biome:     "plains",
				TimeOfDay: "day",
			},
		},
		cells: map[string][]world.Cell{},
		subs:  map[int]subscriber{},
		hooks: map[int]func(int64){},
		done:  make(chan struct{}),
	}
}

var _ ports.World = (*World)(nil)

func (w *World) SetSnapshot(s world.Snapshot) {
	w.mu.Lock()
	w.snapshot = s
	w.mu.Unlock()
}

func (w *World) SetPosition(p world.Vec3) {
	w.mu.Lock()
	w.position = p
	w.mu.Unlock()
}

func (w *World) SetMoving(moving bool) {
	w.mu.Lock()
	w.moving = moving
	w.mu.Unlock()
}

// SetCells fixes the answer of FindNearestMatchingCells for block.
func (w *World) SetCells(block string, cells []world.Cell) {
	w.mu.Lock()
	w.cells[block] = cells
	w.mu.Unlock()
}

func (w *World) Intents() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.intents...)
}

func (w *World) Goal() *world.Goal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.goal
}

// Emit delivers e to matching subscribers as if the environment reported it.
func (w *World) Emit(e world.Event) {
	w.mu.Lock()
	var fns []func(world.Event)
	for _, id := range w.sortedSubIDs() {
		s := w.subs[id]
		if s.kinds[e.Kind] {
			fns = append(fns, s.fn)
		}
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

// Kick ends the session as if the environment dropped the agent.
func (w *World) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.done)
	}
}

func (w *World) IssueIntent(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ports.ErrWorldClosed
	}
	w.intents = append(w.intents, cmd)
	hook := w.OnIntent
	w.mu.Unlock()

	trimmed := strings.TrimSpace(cmd)
	if trimmed != "" && trimmed != "noop" && !strings.HasPrefix(trimmed, "/") {
		w.Emit(world.ChatEvent(trimmed))
	}
	if hook != nil {
		hook(w, cmd)
	}
	return nil
}

func (w *World) AwaitTicks(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if w.TickDelay > 0 {
			t := time.NewTimer(w.TickDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-w.done:
				t.Stop()
				return ports.ErrWorldClosed
			case <-t.C:
			}
		} else {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case <-w.done:
				return ports.ErrWorldClosed
			default:
			}
		}
		w.Advance()
	}
	return nil
}

// Advance moves the clock one tick and runs tick hooks.
func (w *World) Advance() {
	w.mu.Lock()
	w.tick++
	tick := w.tick
	hooks := make([]func(int64), 0, len(w.hooks))
	for _, fn := range w.hooks {
		hooks = append(hooks, fn)
	}
	w.mu.Unlock()
	for _, fn := range hooks {
		fn(tick)
	}
}

func (w *World) Observe(ctx context.Context) (world.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return world.Snapshot{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return world.Snapshot{}, ports.ErrWorldClosed
	}
	if w.ObserveErr != nil {
		return world.Snapshot{}, w.ObserveErr
	}
	s := w.snapshot
	s.Status.Position = w.position
	inv := make(map[string]int, len(s.Inventory))
	for k, v := range s.Inventory {
		inv[k] = v
	}
	s.Inventory = inv
	return s, nil
}

func (w *World) Subscribe(kinds []string, fn func(world.Event)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	w.nextID++
	id := w.nextID
	w.subs[id] = subscriber{kinds: set, fn: fn}
	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

func (w *World) CurrentPosition() world.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position
}

func (w *World) IsMoving() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.moving
}

func (w *World) FindNearestMatchingCells(_ context.Context, match world.Match, _ int, limit int) ([]world.Cell, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []world.Cell
	for _, name := range match.Names {
		out = append(out, w.cells[name]...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (w *World) SetGoal(_ context.Context, goal *world.Goal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.goal = goal
	w.moving = goal != nil
	return nil
}

func (w *World) OnTick(fn func(int64)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id := w.nextID
	w.hooks[id] = fn
	return func() {
		w.mu.Lock()
		delete(w.hooks, id)
		w.mu.Unlock()
	}
}

func (w *World) Tick() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

func (w *World) Done() <-chan struct{} {
	return w.done
}

func (w *World) Close() error {
	w.Kick()
	return nil
}

func (w *World) sortedSubIDs() []int {
	ids := make([]int, 0, len(w.subs))
	for id := range w.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Dialer hands out a prepared world, or fails with Err.
type Dialer struct {
	World *World
	Err   error
	Dials int
	mu    sync.Mutex
}

func (d *Dialer) Dial(ctx context.Context, _ world.StartOptions) (ports.World, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dials++
	if d.Err != nil {
		return nil, d.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.World == nil {
		d.World = New()
	}
	return d.World, nil
}
