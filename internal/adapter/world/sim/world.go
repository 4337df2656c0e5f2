// Package sim is an in-process voxel world. It implements the world port
// with a real tick pulse, a small command vocabulary and straight-line
// movement toward goals.
package sim

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
)

const (
	DefaultTickRate = 50 * time.Millisecond
	walkSpeed       = 0.2
	voxelRadius     = 4
	stackSize       = 64
	maxScanRadius   = 32
)

type Config struct {
	TickRate time.Duration
	Seed     int64
	Spawn    world.Vec3
	Clock    world.Clock
	Name     string
}

func DefaultConfig() Config {
	return Config{
		TickRate: DefaultTickRate,
		Spawn:    world.Vec3{X: 0.5, Y: SurfaceY + 1, Z: 0.5},
		Clock:    world.DefaultClock(),
		Name:     "bot",
	}
}

type World struct {
	cfg     Config
	terrain *terrain

	mu        sync.Mutex
	tick      int64
	elapsed   int64
	frozen    bool
	paused    bool
	pos       world.Vec3
	velocity  world.Vec3
	goal      *world.Goal
	health    float64
	food      float64
	inventory map[string]int
	equipment [6]*string
	gamerules map[string]string
	records   []string
	seen      map[string]bool
	rng       *rand.Rand
	tickCh    chan struct{}
	nextID    int
	subs      map[int]subscriber
	hooks     map[int]func(int64)
	closed    bool
	done      chan struct{}
	stop      chan struct{}
}

type subscriber struct {
	kinds map[string]bool
	fn    func(world.Event)
}

var _ ports.World = (*World)(nil)

func New(cfg Config) *World {
	def := DefaultConfig()
	if cfg.TickRate <= 0 {
		cfg.TickRate = def.TickRate
	}
	if cfg.Spawn == (world.Vec3{}) {
		cfg.Spawn = def.Spawn
	}
	if cfg.Clock == (world.Clock{}) {
		cfg.Clock = def.Clock
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	seed := uint64(cfg.Seed)
	return &World{
		cfg:       cfg,
		terrain:   newTerrain(cfg.Seed),
		pos:       cfg.Spawn,
		health:    20,
		food:      20,
		inventory: map[string]int{},
		gamerules: map[string]string{"doTileDrops": "true", "keepInventory": "false", "doDaylightCycle": "true"},
		seen:      map[string]bool{},
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		tickCh:    make(chan struct{}),
		subs:      map[int]subscriber{},
		hooks:     map[int]func(int64){},
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

// Run drives the tick pulse until the world is closed.
func (w *World) Run() {
	ticker := time.NewTicker(w.cfg.TickRate)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.step()
		}
	}
}

func (w *World) step() {
	w.mu.Lock()
	w.tick++
	tick := w.tick
	if !w.frozen && !w.paused {
		w.elapsed++
		w.moveLocked()
	}
	close(w.tickCh)
	w.tickCh = make(chan struct{})
	hooks := make([]func(int64), 0, len(w.hooks))
	ids := make([]int, 0, len(w.hooks))
	for id := range w.hooks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		hooks = append(hooks, w.hooks[id])
	}
	w.mu.Unlock()
	for _, fn := range hooks {
		fn(tick)
	}
}

// moveLocked advances the agent toward its goal. A solid cell in the way
// blocks the agent while it keeps trying.
func (w *World) moveLocked() {
	w.velocity = world.Vec3{}
	if w.goal == nil {
		return
	}
	if w.goal.Reached(w.pos) {
		w.goal = nil
		return
	}
	target := w.goal.Target(w.pos)
	delta := target.Sub(w.pos)
	dist := delta.Len()
	if dist == 0 {
		w.goal = nil
		return
	}
	stride := math.Min(walkSpeed, dist)
	next := w.pos.Add(delta.Scale(stride / dist))
	if w.blockedLocked(next) {
		return
	}
	w.velocity = next.Sub(w.pos)
	w.pos = next
}

func (w *World) blockedLocked(p world.Vec3) bool {
	feet := p.Cell()
	head := world.Cell{X: feet.X, Y: feet.Y + 1, Z: feet.Z}
	return world.Solid(w.terrain.blockAt(feet)) || world.Solid(w.terrain.blockAt(head))
}

func (w *World) AwaitTicks(ctx context.Context, n int) error {
	w.mu.Lock()
	target := w.tick + int64(n)
	w.mu.Unlock()
	for {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return ports.ErrWorldClosed
		}
		if w.tick >= target {
			w.mu.Unlock()
			return nil
		}
		ch := w.tickCh
		w.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return ports.ErrWorldClosed
		case <-ch:
		}
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
	voxels := w.voxelsLocked()
	for _, v := range voxels {
		if !w.seen[v] {
			w.seen[v] = true
			w.records = append(w.records, v)
		}
	}
	phase, _ := w.cfg.Clock.PhaseAt(w.elapsed)
	feet := w.pos.Cell()
	below := world.Cell{X: feet.X, Y: feet.Y - 1, Z: feet.Z}
	inv := make(map[string]int, len(w.inventory))
	for k, v := range w.inventory {
		inv[k] = v
	}
	return world.Snapshot{
		Voxels: voxels,
		Status: world.Status{
			Health:        w.health,
			Food:          w.food,
			Saturation:    5,
			Oxygen:        20,
			Position:      w.pos,
			Velocity:      w.velocity,
			OnGround:      world.Solid(w.terrain.blockAt(below)),
			Equipment:     w.equipment,
			Name:          w.cfg.Name,
			IsInWater:     w.terrain.blockAt(feet) == "water",
			Biome:         w.terrain.biomeAt(feet.X, feet.Z),
			Entities:      map[string]float64{},
			TimeOfDay:     string(phase),
			InventoryUsed: slotsUsed(w.inventory),
			ElapsedTime:   w.elapsed,
		},
		Inventory:    inv,
		NearbyChests: map[string]any{},
		BlockRecords: append([]string(nil), w.records...),
	}, nil
}

func (w *World) voxelsLocked() []string {
	c := w.pos.Cell()
	set := map[string]bool{}
	for dx := -voxelRadius; dx <= voxelRadius; dx++ {
		for dy := -voxelRadius; dy <= voxelRadius; dy++ {
			for dz := -voxelRadius; dz <= voxelRadius; dz++ {
				b := w.terrain.blockAt(world.Cell{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz})
				if b != world.BlockAir {
					set[b] = true
				}
			}
		}
	}
	out := make([]string, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

func slotsUsed(inv map[string]int) int {
	n := 0
	for _, count := range inv {
		n += (count + stackSize - 1) / stackSize
	}
	return n
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

func (w *World) emit(events ...world.Event) {
	if len(events) == 0 {
		return
	}
	w.mu.Lock()
	ids := make([]int, 0, len(w.subs))
	for id := range w.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, w.subs[id])
	}
	w.mu.Unlock()
	for _, e := range events {
		for _, s := range subs {
			if s.kinds[e.Kind] {
				s.fn(e)
			}
		}
	}
}

func (w *World) CurrentPosition() world.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

func (w *World) IsMoving() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.goal != nil
}

// FindNearestMatchingCells scans the cube around the agent. Blocks the
// generator never produces are looked up among edits only, so large radii
// stay cheap for placed fixtures.
func (w *World) FindNearestMatchingCells(ctx context.Context, match world.Match, radius, limit int) ([]world.Cell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pos := w.CurrentPosition()
	center := pos.Cell()
	var out []world.Cell
	if !generatable(match) {
		out = w.terrain.editsMatching(match, center, radius)
	} else {
		if radius > maxScanRadius {
			radius = maxScanRadius
		}
		for dx := -radius; dx <= radius; dx++ {
			for dy := -radius; dy <= radius; dy++ {
				for dz := -radius; dz <= radius; dz++ {
					c := world.Cell{X: center.X + dx, Y: center.Y + dy, Z: center.Z + dz}
					if match.Matches(w.terrain.blockAt(c)) {
						out = append(out, c)
					}
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Center().DistanceTo(pos) < out[j].Center().DistanceTo(pos)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (w *World) SetGoal(ctx context.Context, goal *world.Goal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if goal != nil {
		if err := goal.Validate(); err != nil {
			return err
		}
		g := *goal
		goal = &g
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ports.ErrWorldClosed
	}
	w.goal = goal
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

func (w *World) Frozen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frozen
}

func (w *World) Done() <-chan struct{} {
	return w.done
}

// Kick drops the agent as a server would.
func (w *World) Kick() {
	w.Close()
}

func (w *World) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.stop)
	close(w.done)
	return nil
}
