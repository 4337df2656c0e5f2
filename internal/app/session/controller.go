// Package session owns the single world session: starting and stopping it,
// and running step submissions against it one at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"agentbridge/internal/app/observation"
	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/execution"
	"agentbridge/internal/domain/world"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/google/uuid"
)

type Executor interface {
	Execute(ctx context.Context, w ports.World, s execution.Submission) execution.Outcome
}

type Translator interface {
	Translate(f execution.Fault, s execution.Submission) string
}

type Liveness interface {
	Arm()
	Disarm()
	Bind(ctx context.Context, w ports.World) (cancel func())
}

type Config struct {
	// OuterDeadline bounds a whole step, normalization excluded.
	OuterDeadline  time.Duration
	SpawnTicks     int
	FixtureRadius  int
	ChestThreshold int
}

func DefaultConfig() Config {
	return Config{
		OuterDeadline:  10 * time.Minute,
		SpawnTicks:     10,
		FixtureRadius:  128,
		ChestThreshold: 32,
	}
}

// Deps are the collaborators of a Controller. Runs, Metrics and
// Transcript are optional.
type Deps struct {
	Dialer     ports.WorldDialer
	Executor   Executor
	Translator Translator
	Liveness   Liveness
	Runs       ports.RunRepository
	Metrics    ports.StepMetrics
	Transcript ports.Transcript
	Now        func() time.Time
}

var (
	errRestart       = errors.New("session restarted")
	errStopped       = errors.New("session stopped")
	errWorldLost     = errors.New("world session lost")
	errOuterDeadline = errors.New("outer deadline exceeded")
)

type Controller struct {
	cfg  Config
	deps Deps

	mu    sync.Mutex
	state State
	gen   uint64
	sess  *session
	last  string
}

type session struct {
	id         string
	gen        uint64
	world      ports.World
	opts       world.StartOptions
	hadPickaxe bool
	events     *observation.Aggregator
	ctx        context.Context
	cancel     context.CancelCauseFunc
	unbind     func()
}

func NewController(cfg Config, deps Deps) *Controller {
	def := DefaultConfig()
	if cfg.OuterDeadline <= 0 {
		cfg.OuterDeadline = def.OuterDeadline
	}
	if cfg.SpawnTicks <= 0 {
		cfg.SpawnTicks = def.SpawnTicks
	}
	if cfg.FixtureRadius <= 0 {
		cfg.FixtureRadius = def.FixtureRadius
	}
	if cfg.ChestThreshold <= 0 {
		cfg.ChestThreshold = def.ChestThreshold
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller{cfg: cfg, deps: deps}
}

// Status describes the session for operators.
type Status struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Tick      int64  `json:"tick"`
	LastRunID string `json:"last_run_id,omitempty"`
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state.String(), LastRunID: c.last}
	if c.sess != nil {
		st.SessionID = c.sess.id
		st.Tick = c.sess.world.Tick()
	}
	return st
}

// Start tears down any existing session, connects a new agent and brings
// it to a known state. It returns the snapshot entries of the fresh agent.
func (c *Controller) Start(ctx context.Context, opts world.StartOptions) ([]world.Event, error) {
	if opts.WaitTicks < 0 || len(opts.Equipment) > len(world.EquipmentSlots) {
		return nil, ErrInvalidRequest
	}
	c.mu.Lock()
	if c.state == Connecting {
		c.mu.Unlock()
		return nil, ErrSessionBusy
	}
	if c.sess != nil {
		hlog.CtxInfof(ctx, "session %s: restarting", c.sess.id)
		c.teardownLocked(errRestart)
	}
	c.gen++
	gen := c.gen
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	w, err := c.deps.Dialer.Dial(ctx, opts)
	if err != nil {
		c.abortStart(gen)
		hlog.CtxErrorf(ctx, "session: dial failed: %v", err)
		return nil, &ConnectionError{Cause: err}
	}
	hadPickaxe, err := c.prepare(ctx, w, opts)
	if err != nil {
		_ = w.Close()
		c.abortStart(gen)
		hlog.CtxErrorf(ctx, "session: spawn sequence failed: %v", err)
		return nil, &ConnectionError{Cause: err}
	}

	sctx, cancel := context.WithCancelCause(context.Background())
	s := &session{
		id:         uuid.NewString(),
		gen:        gen,
		world:      w,
		opts:       opts,
		hadPickaxe: hadPickaxe,
		events:     observation.NewAggregator(),
		ctx:        sctx,
		cancel:     cancel,
	}
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		cancel(errStopped)
		_ = w.Close()
		return nil, &ConnectionError{Cause: errStopped}
	}
	s.unbind = c.deps.Liveness.Bind(sctx, w)
	s.events.Attach(w)
	c.sess = s
	c.setStateLocked(Spawned)
	c.mu.Unlock()
	go c.watch(s)

	snap, err := w.Observe(ctx)
	if err != nil {
		return nil, &ConnectionError{Cause: fmt.Errorf("observe: %w", err)}
	}
	hlog.CtxInfof(ctx, "session %s: spawned at %s", s.id, snap.Status.Position)
	return snap.Entries(), nil
}

// prepare runs the spawn sequence: freeze the clock, apply a hard reset,
// place the agent, and let the world settle.
func (c *Controller) prepare(ctx context.Context, w ports.World, opts world.StartOptions) (bool, error) {
	if err := w.AwaitTicks(ctx, c.cfg.SpawnTicks); err != nil {
		return false, err
	}
	cmds := []string{"/tick freeze"}
	itemTicks := 1
	if opts.HardReset() {
		cmds = append(cmds, "/clear @s", "/kill @s")
		names := make([]string, 0, len(opts.Inventory))
		for name := range opts.Inventory {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cmds = append(cmds, fmt.Sprintf("/give @s minecraft:%s %d", world.NormalizeItem(name), opts.Inventory[name]))
			itemTicks++
		}
		for i, item := range opts.Equipment {
			// the main hand follows the selected hotbar slot
			if i == 4 || item == nil || *item == "" {
				continue
			}
			cmds = append(cmds, fmt.Sprintf("/item replace entity @s %s with minecraft:%s", world.EquipmentSlots[i], world.NormalizeItem(*item)))
			itemTicks++
		}
	}
	if p := opts.Position; p != nil {
		cmds = append(cmds, fmt.Sprintf("/tp @s %g %g %g", p.X, p.Y, p.Z))
	}
	if err := issueAll(ctx, w, cmds...); err != nil {
		return false, err
	}
	snap, err := w.Observe(ctx)
	if err != nil {
		return false, err
	}
	hadPickaxe := snap.Has("iron_pickaxe")

	if opts.Spread {
		if err := w.IssueIntent(ctx, "/spreadplayers ~ ~ 0 300 under 80 false @s"); err != nil {
			return false, err
		}
		if err := w.AwaitTicks(ctx, opts.WaitTicks); err != nil {
			return false, err
		}
	}
	if err := w.AwaitTicks(ctx, opts.WaitTicks*itemTicks); err != nil {
		return false, err
	}
	if err := issueAll(ctx, w, "/gamerule keepInventory true", "/gamerule doDaylightCycle false"); err != nil {
		return false, err
	}
	return hadPickaxe, nil
}

func (c *Controller) abortStart(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.state == Connecting {
		c.setStateLocked(Disconnected)
	}
}

// Stop ends the session. Stopping without a session is not an error.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.sess != nil:
		hlog.CtxInfof(ctx, "session %s: stopping", c.sess.id)
		c.setStateLocked(Stopping)
		c.teardownLocked(errStopped)
	case c.state == Connecting:
		c.gen++
		c.setStateLocked(Disconnected)
	}
}

// Pause asks the world to pause and waits one settle interval.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return ErrNoSession
	}
	if err := s.world.IssueIntent(ctx, "/pause"); err != nil {
		return err
	}
	return s.world.AwaitTicks(ctx, s.opts.WaitTicks)
}

// Observe returns the current snapshot entries.
func (c *Controller) Observe(ctx context.Context) ([]world.Event, error) {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return nil, ErrNoSession
	}
	snap, err := s.world.Observe(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Entries(), nil
}

// watch tears an idle session down once the world drops it. A running
// step notices the loss itself when it drains.
func (c *Controller) watch(s *session) {
	select {
	case <-s.ctx.Done():
		return
	case <-s.world.Done():
	}
	if s.ctx.Err() != nil {
		return
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordSessionLost()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != s || c.state == Running {
		return
	}
	hlog.Warnf("session %s: world connection lost", s.id)
	c.teardownLocked(errWorldLost)
}

func (c *Controller) teardownLocked(cause error) {
	s := c.sess
	if s == nil {
		return
	}
	c.sess = nil
	c.gen++
	if s.unbind != nil {
		s.unbind()
	}
	c.deps.Liveness.Disarm()
	s.events.Detach()
	s.cancel(cause)
	if err := s.world.Close(); err != nil {
		hlog.Warnf("session %s: close world: %v", s.id, err)
	}
	c.setStateLocked(Disconnected)
}

func (c *Controller) setStateLocked(to State) {
	if c.state == to {
		return
	}
	if !c.state.CanTransition(to) {
		hlog.Errorf("session: %v: %s -> %s", ErrInvalidTransition, c.state, to)
		return
	}
	c.state = to
}

func issueAll(ctx context.Context, w ports.World, cmds ...string) error {
	for _, cmd := range cmds {
		if err := w.IssueIntent(ctx, cmd); err != nil {
			return fmt.Errorf("intent %q: %w", cmd, err)
		}
	}
	return nil
}
