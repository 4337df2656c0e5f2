// Package liveness detects an agent that believes it is moving but is not,
// and relocates it to a nearby free cell.
package liveness

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

type Config struct {
	StallTicks   int
	Window       int
	MinDistance  float64
	SearchRadius int
	Candidates   int
}

func DefaultConfig() Config {
	return Config{
		StallTicks:   100,
		Window:       5,
		MinDistance:  1.5,
		SearchRadius: 1,
		Candidates:   27,
	}
}

// Monitor samples the agent position every StallTicks moving ticks. When
// Window samples span less than MinDistance the agent is considered stuck.
type Monitor struct {
	cfg     Config
	metrics ports.StepMetrics

	mu      sync.Mutex
	armed   bool
	stall   int
	samples []world.Vec3
	rng     *rand.Rand
}

func NewMonitor(cfg Config, metrics ports.StepMetrics) *Monitor {
	def := DefaultConfig()
	if cfg.StallTicks <= 0 {
		cfg.StallTicks = def.StallTicks
	}
	if cfg.Window <= 1 {
		cfg.Window = def.Window
	}
	if cfg.MinDistance <= 0 {
		cfg.MinDistance = def.MinDistance
	}
	if cfg.SearchRadius <= 0 {
		cfg.SearchRadius = def.SearchRadius
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = def.Candidates
	}
	seed := uint64(time.Now().UnixNano())
	return &Monitor{
		cfg:     cfg,
		metrics: metrics,
		rng:     rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

// Seed makes relocation choices reproducible.
func (m *Monitor) Seed(a, b uint64) {
	m.mu.Lock()
	m.rng = rand.New(rand.NewPCG(a, b))
	m.mu.Unlock()
}

// Arm clears all state and starts observing ticks.
func (m *Monitor) Arm() {
	m.mu.Lock()
	m.armed = true
	m.stall = 0
	m.samples = m.samples[:0]
	m.mu.Unlock()
}

// Disarm stops observing and clears all state.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	m.armed = false
	m.stall = 0
	m.samples = m.samples[:0]
	m.mu.Unlock()
}

func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// StallCount is the number of moving ticks since the last checkpoint.
func (m *Monitor) StallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stall
}

// OnTick records one environment tick and reports whether a rescue is due.
func (m *Monitor) OnTick(pos world.Vec3, moving bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.armed || !moving {
		return false
	}
	m.stall++
	if m.stall < m.cfg.StallTicks {
		return false
	}
	m.stall = 0

	m.samples = append(m.samples, pos)
	if len(m.samples) < m.cfg.Window {
		return false
	}
	oldest := m.samples[0]
	stuck := pos.DistanceTo(oldest) < m.cfg.MinDistance
	m.samples = append(m.samples[:0], m.samples[1:]...)
	return stuck
}

// Rescue teleports the agent to a random free neighbouring cell, or nudges
// it upwards when none is free.
func (m *Monitor) Rescue(ctx context.Context, w ports.World) error {
	cells, err := w.FindNearestMatchingCells(ctx, world.MatchNames(world.BlockAir), m.cfg.SearchRadius, m.cfg.Candidates)
	if err != nil {
		hlog.CtxWarnf(ctx, "liveness: find free cells: %v", err)
	}
	cmd := "/tp @s ~ ~1.25 ~"
	if len(cells) > 0 {
		m.mu.Lock()
		c := cells[m.rng.IntN(len(cells))]
		m.mu.Unlock()
		cmd = fmt.Sprintf("/tp @s %d %d %d", c.X, c.Y, c.Z)
	}
	if m.metrics != nil {
		m.metrics.RecordRescue()
	}
	hlog.CtxInfof(ctx, "liveness: agent stuck at %s, rescue %q", w.CurrentPosition(), cmd)
	return w.IssueIntent(ctx, cmd)
}

// Bind hooks the monitor to the tick stream of w. Rescues run off the tick
// goroutine so that world calls cannot deadlock the tick source.
func (m *Monitor) Bind(ctx context.Context, w ports.World) (cancel func()) {
	return w.OnTick(func(int64) {
		if !m.OnTick(w.CurrentPosition(), w.IsMoving()) {
			return
		}
		go func() {
			if err := m.Rescue(ctx, w); err != nil {
				hlog.CtxWarnf(ctx, "liveness: rescue failed: %v", err)
			}
		}()
	})
}
