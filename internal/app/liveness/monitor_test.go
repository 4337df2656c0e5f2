package liveness

import (
	"context"
	"strings"
	"testing"
	"time"

	"agentbridge/internal/adapter/world/mock"
	"agentbridge/internal/domain/world"

	"github.com/stretchr/testify/require"
)

type rescueCounter struct{ rescues int }

func (r *rescueCounter) RecordStep(string, time.Duration) {}
func (r *rescueCounter) RecordRescue()                    { r.rescues++ }
func (r *rescueCounter) RecordSessionLost()               {}

func TestMonitorFlagsStationaryMovingAgentOnce(t *testing.T) {
	m := NewMonitor(DefaultConfig(), nil)
	m.Arm()
	pos := world.Vec3{X: 10, Y: 64, Z: 10}

	due := 0
	for i := 0; i < 500; i++ {
		if m.OnTick(pos, true) {
			due++
		}
	}
	require.Equal(t, 1, due)
	require.Equal(t, 0, m.StallCount())
}

func TestMonitorIgnoresIdleAndDisarmed(t *testing.T) {
	m := NewMonitor(DefaultConfig(), nil)
	pos := world.Vec3{}
	for i := 0; i < 1000; i++ {
		require.False(t, m.OnTick(pos, true), "disarmed monitor fired")
	}

	m.Arm()
	for i := 0; i < 1000; i++ {
		require.False(t, m.OnTick(pos, false), "idle agent flagged")
	}
	require.Equal(t, 0, m.StallCount())
}

func TestMonitorLeavesTravellingAgentAlone(t *testing.T) {
	m := NewMonitor(DefaultConfig(), nil)
	m.Arm()
	for i := 0; i < 2000; i++ {
		pos := world.Vec3{X: float64(i) * 0.1, Y: 64}
		require.False(t, m.OnTick(pos, true), "tick %d", i)
	}
}

func TestMonitorArmClearsSamples(t *testing.T) {
	m := NewMonitor(DefaultConfig(), nil)
	m.Arm()
	for i := 0; i < 450; i++ {
		m.OnTick(world.Vec3{}, true)
	}
	m.Arm()
	for i := 0; i < 450; i++ {
		require.False(t, m.OnTick(world.Vec3{}, true))
	}
}

func TestRescueTeleportsToFreeCell(t *testing.T) {
	w := mock.New()
	w.SetCells(world.BlockAir, []world.Cell{{X: 3, Y: 65, Z: -2}})
	metrics := &rescueCounter{}
	m := NewMonitor(DefaultConfig(), metrics)

	require.NoError(t, m.Rescue(context.Background(), w))
	require.Equal(t, []string{"/tp @s 3 65 -2"}, w.Intents())
	require.Equal(t, 1, metrics.rescues)
}

func TestRescueNudgesWhenBoxedIn(t *testing.T) {
	w := mock.New()
	m := NewMonitor(DefaultConfig(), nil)

	require.NoError(t, m.Rescue(context.Background(), w))
	require.Equal(t, []string{"/tp @s ~ ~1.25 ~"}, w.Intents())
}

func TestBindRescuesThroughTickStream(t *testing.T) {
	w := mock.New()
	w.SetMoving(true)
	w.SetPosition(world.Vec3{X: 1, Y: 64, Z: 1})
	w.SetCells(world.BlockAir, []world.Cell{{X: 1, Y: 65, Z: 1}})
	m := NewMonitor(DefaultConfig(), nil)
	m.Arm()
	cancel := m.Bind(context.Background(), w)
	defer cancel()

	require.NoError(t, w.AwaitTicks(context.Background(), 500))
	require.Eventually(t, func() bool {
		for _, cmd := range w.Intents() {
			if strings.HasPrefix(cmd, "/tp @s") {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
