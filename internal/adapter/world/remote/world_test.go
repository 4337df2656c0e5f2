package remote_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentbridge/internal/adapter/world/remote"
	"agentbridge/internal/adapter/world/sim"
	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
	"agentbridge/internal/transport/ws"
)

// capturingDialer hands out sim worlds and remembers the last one so tests
// can act on the server side.
type capturingDialer struct {
	mu   sync.Mutex
	last *sim.World
}

func (d *capturingDialer) Dial(ctx context.Context, opts world.StartOptions) (ports.World, error) {
	w := sim.New(sim.Config{TickRate: 2 * time.Millisecond, Seed: 7})
	go w.Run()
	d.mu.Lock()
	d.last = w
	d.mu.Unlock()
	return w, nil
}

func (d *capturingDialer) world() *sim.World {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func startServer(t *testing.T) (*capturingDialer, remote.Dialer, int) {
	t.Helper()
	worlds := &capturingDialer{}
	srv := httptest.NewServer(ws.NewServer(worlds).Handler())
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return worlds, remote.Dialer{Host: u.Hostname(), Path: "/"}, port
}

func dial(t *testing.T) (*capturingDialer, *remote.World) {
	t.Helper()
	worlds, d, port := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w, err := d.Dial(ctx, world.StartOptions{Port: port, WaitTicks: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return worlds, w.(*remote.World)
}

func TestDialerURL(t *testing.T) {
	d := remote.Dialer{Host: "mc.local"}
	assert.Equal(t, "ws://mc.local:25565/v1/world", d.URL(25565))
	assert.Equal(t, "ws://localhost:3000/v1/world", remote.Dialer{}.URL(3000))
}

func TestRemoteWorld_TicksAndCalls(t *testing.T) {
	_, w := dial(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	before := w.Tick()
	require.NoError(t, w.AwaitTicks(ctx, 3))
	assert.GreaterOrEqual(t, w.Tick(), before+3)

	chats := make(chan world.Event, 4)
	cancelSub := w.Subscribe([]string{world.KindChat}, func(e world.Event) { chats <- e })
	defer cancelSub()
	require.NoError(t, w.IssueIntent(ctx, "hello there"))
	select {
	case e := <-chats:
		assert.Equal(t, "hello there", e.Message())
	case <-ctx.Done():
		t.Fatalf("no chat event")
	}

	snap, err := w.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bot", snap.Status.Name)
	assert.EqualValues(t, 20, snap.Status.Health)

	cells, err := w.FindNearestMatchingCells(ctx, world.MatchNames("grass_block"), 4, 2)
	require.NoError(t, err)
	assert.Len(t, cells, 2)
}

func TestRemoteWorld_GoalMovesAgent(t *testing.T) {
	_, w := dial(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, w.SetGoal(ctx, &world.Goal{Kind: world.GoalXZ, X: 3, Z: 0}))
	assert.True(t, w.IsMoving())
	for w.IsMoving() {
		require.NoError(t, w.AwaitTicks(ctx, 1))
	}
	assert.Equal(t, 3, w.CurrentPosition().Cell().X)
}

func TestRemoteWorld_InvalidGoalRejectedLocally(t *testing.T) {
	_, w := dial(t)
	err := w.SetGoal(context.Background(), &world.Goal{Kind: "teleport"})
	assert.ErrorIs(t, err, world.ErrInvalidGoal)
}

func TestRemoteWorld_KickEndsSession(t *testing.T) {
	worlds, w := dial(t)
	worlds.world().Kick()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session not ended after kick")
	}
	assert.Contains(t, w.Reason(), "kicked")
	assert.ErrorIs(t, w.IssueIntent(context.Background(), "noop"), ports.ErrWorldClosed)
	assert.ErrorIs(t, w.AwaitTicks(context.Background(), 1), ports.ErrWorldClosed)
}

func TestRemoteWorld_CloseReleasesServerWorld(t *testing.T) {
	worlds, w := dial(t)
	require.NoError(t, w.Close())
	select {
	case <-worlds.world().Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("server world still open")
	}
}

func TestDial_NoServer(t *testing.T) {
	srv := httptest.NewServer(ws.NewServer(&capturingDialer{}).Handler())
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = remote.Dialer{Host: u.Hostname(), Path: "/"}.Dial(ctx, world.StartOptions{Port: port})
	assert.Error(t, err)
}
