package ports

import (
	"context"
	"errors"

	"agentbridge/internal/domain/world"
)

// ErrWorldClosed is returned by world calls after the session was lost or closed.
var ErrWorldClosed = errors.New("world session closed")

// World is the live environment an agent acts in. Implementations must be
// safe for concurrent use; callbacks run on the world's own goroutine and
// must not block.
type World interface {
	IssueIntent(ctx context.Context, command string) error
	AwaitTicks(ctx context.Context, n int) error
	Observe(ctx context.Context) (world.Snapshot, error)
	Subscribe(kinds []string, fn func(world.Event)) (cancel func())
	CurrentPosition() world.Vec3
	IsMoving() bool
	FindNearestMatchingCells(ctx context.Context, match world.Match, radius, limit int) ([]world.Cell, error)
	SetGoal(ctx context.Context, goal *world.Goal) error
	// OnTick registers fn to run once per environment tick.
	OnTick(fn func(tick int64)) (cancel func())
	Tick() int64
	// Done is closed when the session is lost (kicked, disconnected, closed).
	Done() <-chan struct{}
	Close() error
}

// WorldDialer opens world sessions. A dial returns once the agent spawned.
type WorldDialer interface {
	Dial(ctx context.Context, opts world.StartOptions) (World, error)
}
