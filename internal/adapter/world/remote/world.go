// Package remote implements the world port against a world server speaking
// the websocket protocol.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/gorilla/websocket"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
	"agentbridge/internal/protocol"
)

const writeTimeout = 5 * time.Second

// RemoteError is a failed CALL reported by the server.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type World struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan protocol.ResultMsg
	tick    int64
	pos     world.Vec3
	moving  bool
	tickCh  chan struct{}
	nextSub int
	subs    map[int]subscriber
	hooks   map[int]func(int64)
	reason  string

	closeOnce sync.Once
	done      chan struct{}
}

type subscriber struct {
	kinds map[string]bool
	fn    func(world.Event)
}

var _ ports.World = (*World)(nil)

func newWorld(conn *websocket.Conn, spawn protocol.SpawnMsg) *World {
	return &World{
		conn:    conn,
		pending: map[uint64]chan protocol.ResultMsg{},
		tick:    spawn.Tick,
		pos:     spawn.Position,
		tickCh:  make(chan struct{}),
		subs:    map[int]subscriber{},
		hooks:   map[int]func(int64){},
		done:    make(chan struct{}),
	}
}

func (w *World) readLoop() {
	defer w.shutdown("connection closed")
	for {
		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeTick:
			var t protocol.TickMsg
			if err := json.Unmarshal(msg, &t); err == nil {
				w.onTick(t)
			}
		case protocol.TypeEvent:
			var e protocol.EventMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				w.dispatch(e.Event)
			}
		case protocol.TypeResult:
			var r protocol.ResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			w.mu.Lock()
			ch := w.pending[r.ID]
			delete(w.pending, r.ID)
			w.mu.Unlock()
			if ch != nil {
				ch <- r
			}
		case protocol.TypeKicked:
			var k protocol.KickedMsg
			_ = json.Unmarshal(msg, &k)
			hlog.Warnf("[remote] kicked: %s", k.Reason)
			w.shutdown("kicked: " + k.Reason)
			return
		}
	}
}

func (w *World) onTick(t protocol.TickMsg) {
	w.mu.Lock()
	w.tick = t.Tick
	w.pos = t.Position
	w.moving = t.Moving
	close(w.tickCh)
	w.tickCh = make(chan struct{})
	ids := make([]int, 0, len(w.hooks))
	for id := range w.hooks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	hooks := make([]func(int64), 0, len(ids))
	for _, id := range ids {
		hooks = append(hooks, w.hooks[id])
	}
	w.mu.Unlock()
	for _, fn := range hooks {
		fn(t.Tick)
	}
}

func (w *World) dispatch(e world.Event) {
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
	for _, s := range subs {
		if s.kinds[e.Kind] {
			s.fn(e)
		}
	}
}

func (w *World) call(ctx context.Context, method string, args any, out any) error {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return err
		}
		raw = b
	}
	ch := make(chan protocol.ResultMsg, 1)
	w.mu.Lock()
	select {
	case <-w.done:
		w.mu.Unlock()
		return ports.ErrWorldClosed
	default:
	}
	w.nextID++
	id := w.nextID
	w.pending[id] = ch
	w.mu.Unlock()

	msg := protocol.CallMsg{Type: protocol.TypeCall, ID: id, Method: method, Args: raw}
	w.writeMu.Lock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := w.conn.WriteJSON(msg)
	w.writeMu.Unlock()
	if err != nil {
		w.forget(id)
		return fmt.Errorf("%w: %v", ports.ErrWorldClosed, err)
	}

	select {
	case <-ctx.Done():
		w.forget(id)
		return ctx.Err()
	case <-w.done:
		return ports.ErrWorldClosed
	case res := <-ch:
		if !res.OK {
			if res.Code == protocol.ErrWorldClosed {
				return ports.ErrWorldClosed
			}
			return &RemoteError{Code: res.Code, Message: res.Error}
		}
		if out != nil && len(res.Data) > 0 {
			return json.Unmarshal(res.Data, out)
		}
		return nil
	}
}

func (w *World) forget(id uint64) {
	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()
}

func (w *World) IssueIntent(ctx context.Context, command string) error {
	return w.call(ctx, protocol.MethodIntent, protocol.IntentArgs{Command: command}, nil)
}

func (w *World) AwaitTicks(ctx context.Context, n int) error {
	w.mu.Lock()
	target := w.tick + int64(n)
	w.mu.Unlock()
	for {
		w.mu.Lock()
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
	var snap world.Snapshot
	err := w.call(ctx, protocol.MethodObserve, nil, &snap)
	return snap, err
}

func (w *World) Subscribe(kinds []string, fn func(world.Event)) func() {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	w.mu.Lock()
	w.nextSub++
	id := w.nextSub
	w.subs[id] = subscriber{kinds: set, fn: fn}
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
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
	return w.moving
}

func (w *World) FindNearestMatchingCells(ctx context.Context, match world.Match, radius, limit int) ([]world.Cell, error) {
	var cells []world.Cell
	err := w.call(ctx, protocol.MethodFind, protocol.FindArgs{Names: match.Names, Radius: radius, Limit: limit}, &cells)
	return cells, err
}

// SetGoal updates the local moving flag immediately so callers polling
// IsMoving do not see a stale value before the next TICK.
func (w *World) SetGoal(ctx context.Context, goal *world.Goal) error {
	if goal != nil {
		if err := goal.Validate(); err != nil {
			return err
		}
	}
	if err := w.call(ctx, protocol.MethodGoal, protocol.GoalArgs{Goal: goal}, nil); err != nil {
		return err
	}
	w.mu.Lock()
	w.moving = goal != nil
	w.mu.Unlock()
	return nil
}

func (w *World) OnTick(fn func(int64)) func() {
	w.mu.Lock()
	w.nextSub++
	id := w.nextSub
	w.hooks[id] = fn
	w.mu.Unlock()
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

// Reason explains why the session ended; empty while it is alive.
func (w *World) Reason() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reason
}

func (w *World) shutdown(reason string) {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.reason = reason
		w.mu.Unlock()
		close(w.done)
		_ = w.conn.Close()
	})
}

func (w *World) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	w.shutdown("closed")
	return nil
}
