// Package ws serves worlds over the websocket protocol. Each connection
// gets its own world from the configured dialer.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/gorilla/websocket"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
	"agentbridge/internal/protocol"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	pongTimeout      = 60 * time.Second
	pingInterval     = 20 * time.Second
	outQueue         = 256
)

type Server struct {
	worlds   ports.WorldDialer
	upgrader websocket.Upgrader
}

func NewServer(worlds ports.WorldDialer) *Server {
	return &Server{
		worlds: worlds,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		w, hello := s.handshake(ctx, conn)
		if w == nil {
			return
		}
		defer w.Close()
		hlog.Infof("[worldsim] %s joined on port %d", hello.AgentName, hello.Options.Port)

		out := make(chan []byte, outQueue)
		push := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			select {
			case out <- b:
			default:
				hlog.Warnf("[worldsim] outbound queue full, dropping message")
			}
		}

		cancelEvents := w.Subscribe(world.EventKinds, func(e world.Event) {
			push(protocol.EventMsg{Type: protocol.TypeEvent, Event: e})
		})
		defer cancelEvents()
		cancelTicks := w.OnTick(func(tick int64) {
			push(protocol.TickMsg{Type: protocol.TypeTick, Tick: tick, Position: w.CurrentPosition(), Moving: w.IsMoving()})
		})
		defer cancelTicks()

		go s.writer(ctx, cancel, conn, out, w.Done())

		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCall {
				continue
			}
			if err := protocol.Validate(protocol.SchemaCall, msg); err != nil {
				var id struct {
					ID uint64 `json:"id"`
				}
				_ = json.Unmarshal(msg, &id)
				push(protocol.ResultMsg{Type: protocol.TypeResult, ID: id.ID, Code: protocol.ErrProtoBadRequest, Error: err.Error()})
				continue
			}
			var call protocol.CallMsg
			if err := json.Unmarshal(msg, &call); err != nil {
				continue
			}
			push(s.dispatch(ctx, w, call))
		}
		hlog.Infof("[worldsim] %s left", hello.AgentName)
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (ports.World, protocol.HelloMsg) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, hello
	}
	if err := protocol.Validate(protocol.SchemaHello, msg); err != nil {
		reject(conn, "expected HELLO")
		return nil, hello
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, hello
	}
	if hello.ProtocolVersion != protocol.Version {
		reject(conn, "bad protocol_version")
		return nil, hello
	}
	if hello.AgentName == "" {
		hello.AgentName = "bot"
	}

	w, err := s.worlds.Dial(ctx, hello.Options)
	if err != nil {
		hlog.Errorf("[worldsim] dial world: %v", err)
		reject(conn, "world unavailable")
		return nil, hello
	}
	spawn := protocol.SpawnMsg{
		Type:            protocol.TypeSpawn,
		ProtocolVersion: protocol.Version,
		Tick:            w.Tick(),
		Position:        w.CurrentPosition(),
	}
	if err := writeJSON(conn, spawn); err != nil {
		_ = w.Close()
		return nil, hello
	}
	return w, hello
}

func (s *Server) writer(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan []byte, done <-chan struct{}) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			_ = writeJSON(conn, protocol.KickedMsg{Type: protocol.TypeKicked, Reason: "world closed"})
			cancel()
			_ = conn.Close()
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				cancel()
				return
			}
		case b := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, w ports.World, call protocol.CallMsg) protocol.ResultMsg {
	res := protocol.ResultMsg{Type: protocol.TypeResult, ID: call.ID}
	var (
		data any
		err  error
	)
	switch call.Method {
	case protocol.MethodIntent:
		var args protocol.IntentArgs
		if err = decodeArgs(call.Args, &args); err == nil {
			err = w.IssueIntent(ctx, args.Command)
		}
	case protocol.MethodObserve:
		data, err = w.Observe(ctx)
	case protocol.MethodFind:
		var args protocol.FindArgs
		if err = decodeArgs(call.Args, &args); err == nil {
			data, err = w.FindNearestMatchingCells(ctx, world.MatchNames(args.Names...), args.Radius, args.Limit)
		}
	case protocol.MethodGoal:
		var args protocol.GoalArgs
		if err = decodeArgs(call.Args, &args); err == nil {
			err = w.SetGoal(ctx, args.Goal)
		}
	default:
		res.Code = protocol.ErrUnknownMethod
		res.Error = "unknown method " + call.Method
		return res
	}
	if err != nil {
		res.Code = protocol.ErrInternal
		if errors.Is(err, ports.ErrWorldClosed) {
			res.Code = protocol.ErrWorldClosed
		}
		res.Error = err.Error()
		return res
	}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			res.Code = protocol.ErrInternal
			res.Error = err.Error()
			return res
		}
		res.Data = b
	}
	res.OK = true
	return res
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func reject(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
