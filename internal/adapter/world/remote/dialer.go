package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
	"agentbridge/internal/protocol"
)

const spawnTimeout = 10 * time.Second

// Dialer connects to ws://Host:<port>Path where the port comes from the
// start options.
type Dialer struct {
	Host      string
	Path      string
	AgentName string
}

func (d Dialer) URL(port int) string {
	path := d.Path
	if path == "" {
		path = "/v1/world"
	}
	host := d.Host
	if host == "" {
		host = "localhost"
	}
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", host, port), Path: path}
	return u.String()
}

func (d Dialer) Dial(ctx context.Context, opts world.StartOptions) (ports.World, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, d.URL(opts.Port), nil)
	if err != nil {
		return nil, err
	}
	name := d.AgentName
	if name == "" {
		name = "bot"
	}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       name,
		Options:         opts,
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, err
	}

	deadline := time.Now().Add(spawnTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetReadDeadline(deadline)
	spawn, err := readSpawn(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	w := newWorld(conn, spawn)
	go w.readLoop()
	return w, nil
}

func readSpawn(conn *websocket.Conn) (protocol.SpawnMsg, error) {
	var spawn protocol.SpawnMsg
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return spawn, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			return spawn, err
		}
		switch base.Type {
		case protocol.TypeSpawn:
			if err := json.Unmarshal(msg, &spawn); err != nil {
				return spawn, err
			}
			if spawn.ProtocolVersion != protocol.Version {
				return spawn, fmt.Errorf("protocol version %q, want %q", spawn.ProtocolVersion, protocol.Version)
			}
			return spawn, nil
		case protocol.TypeKicked:
			var k protocol.KickedMsg
			_ = json.Unmarshal(msg, &k)
			return spawn, fmt.Errorf("kicked before spawn: %s", k.Reason)
		}
	}
}
