// Package protocol defines the websocket protocol between the bridge and a
// remote world server, and the JSON schemas of the bridge's own requests.
package protocol

import (
	"encoding/json"

	"agentbridge/internal/domain/world"
)

const Version = "1.0"

// Message types.
const (
	TypeHello  = "HELLO"
	TypeSpawn  = "SPAWN"
	TypeCall   = "CALL"
	TypeResult = "RESULT"
	TypeTick   = "TICK"
	TypeEvent  = "EVENT"
	TypeKicked = "KICKED"
)

// Call methods.
const (
	MethodIntent  = "intent"
	MethodObserve = "observe"
	MethodFind    = "find"
	MethodGoal    = "goal"
)

// BaseMessage lets us route JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// HELLO (client -> server)
type HelloMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	AgentName       string             `json:"agent_name"`
	Options         world.StartOptions `json:"options"`
}

// SPAWN (server -> client) confirms the agent entered the world.
type SpawnMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            int64      `json:"tick"`
	Position        world.Vec3 `json:"position"`
}

// CALL (client -> server)
type CallMsg struct {
	Type   string          `json:"type"`
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// RESULT (server -> client) answers the CALL with the same id.
type ResultMsg struct {
	Type  string          `json:"type"`
	ID    uint64          `json:"id"`
	OK    bool            `json:"ok"`
	Code  string          `json:"code,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TICK (server -> client) is pushed once per world tick.
type TickMsg struct {
	Type     string     `json:"type"`
	Tick     int64      `json:"tick"`
	Position world.Vec3 `json:"position"`
	Moving   bool       `json:"moving"`
}

// EVENT (server -> client)
type EventMsg struct {
	Type  string      `json:"type"`
	Event world.Event `json:"event"`
}

// KICKED (server -> client) ends the session.
type KickedMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type IntentArgs struct {
	Command string `json:"command"`
}

type FindArgs struct {
	Names  []string `json:"names"`
	Radius int      `json:"radius"`
	Limit  int      `json:"limit"`
}

type GoalArgs struct {
	Goal *world.Goal `json:"goal"`
}
