package session

import "fmt"

// State is the lifecycle of the single world session.
type State int

const (
	Disconnected State = iota
	Connecting
	Spawned
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Spawned:
		return "spawned"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Spawned, Disconnected},
	Spawned:      {Running, Stopping, Disconnected},
	Running:      {Spawned, Stopping, Disconnected},
	Stopping:     {Disconnected},
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
