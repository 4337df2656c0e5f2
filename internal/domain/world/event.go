package world

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	KindChat            = "onChat"
	KindError           = "onError"
	KindSave            = "onSave"
	KindBlockChange     = "onBlockChange"
	KindInventoryChange = "onInventoryChange"
	KindChestChange     = "onChestChange"
	KindObserve         = "observe"
)

// EventKinds lists every kind an environment reports during execution.
var EventKinds = []string{KindChat, KindError, KindSave, KindBlockChange, KindInventoryChange, KindChestChange}

// Event is one incremental report from the environment. It is encoded as
// the pair [kind, payload].
type Event struct {
	Kind    string
	Payload map[string]any
}

func NewEvent(kind string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Kind: kind, Payload: payload}
}

func ErrorEvent(msg string) Event {
	return NewEvent(KindError, map[string]any{KindError: msg})
}

func ChatEvent(msg string) Event {
	return NewEvent(KindChat, map[string]any{KindChat: msg})
}

func (e Event) MarshalJSON() ([]byte, error) {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return json.Marshal([]any{e.Kind, payload})
}

var errEventShape = errors.New("event must be a [kind, payload] pair")

func (e *Event) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errEventShape
	}
	if err := json.Unmarshal(pair[0], &e.Kind); err != nil {
		return fmt.Errorf("event kind: %w", err)
	}
	e.Payload = map[string]any{}
	if err := json.Unmarshal(pair[1], &e.Payload); err != nil {
		return fmt.Errorf("event payload: %w", err)
	}
	return nil
}

// Message returns the payload entry named after the kind, e.g. the chat text
// of an onChat event.
func (e Event) Message() string {
	s, _ := e.Payload[e.Kind].(string)
	return s
}
