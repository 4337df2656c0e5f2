package session

import (
	"errors"
	"fmt"
)

var (
	ErrNoSession         = errors.New("bot not spawned")
	ErrSessionBusy       = errors.New("session busy")
	ErrInvalidRequest    = errors.New("invalid session request")
	ErrConnection        = errors.New("bot connection failed")
	ErrInvalidTransition = errors.New("invalid session transition")
)

// ConnectionError reports a world that could not be reached or rejected
// the agent during start.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("bot connection failed: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}
