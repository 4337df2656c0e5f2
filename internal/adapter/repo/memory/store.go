package memory

import (
	"sync"

	"agentbridge/internal/app/ports"
)

type Store struct {
	mu    sync.RWMutex
	runs  map[string]ports.RunRecord
	order []string
	cap   int
}

// NewStore keeps at most capacity runs, evicting the oldest; zero keeps all.
func NewStore(capacity int) *Store {
	return &Store{
		runs: make(map[string]ports.RunRecord),
		cap:  capacity,
	}
}
