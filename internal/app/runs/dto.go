package runs

import (
	"time"

	"agentbridge/internal/domain/world"
)

type ListRequest struct {
	Limit int
	// From and To bound StartedAt in unix seconds; zero means unbounded.
	From int64
	To   int64
}

type Run struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DurationMS int64         `json:"duration_ms"`
	Outcome    string        `json:"outcome"`
	Message    string        `json:"message,omitempty"`
	Code       string        `json:"code,omitempty"`
	Programs   string        `json:"programs,omitempty"`
	Events     []world.Event `json:"events,omitempty"`
}

type ListResponse struct {
	Runs     []Run          `json:"runs"`
	Outcomes map[string]int `json:"outcomes"`
}
