package ports

import (
	"context"
	"time"

	"agentbridge/internal/domain/world"
)

type RunRecord struct {
	ID         string
	SessionID  string
	StartedAt  time.Time
	FinishedAt time.Time
	Code       string
	Programs   string
	Outcome    string
	Message    string
	Events     []world.Event
}

type RunQuery struct {
	Limit int
	From  time.Time
	To    time.Time
}

type RunRepository interface {
	Save(ctx context.Context, run RunRecord) error
	Get(ctx context.Context, id string) (RunRecord, error)
	List(ctx context.Context, q RunQuery) ([]RunRecord, error)
}
