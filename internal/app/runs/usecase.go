// Package runs reads back the step-run log.
package runs

import (
	"context"
	"errors"
	"strings"
	"time"

	"agentbridge/internal/app/ports"
)

var ErrInvalidRequest = errors.New("invalid runs request")

const (
	defaultLimit = 50
	maxLimit     = 500
)

type UseCase struct {
	Runs ports.RunRepository
}

// List returns the newest runs first. Listed runs omit code and events;
// fetch a single run for those.
func (u UseCase) List(ctx context.Context, req ListRequest) (ListResponse, error) {
	if req.Limit < 0 || (req.From > 0 && req.To > 0 && req.From > req.To) {
		return ListResponse{}, ErrInvalidRequest
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	q := ports.RunQuery{Limit: limit}
	if req.From > 0 {
		q.From = time.Unix(req.From, 0)
	}
	if req.To > 0 {
		q.To = time.Unix(req.To, 0)
	}
	records, err := u.Runs.List(ctx, q)
	if err != nil {
		return ListResponse{}, err
	}
	records = filterByTimeWindow(records, req.From, req.To)

	resp := ListResponse{Runs: make([]Run, 0, len(records)), Outcomes: map[string]int{}}
	for _, r := range records {
		run := toRun(r)
		run.Code, run.Programs, run.Events = "", "", nil
		resp.Runs = append(resp.Runs, run)
		resp.Outcomes[r.Outcome]++
	}
	return resp, nil
}

func (u UseCase) Get(ctx context.Context, id string) (Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, ErrInvalidRequest
	}
	r, err := u.Runs.Get(ctx, id)
	if err != nil {
		return Run{}, err
	}
	return toRun(r), nil
}

// filterByTimeWindow guards repositories that only approximate the window.
func filterByTimeWindow(records []ports.RunRecord, from, to int64) []ports.RunRecord {
	if from <= 0 && to <= 0 {
		return records
	}
	out := make([]ports.RunRecord, 0, len(records))
	for _, r := range records {
		ts := r.StartedAt.Unix()
		if from > 0 && ts < from {
			continue
		}
		if to > 0 && ts > to {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toRun(r ports.RunRecord) Run {
	return Run{
		ID:         r.ID,
		SessionID:  r.SessionID,
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
		DurationMS: r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
		Outcome:    r.Outcome,
		Message:    r.Message,
		Code:       r.Code,
		Programs:   r.Programs,
		Events:     r.Events,
	}
}
