package runs

import (
	"context"
	"errors"
	"testing"
	"time"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
)

type stubRepo struct {
	records []ports.RunRecord
	lastQ   ports.RunQuery
}

func (s *stubRepo) Save(context.Context, ports.RunRecord) error { return nil }

func (s *stubRepo) Get(_ context.Context, id string) (ports.RunRecord, error) {
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return ports.RunRecord{}, ports.ErrNotFound
}

func (s *stubRepo) List(_ context.Context, q ports.RunQuery) ([]ports.RunRecord, error) {
	s.lastQ = q
	return s.records, nil
}

func record(id string, startUnix int64, outcome string) ports.RunRecord {
	start := time.Unix(startUnix, 0)
	return ports.RunRecord{
		ID:         id,
		SessionID:  "sess",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Code:       "bot.chat('hi')",
		Outcome:    outcome,
		Events:     []world.Event{world.ChatEvent("hi")},
	}
}

func TestList_DefaultsLimitAndStripsBodies(t *testing.T) {
	repo := &stubRepo{records: []ports.RunRecord{
		record("b", 200, "success"),
		record("a", 100, "fault"),
	}}
	uc := UseCase{Runs: repo}

	resp, err := uc.List(context.Background(), ListRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastQ.Limit != defaultLimit {
		t.Fatalf("expected default limit %d, got %d", defaultLimit, repo.lastQ.Limit)
	}
	if len(resp.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(resp.Runs))
	}
	first := resp.Runs[0]
	if first.ID != "b" || first.DurationMS != 1500 {
		t.Fatalf("unexpected first run: %+v", first)
	}
	if first.Code != "" || first.Events != nil {
		t.Fatalf("expected listed run without body, got %+v", first)
	}
	if resp.Outcomes["success"] != 1 || resp.Outcomes["fault"] != 1 {
		t.Fatalf("unexpected outcome counts: %v", resp.Outcomes)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := &stubRepo{}
	if _, err := (UseCase{Runs: repo}).List(context.Background(), ListRequest{Limit: 10_000}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastQ.Limit != maxLimit {
		t.Fatalf("expected clamped limit %d, got %d", maxLimit, repo.lastQ.Limit)
	}
}

func TestList_FiltersWindow(t *testing.T) {
	repo := &stubRepo{records: []ports.RunRecord{
		record("late", 300, "success"),
		record("mid", 200, "success"),
		record("early", 100, "success"),
	}}
	resp, err := (UseCase{Runs: repo}).List(context.Background(), ListRequest{From: 150, To: 250})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].ID != "mid" {
		t.Fatalf("expected only mid, got %+v", resp.Runs)
	}
	if repo.lastQ.From.Unix() != 150 || repo.lastQ.To.Unix() != 250 {
		t.Fatalf("window not forwarded: %+v", repo.lastQ)
	}
}

func TestList_RejectsInvalidRequests(t *testing.T) {
	uc := UseCase{Runs: &stubRepo{}}
	for _, req := range []ListRequest{{Limit: -1}, {From: 200, To: 100}} {
		if _, err := uc.List(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest for %+v, got %v", req, err)
		}
	}
}

func TestGet_ReturnsFullRun(t *testing.T) {
	uc := UseCase{Runs: &stubRepo{records: []ports.RunRecord{record("a", 100, "timeout_inner")}}}

	run, err := uc.Get(context.Background(), " a ")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if run.Code == "" || len(run.Events) != 1 || run.Outcome != "timeout_inner" {
		t.Fatalf("unexpected run: %+v", run)
	}

	if _, err := uc.Get(context.Background(), "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := uc.Get(context.Background(), "  "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
