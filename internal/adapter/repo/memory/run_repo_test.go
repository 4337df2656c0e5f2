package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
)

func runAt(id string, at time.Time) ports.RunRecord {
	return ports.RunRecord{
		ID:         id,
		StartedAt:  at,
		FinishedAt: at.Add(time.Second),
		Outcome:    "completed",
		Events:     []world.Event{world.ChatEvent("hi")},
	}
}

func TestRunRepo_SaveGetList(t *testing.T) {
	repo := NewRunRepo(NewStore(0))
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Save(ctx, runAt(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	got, err := repo.Get(ctx, "b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "b" || len(got.Events) != 1 {
		t.Fatalf("unexpected run: %+v", got)
	}

	list, err := repo.List(ctx, ports.RunQuery{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("expected newest first [c b], got %+v", list)
	}

	list, err = repo.List(ctx, ports.RunQuery{From: base.Add(30 * time.Second), To: base.Add(90 * time.Second)})
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(list) != 1 || list[0].ID != "b" {
		t.Fatalf("expected only b in window, got %+v", list)
	}
}

func TestRunRepo_DuplicateAndMissing(t *testing.T) {
	repo := NewRunRepo(NewStore(0))
	ctx := context.Background()
	run := runAt("a", time.Now())
	if err := repo.Save(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, run); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := repo.Get(ctx, "zzz"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunRepo_EvictsOldest(t *testing.T) {
	repo := NewRunRepo(NewStore(2))
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Save(ctx, runAt(id, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if _, err := repo.Get(ctx, "a"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected a to be evicted, got %v", err)
	}
	list, _ := repo.List(ctx, ports.RunQuery{})
	if len(list) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(list))
	}
}
