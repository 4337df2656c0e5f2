package world

import (
	"encoding/json"
	"testing"
)

func TestEventEncodesAsPair(t *testing.T) {
	b, err := json.Marshal(ErrorEvent("boom"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `["onError",{"onError":"boom"}]`; got != want {
		t.Fatalf("encoding mismatch: got=%s want=%s", got, want)
	}

	var back Event
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Kind != KindError || back.Message() != "boom" {
		t.Fatalf("unexpected event: %+v", back)
	}
}

func TestEventRejectsWrongShape(t *testing.T) {
	var e Event
	if err := json.Unmarshal([]byte(`["onChat"]`), &e); err == nil {
		t.Fatalf("expected shape error")
	}
}

func TestSnapshotMergeKeepsPayloadKeys(t *testing.T) {
	snap := Snapshot{Inventory: map[string]int{"dirt": 3}}
	merged := snap.Merge(map[string]any{KindError: "bad", "voxels": "override"})
	if merged[KindError] != "bad" {
		t.Fatalf("payload key lost: %v", merged)
	}
	if merged["voxels"] != "override" {
		t.Fatalf("payload should win over snapshot field: %v", merged["voxels"])
	}
	if _, ok := merged["status"]; !ok {
		t.Fatalf("snapshot fields missing: %v", merged)
	}
}

func TestGoalReached(t *testing.T) {
	g := Goal{Kind: GoalNear, X: 10, Y: 64, Z: 10, Range: 2}
	if g.Reached(Vec3{X: 0.5, Y: 64, Z: 0.5}) {
		t.Fatalf("far position should not satisfy goal")
	}
	if !g.Reached(Vec3{X: 11.5, Y: 64, Z: 10.5}) {
		t.Fatalf("near position should satisfy goal")
	}
	if err := (Goal{Kind: "fly"}).Validate(); err != ErrInvalidGoal {
		t.Fatalf("expected ErrInvalidGoal, got %v", err)
	}
}
