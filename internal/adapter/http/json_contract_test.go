package httpadapter

import (
	"encoding/json"
	"testing"
	"time"

	"agentbridge/internal/adapter/metrics/inmemory"
	"agentbridge/internal/app/runs"
	"agentbridge/internal/app/session"
	"agentbridge/internal/domain/world"
)

func TestJSONContracts_OperatorPayloadsUseSnakeCase(t *testing.T) {
	started := time.Unix(1_700_000_000, 0).UTC()
	run := runs.Run{
		ID:         "run-1",
		SessionID:  "sess-1",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		DurationMS: 1000,
		Outcome:    "success",
	}

	cases := []struct {
		name    string
		payload any
		want    []string
		notWant []string
	}{
		{
			name:    "run",
			payload: run,
			want:    []string{"id", "session_id", "started_at", "finished_at", "duration_ms", "outcome"},
			notWant: []string{"SessionID", "StartedAt", "DurationMS"},
		},
		{
			name:    "runs_list",
			payload: runs.ListResponse{Runs: []runs.Run{run}, Outcomes: map[string]int{"success": 1}},
			want:    []string{"runs", "outcomes"},
			notWant: []string{"Runs", "Outcomes"},
		},
		{
			name:    "status",
			payload: session.Status{State: "spawned", SessionID: "sess-1", Tick: 12, LastRunID: "run-1"},
			want:    []string{"state", "session_id", "tick", "last_run_id"},
			notWant: []string{"SessionID", "LastRunID"},
		},
		{
			name:    "kpi",
			payload: inmemory.Snapshot{StepTotal: 1, ByOutcome: map[string]uint64{"success": 1}},
			want:    []string{"step_total", "step_success", "step_failure", "by_outcome", "avg_step_ms", "max_step_ms"},
			notWant: []string{"StepTotal", "ByOutcome"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := marshalToMap(t, tc.payload)
			assertKeys(t, got, tc.want, tc.notWant)
			if tc.name == "runs_list" {
				first := asMap(asSlice(got["runs"])[0])
				if _, ok := first["duration_ms"]; !ok {
					t.Fatalf("expected nested key runs[0].duration_ms in %v", got)
				}
			}
		})
	}
}

func TestJSONContracts_WorldPayloadsUseCamelCase(t *testing.T) {
	snapshot := world.Snapshot{
		Voxels: []string{"stone"},
		Status: world.Status{Health: 20, OnGround: true, TimeOfDay: "day", InventoryUsed: 2},
	}
	got := marshalToMap(t, snapshot)
	assertKeys(t, got, []string{"voxels", "status", "inventory", "nearbyChests", "blockRecords"}, []string{"nearby_chests", "Status"})
	assertKeys(t, asMap(got["status"]), []string{"onGround", "timeOfDay", "inventoryUsed", "isInWater", "elapsedTime"}, []string{"on_ground", "time_of_day"})

	opts := world.StartOptions{Port: 25565, WaitTicks: 20, Reset: "soft"}
	assertKeys(t, marshalToMap(t, opts), []string{"port", "waitTicks", "reset"}, []string{"wait_ticks", "WaitTicks"})
}

func marshalToMap(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return got
}

func assertKeys(t *testing.T, got map[string]any, want, notWant []string) {
	t.Helper()
	for _, key := range want {
		if _, ok := got[key]; !ok {
			t.Fatalf("expected key %q in %v", key, got)
		}
	}
	for _, key := range notWant {
		if _, ok := got[key]; ok {
			t.Fatalf("unexpected key %q in %v", key, got)
		}
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
