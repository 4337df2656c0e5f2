package metrics

import (
	"testing"
	"time"

	"agentbridge/internal/adapter/metrics/inmemory"
)

func TestFanoutForwardsToAllSinks(t *testing.T) {
	a, b := inmemory.NewRecorder(), inmemory.NewRecorder()
	f := Fanout{a, b}
	f.RecordStep("success", time.Millisecond)
	f.RecordRescue()
	f.RecordSessionLost()

	for i, r := range []*inmemory.Recorder{a, b} {
		s := r.Snapshot()
		if s.StepTotal != 1 || s.Rescues != 1 || s.SessionsLost != 1 {
			t.Fatalf("sink %d missed records: %+v", i, s)
		}
	}
}
