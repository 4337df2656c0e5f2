package inmemory

import (
	"sync"
	"time"

	"agentbridge/internal/app/ports"
)

type Snapshot struct {
	StepTotal       uint64            `json:"step_total"`
	StepSuccess     uint64            `json:"step_success"`
	StepFailure     uint64            `json:"step_failure"`
	ByOutcome       map[string]uint64 `json:"by_outcome"`
	AvgStepMillis   int64             `json:"avg_step_ms"`
	MaxStepMillis   int64             `json:"max_step_ms"`
	Rescues         uint64            `json:"rescues"`
	SessionsLost    uint64            `json:"sessions_lost"`
	LastStepElapsed string            `json:"last_step_elapsed,omitempty"`
}

// Recorder keeps process-lifetime step counters for /ops/kpi.
type Recorder struct {
	mu        sync.Mutex
	success   uint64
	failure   uint64
	byOutcome map[string]uint64
	total     time.Duration
	max       time.Duration
	last      time.Duration
	rescues   uint64
	lost      uint64
}

var _ ports.StepMetrics = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{
		byOutcome: map[string]uint64{},
	}
}

func (r *Recorder) RecordStep(outcome string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if outcome == ports.OutcomeSuccess {
		r.success++
	} else {
		r.failure++
	}
	r.byOutcome[outcome]++
	r.total += elapsed
	r.last = elapsed
	if elapsed > r.max {
		r.max = elapsed
	}
}

func (r *Recorder) RecordRescue() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescues++
}

func (r *Recorder) RecordSessionLost() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost++
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		StepSuccess:   r.success,
		StepFailure:   r.failure,
		StepTotal:     r.success + r.failure,
		ByOutcome:     make(map[string]uint64, len(r.byOutcome)),
		MaxStepMillis: r.max.Milliseconds(),
		Rescues:       r.rescues,
		SessionsLost:  r.lost,
	}
	if out.StepTotal > 0 {
		out.AvgStepMillis = (r.total / time.Duration(out.StepTotal)).Milliseconds()
		out.LastStepElapsed = r.last.String()
	}
	for k, v := range r.byOutcome {
		out.ByOutcome[k] = v
	}
	return out
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}
