package session

import (
	"context"
	"fmt"
	"time"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/execution"
	"agentbridge/internal/domain/world"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/google/uuid"
)

type StepRequest struct {
	Code     string
	Programs string
}

// Step runs one submission and returns the events it produced followed by
// the final snapshot. Faults and timeouts are reported as onError events,
// not as errors.
func (c *Controller) Step(ctx context.Context, req StepRequest) ([]world.Event, error) {
	c.mu.Lock()
	switch c.state {
	case Spawned:
	case Running:
		c.mu.Unlock()
		return nil, ErrSessionBusy
	default:
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	c.setStateLocked(Running)
	s := c.sess
	c.mu.Unlock()

	resp := newResponder()
	go c.lifecycle(s, execution.Submission{Preamble: req.Programs, Code: req.Code}, resp)

	select {
	case events := <-resp.done():
		return events, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lifecycle runs detached from the request so that a departed caller
// cannot leave the world unfrozen.
func (c *Controller) lifecycle(s *session, sub execution.Submission, resp *responder) {
	started := c.deps.Now()
	w := s.world
	agg := s.events

	agg.Reset()
	c.deps.Liveness.Arm()

	runCtx, cancel := context.WithCancelCause(s.ctx)
	defer cancel(nil)

	if err := w.AwaitTicks(s.ctx, s.opts.WaitTicks); err != nil {
		hlog.Warnf("session %s: settle before step: %v", s.id, err)
	}
	c.intent(s.ctx, w, "/tick unfreeze")

	guardDone := make(chan struct{})
	guard := time.AfterFunc(c.cfg.OuterDeadline, func() {
		defer close(guardDone)
		cancel(errOuterDeadline)
		hlog.Warnf("session %s: step exceeded %s", s.id, c.cfg.OuterDeadline)
		c.intent(s.ctx, w, "/tick freeze")
		events := []world.Event{world.ErrorEvent(c.outerTimeoutMessage())}
		events = append(events, agg.Drain()...)
		if snap, err := w.Observe(s.ctx); err == nil {
			events = append(events, snap.Entries()...)
		}
		resp.send(events)
	})

	outcome := c.deps.Executor.Execute(runCtx, w, sub)
	fired := !guard.Stop()
	if fired {
		<-guardDone
	}
	c.deps.Liveness.Disarm()

	if !fired && reportable(outcome) {
		msg := outcome.Fault.Message
		if outcome.Kind == execution.KindFault {
			msg = c.deps.Translator.Translate(outcome.Fault, sub)
		}
		payload := map[string]any{world.KindError: msg}
		if snap, err := w.Observe(s.ctx); err == nil {
			payload = snap.Merge(payload)
		}
		agg.Append(world.NewEvent(world.KindError, payload))
	}

	c.normalize(s)
	if err := w.AwaitTicks(s.ctx, s.opts.WaitTicks); err != nil {
		hlog.Warnf("session %s: settle after step: %v", s.id, err)
	}
	c.intent(s.ctx, w, "/tick freeze")

	lost := sessionLost(s)
	events := agg.Drain()
	if lost {
		events = append(events, world.ErrorEvent("SessionLost: world session closed during step"))
	} else if snap, err := w.Observe(s.ctx); err != nil {
		lost = true
		events = append(events, world.ErrorEvent("SessionLost: observe failed: "+err.Error()))
	} else {
		events = append(events, snap.Entries()...)
	}
	resp.send(events)

	label := outcome.Label()
	if fired {
		label = execution.TimedOut(execution.ScopeOuter, "").Label()
	}
	c.finish(s, sub, label, started, resp.response(), lost)
}

// reportable reports whether the outcome needs an onError event. Outer
// cancellation is answered by the deadline guard or by the session loss.
func reportable(o execution.Outcome) bool {
	switch o.Kind {
	case execution.KindFault:
		return true
	case execution.KindTimedOut:
		return o.Scope == execution.ScopeInner
	}
	return false
}

func (c *Controller) finish(s *session, sub execution.Submission, label string, started time.Time, events []world.Event, lost bool) {
	finished := c.deps.Now()
	run := ports.RunRecord{
		ID:         uuid.NewString(),
		SessionID:  s.id,
		StartedAt:  started,
		FinishedAt: finished,
		Code:       sub.Code,
		Programs:   sub.Preamble,
		Outcome:    label,
		Message:    firstError(events),
		Events:     events,
	}
	ctx := context.Background()
	if c.deps.Runs != nil {
		if err := c.deps.Runs.Save(ctx, run); err != nil {
			hlog.Errorf("session %s: save run %s: %v", s.id, run.ID, err)
		}
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordStep(label, finished.Sub(started))
	}
	if c.deps.Transcript != nil {
		if err := c.deps.Transcript.Write(transcriptLine{
			RunID:     run.ID,
			SessionID: s.id,
			Outcome:   label,
			Code:      sub.Code,
			Programs:  sub.Preamble,
			Events:    events,
			At:        finished.UTC(),
		}); err != nil {
			hlog.Warnf("session %s: transcript: %v", s.id, err)
		}
	}
	hlog.Infof("session %s: step %s finished as %s in %s", s.id, run.ID, label, finished.Sub(started))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = run.ID
	if c.sess != s {
		return
	}
	if lost {
		hlog.Warnf("session %s: world lost during step", s.id)
		c.teardownLocked(errWorldLost)
		return
	}
	c.setStateLocked(Spawned)
}

type transcriptLine struct {
	RunID     string        `json:"run_id"`
	SessionID string        `json:"session_id"`
	Outcome   string        `json:"outcome"`
	Code      string        `json:"code"`
	Programs  string        `json:"programs,omitempty"`
	Events    []world.Event `json:"events"`
	At        time.Time     `json:"at"`
}

func firstError(events []world.Event) string {
	for _, e := range events {
		if e.Kind == world.KindError {
			return e.Message()
		}
	}
	return ""
}

func sessionLost(s *session) bool {
	if s.ctx.Err() != nil {
		return true
	}
	select {
	case <-s.world.Done():
		return true
	default:
		return false
	}
}

func (c *Controller) intent(ctx context.Context, w ports.World, cmd string) {
	if err := w.IssueIntent(ctx, cmd); err != nil {
		hlog.Warnf("session: intent %q: %v", cmd, err)
	}
}

func (c *Controller) outerTimeoutMessage() string {
	return fmt.Sprintf("TimeoutError: Code execution exceeded %s.", humanDuration(c.cfg.OuterDeadline))
}

func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	case d >= time.Second && d%time.Second == 0:
		return plural(int64(d/time.Second), "second")
	default:
		return d.String()
	}
}
