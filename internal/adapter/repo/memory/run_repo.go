package memory

import (
	"context"
	"sort"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
)

type RunRepo struct {
	store *Store
}

func NewRunRepo(store *Store) RunRepo {
	return RunRepo{store: store}
}

func (r RunRepo) Save(_ context.Context, run ports.RunRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.runs[run.ID]; exists {
		return ports.ErrConflict
	}
	run.Events = append([]world.Event(nil), run.Events...)
	r.store.runs[run.ID] = run
	r.store.order = append(r.store.order, run.ID)
	if r.store.cap > 0 && len(r.store.order) > r.store.cap {
		evict := r.store.order[0]
		r.store.order = r.store.order[1:]
		delete(r.store.runs, evict)
	}
	return nil
}

func (r RunRepo) Get(_ context.Context, id string) (ports.RunRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	run, ok := r.store.runs[id]
	if !ok {
		return ports.RunRecord{}, ports.ErrNotFound
	}
	return run, nil
}

func (r RunRepo) List(_ context.Context, q ports.RunQuery) ([]ports.RunRecord, error) {
	r.store.mu.RLock()
	out := make([]ports.RunRecord, 0, len(r.store.runs))
	for _, run := range r.store.runs {
		if !q.From.IsZero() && run.StartedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && run.StartedAt.After(q.To) {
			continue
		}
		out = append(out, run)
	}
	r.store.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
