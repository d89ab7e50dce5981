package dashboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"dispatch-console/internal/calls"
)

// MemoryRepo is an in-memory Repository for tests and offline runs.
type MemoryRepo struct {
	mu    sync.Mutex
	Calls []calls.CallRecord
}

func NewMemoryRepo(rows ...calls.CallRecord) *MemoryRepo {
	return &MemoryRepo{Calls: rows}
}

func (r *MemoryRepo) ListCalls(ctx context.Context, from, to time.Time) ([]calls.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CallRecord, 0)
	for _, c := range r.Calls {
		if c.StartedAt.Before(from) || !c.StartedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) LatestCalls(ctx context.Context, limit int) ([]calls.CallRecord, error) {
	r.mu.Lock()
	out := append([]calls.CallRecord(nil), r.Calls...)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
