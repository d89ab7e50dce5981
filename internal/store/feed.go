package store

import (
	"sync"
	"time"

	"dispatch-console/internal/query"
)

// DefaultFeedCapacity bounds how many filters a Feed remembers.
const DefaultFeedCapacity = 16

// Snapshot is a self-consistent fetch result for one filter.
type Snapshot[T any] struct {
	Filter    query.Filter `json:"filter"`
	Records   []T          `json:"records"`
	Total     int          `json:"total"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Feed keeps at most one snapshot per filter. Putting a snapshot for a filter
// fully replaces the previous one; the least recently written filter is
// evicted past capacity.
type Feed[T any] struct {
	mu       sync.RWMutex
	capacity int
	snaps    map[string]Snapshot[T]
	keys     []string
}

func NewFeed[T any](capacity int) *Feed[T] {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed[T]{capacity: capacity, snaps: map[string]Snapshot[T]{}}
}

func (f *Feed[T]) Put(s Snapshot[T]) {
	key := query.Key(s.Filter)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.snaps[key] = s
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
	f.keys = append(f.keys, key)
	for len(f.keys) > f.capacity {
		delete(f.snaps, f.keys[0])
		f.keys = f.keys[1:]
	}
}

func (f *Feed[T]) Get(filter query.Filter) (Snapshot[T], bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.snaps[query.Key(filter)]
	return s, ok
}

func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.snaps)
}
