package store

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("store: record not found")

// Keyed is implemented by every record kept in a Table.
type Keyed interface {
	Key() int64
}

// Handle identifies one optimistic mutation. Only the most recent handle for
// an identity is current; confirming or rolling back any other handle is a
// no-op.
type Handle struct {
	ID  int64
	seq uint64
}

// Valid reports whether h was issued by ApplyOptimistic.
func (h Handle) Valid() bool { return h.seq != 0 }

type mutation[T any] struct {
	seq uint64
	// base is the last server-known value, restored on rollback.
	base    T
	patches []patch[T]
}

// patch is one local edit folded into a pending mutation, tagged with the
// seq of the handle that issued it.
type patch[T any] struct {
	seq uint64
	fn  func(*T)
}

func (m *mutation[T]) owns(seq uint64) bool {
	for _, p := range m.patches {
		if p.seq == seq {
			return true
		}
	}
	return false
}

// project returns base with every remaining patch applied.
func (m *mutation[T]) project() T {
	row := m.base
	for _, p := range m.patches {
		p.fn(&row)
	}
	return row
}

// Table is the authoritative in-memory collection of one entity type.
// Every method is a single critical section.
type Table[T Keyed] struct {
	mu      sync.RWMutex
	rows    map[int64]T
	order   []int64
	pending map[int64]*mutation[T]
	seq     uint64
}

func NewTable[T Keyed]() *Table[T] {
	return &Table[T]{
		rows:    map[int64]T{},
		pending: map[int64]*mutation[T]{},
	}
}

// ReplaceAll swaps the whole collection for records.
//
// Records with a pending optimistic mutation keep their local patches on top
// of the fresh server value, and the fresh value becomes the rollback base.
// Pending mutations for identities missing from records are dropped.
func (t *Table[T]) ReplaceAll(records []T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make(map[int64]T, len(records))
	order := make([]int64, 0, len(records))
	for _, r := range records {
		id := r.Key()
		if _, dup := rows[id]; !dup {
			order = append(order, id)
		}
		rows[id] = r
	}

	for id, m := range t.pending {
		fresh, ok := rows[id]
		if !ok {
			delete(t.pending, id)
			continue
		}
		m.base = fresh
		rows[id] = m.project()
	}

	t.rows = rows
	t.order = order
}

// ApplyOptimistic patches the record in place and returns the handle that
// later confirms or rolls the change back. A mutation issued while another one
// is pending for the same identity supersedes it.
func (t *Table[T]) ApplyOptimistic(id int64, fn func(*T)) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[id]
	if !ok {
		return Handle{}, ErrNotFound
	}

	m := &mutation[T]{base: row}
	if prev := t.pending[id]; prev != nil {
		m.base = prev.base
		m.patches = append(m.patches, prev.patches...)
	}
	t.seq++
	m.seq = t.seq
	m.patches = append(m.patches, patch[T]{seq: m.seq, fn: fn})
	fn(&row)
	t.rows[id] = row
	t.pending[id] = m

	return Handle{ID: id, seq: m.seq}, nil
}

// Confirm replaces the optimistic value with the server's record.
// It returns false when h is stale. A stale confirm for a write that a newer
// pending mutation superseded still moves that mutation's rollback base to
// server, so a later rollback does not undo what the server accepted.
func (t *Table[T]) Confirm(h Handle, server T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.currentLocked(h) {
		if m := t.pending[h.ID]; m != nil && m.owns(h.seq) {
			m.base = server
			kept := m.patches[:0]
			for _, p := range m.patches {
				if p.seq > h.seq {
					kept = append(kept, p)
				}
			}
			m.patches = kept
			t.rows[h.ID] = m.project()
		}
		return false
	}
	delete(t.pending, h.ID)
	t.rows[h.ID] = server
	return true
}

// Rollback withdraws the patch of h. Edits issued before h that are still in
// flight stay applied over the last server-known value, and the newest of
// them becomes current again; with none left the record returns to that
// value. It returns false when h is stale.
func (t *Table[T]) Rollback(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.pending[h.ID]
	if m == nil || h.seq == 0 || !m.owns(h.seq) {
		return false
	}
	current := m.seq == h.seq

	kept := m.patches[:0]
	for _, p := range m.patches {
		if p.seq != h.seq {
			kept = append(kept, p)
		}
	}
	m.patches = kept

	if len(m.patches) == 0 {
		t.rows[h.ID] = m.base
		delete(t.pending, h.ID)
		return current
	}
	if current {
		m.seq = m.patches[len(m.patches)-1].seq
	}
	t.rows[h.ID] = m.project()
	return current
}

func (t *Table[T]) currentLocked(h Handle) bool {
	m := t.pending[h.ID]
	return m != nil && h.seq != 0 && m.seq == h.seq
}

// Rewrite applies fn to every record and to every rollback base, without
// touching pending markers. fn returns true when it changed the record.
func (t *Table[T]) Rewrite(fn func(*T) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := 0
	for id, r := range t.rows {
		if fn(&r) {
			t.rows[id] = r
			changed++
		}
	}
	for _, m := range t.pending {
		fn(&m.base)
	}
	return changed
}

// Remove drops id and any pending mutation for it. It reports whether the
// record was present.
func (t *Table[T]) Remove(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	delete(t.pending, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *Table[T]) Get(id int64) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rows[id]
	return r, ok
}

// All returns the records in the order of the last ReplaceAll.
func (t *Table[T]) All() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Pending returns the current handle for id, if a mutation is in flight.
func (t *Table[T]) Pending(id int64) (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m := t.pending[id]
	if m == nil {
		return Handle{}, false
	}
	return Handle{ID: id, seq: m.seq}, true
}
