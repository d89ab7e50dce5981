package store

import (
	"dispatch-console/internal/calls"
	"dispatch-console/internal/teams"
)

// Store groups the per-entity tables of one console session. It is created
// once and passed to every view that reads or writes it.
type Store struct {
	Calls      *Feed[calls.CallRecord]
	TeamLeads  *Table[teams.TeamLead]
	Categories *Table[teams.Category]
}

func New() *Store {
	return &Store{
		Calls:      NewFeed[calls.CallRecord](DefaultFeedCapacity),
		TeamLeads:  NewTable[teams.TeamLead](),
		Categories: NewTable[teams.Category](),
	}
}

// SortedCategories returns categories in column order.
func (s *Store) SortedCategories() []teams.Category {
	cats := s.Categories.All()
	teams.SortCategories(cats)
	return cats
}

// DetachCategory makes every team lead that references id uncategorized.
// It returns the number of visible records changed.
func (s *Store) DetachCategory(id int64) int {
	return s.TeamLeads.Rewrite(func(tl *teams.TeamLead) bool {
		if tl.CategoryID == nil || *tl.CategoryID != id {
			return false
		}
		tl.CategoryID = nil
		return true
	})
}

// RemoveCategory drops a deleted category and detaches the team leads that
// referenced it, ahead of the next refresh.
func (s *Store) RemoveCategory(id int64) int {
	s.Categories.Remove(id)
	return s.DetachCategory(id)
}

// HasCategory reports whether id names a known category. A nil id is always
// valid.
func (s *Store) HasCategory(id *int64) bool {
	if id == nil {
		return true
	}
	_, ok := s.Categories.Get(*id)
	return ok
}
