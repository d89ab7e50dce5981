package teams

import (
	"sort"
	"time"
)

// Base statuses seeded by the server. The set is open: the server may return
// any other label and clients must keep it as-is.
const (
	StatusAvailable    = "Disponible"
	StatusIntervention = "En intervention"
	StatusUnavailable  = "Indisponible"
)

// BaseStatuses lists the seeded statuses in display order.
func BaseStatuses() []string {
	return []string{StatusAvailable, StatusIntervention, StatusUnavailable}
}

// TeamLead is a field response team and its leader.
//
// Status, CategoryID and Phone are the only fields the console edits.
// A nil CategoryID means "uncategorized".
type TeamLead struct {
	ID              int64  `json:"id"`
	TeamName        string `json:"team_name"`
	LeaderFirstName string `json:"leader_first_name"`
	LeaderLastName  string `json:"leader_last_name"`
	Phone           string `json:"phone"`
	Status          string `json:"status"`
	CategoryID      *int64 `json:"category_id"`

	// InterventionStartedAt is set by the server while Status is StatusIntervention.
	InterventionStartedAt *time.Time `json:"intervention_started_at,omitempty"`
}

func (t TeamLead) Key() int64 { return t.ID }

// InCategory reports whether t belongs to category id; a nil id matches
// uncategorized leads.
func (t TeamLead) InCategory(id *int64) bool {
	if t.CategoryID == nil || id == nil {
		return t.CategoryID == nil && id == nil
	}
	return *t.CategoryID == *id
}

// InterventionElapsed returns how long the team has been on intervention.
func (t TeamLead) InterventionElapsed(now time.Time) time.Duration {
	if t.Status != StatusIntervention || t.InterventionStartedAt == nil {
		return 0
	}
	if d := now.Sub(*t.InterventionStartedAt); d > 0 {
		return d
	}
	return 0
}

// Category is a Kanban column. Position orders columns ascending; it does not
// need to be contiguous.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

func (c Category) Key() int64 { return c.ID }

// SortCategories orders categories by position, then by id.
func SortCategories(cats []Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Position != cats[j].Position {
			return cats[i].Position < cats[j].Position
		}
		return cats[i].ID < cats[j].ID
	})
}

// ID returns a pointer to a copy of id, for building category references.
func ID(id int64) *int64 { return &id }
