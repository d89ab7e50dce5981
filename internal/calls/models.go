package calls

import "time"

// CallRecord is one call as reported by the call-history API.
//
// Records are immutable once fetched: a refresh replaces the whole page, it
// never patches individual fields.
//
// Team and leader fields are filled by the server when the calling or called
// number matches a known team lead.
type CallRecord struct {
	ID        int64     `json:"id" db:"id"`
	Direction Direction `json:"direction" db:"direction"`

	CallingNumber string `json:"calling_number" db:"calling_number"`
	CalledNumber  string `json:"called_number" db:"called_number"`

	CallingTeam   string `json:"calling_team_name,omitempty"`
	CallingLeader string `json:"calling_leader_first_name,omitempty"`
	CalledTeam    string `json:"called_team_name,omitempty"`
	CalledLeader  string `json:"called_leader_first_name,omitempty"`

	// DurationSeconds is never negative.
	DurationSeconds int `json:"duration" db:"duration"`

	// Status is server-defined free text (OVH "nature"/"status").
	Status   string `json:"status,omitempty" db:"status"`
	IsMissed bool   `json:"is_missed" db:"is_missed"`

	StartedAt time.Time `json:"started_at" db:"started_at"`
}

// Key returns the identity used by the entity store.
func (c CallRecord) Key() int64 { return c.ID }

type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Page is one paginated response of GET /calls.
type Page struct {
	Items    []CallRecord `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}
