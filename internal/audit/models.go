package audit

import "time"

// Event is an immutable record of one operator write on the board.
//
// Events are never updated or deleted. Recording is best-effort: a failed
// append must not block the write it describes.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	// Actor is the credential subject of the operator, when known.
	Actor string `json:"actor,omitempty"`

	TeamLeadID int64 `json:"team_lead_id,omitempty"`
	CategoryID int64 `json:"category_id,omitempty"`

	Outcome Outcome `json:"outcome"`

	// Message is a short human-readable description.
	Message string `json:"message,omitempty"`
	// Err carries the server message for failed writes.
	Err string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeCardMoved       EventType = "card_moved"
	EventTypeStatusChanged   EventType = "status_changed"
	EventTypePhoneChanged    EventType = "phone_changed"
	EventTypeCategoryCreated EventType = "category_created"
	EventTypeCategoryRenamed EventType = "category_renamed"
	EventTypeCategoryDeleted EventType = "category_deleted"
	EventTypeTeamLeadCreated EventType = "team_lead_created"
	EventTypeTeamLeadDeleted EventType = "team_lead_deleted"
)

// Outcome is the final state of the write.
type Outcome string

const (
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeFailed     Outcome = "failed"
	// OutcomeSuperseded marks a write whose answer arrived after a newer one.
	OutcomeSuperseded Outcome = "superseded"
)
