package push

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// EventType is the "type" field of a push message.
type EventType string

const (
	TypeInvalidate     EventType = "invalidate"
	TypeNewCall        EventType = "new_call"
	TypeSummaryUpdated EventType = "summary_updated"
	TypeSyncComplete   EventType = "sync_complete"
	TypeSyncError      EventType = "sync_error"
)

// Event is one decoded push message. Every event is a refresh trigger; the
// typed fields only feed best-effort status display.
type Event struct {
	Type       EventType       `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	NewCount   int             `json:"new_count,omitempty"`
	Message    string          `json:"message,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Parse decodes a push message. Anything unparseable, or without a type, is a
// generic invalidation.
func Parse(raw []byte, now time.Time) Event {
	ev := Event{Type: TypeInvalidate, ReceivedAt: now}

	var msg wireMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &msg); err != nil || msg.Type == "" {
		return ev
	}
	ev.Type = EventType(msg.Type)
	ev.Payload = msg.Payload

	if len(msg.Payload) == 0 {
		return ev
	}
	var p struct {
		NewCount int    `json:"new_count"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(msg.Payload, &p); err == nil {
		ev.NewCount = p.NewCount
		ev.Message = p.Message
	}
	return ev
}

// Subscription is an open push channel.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Subscriber opens push channels.
type Subscriber interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// deliver hands ev to the consumer without ever blocking the reader: when the
// buffer is full a refresh is already pending, so the event is redundant.
func deliver(ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

// Nop is a Subscriber whose channel never fires; polling alone drives refreshes.
type Nop struct{}

func (Nop) Subscribe(context.Context) (Subscription, error) {
	return &nopSubscription{ch: make(chan Event)}, nil
}

type nopSubscription struct {
	ch chan Event
}

func (s *nopSubscription) Events() <-chan Event { return s.ch }
func (s *nopSubscription) Close() error         { return nil }
