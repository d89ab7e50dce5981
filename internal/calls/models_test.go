package calls

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCallRecord_DecodesServerShape(t *testing.T) {
	raw := `{
		"id": 42,
		"direction": "INBOUND",
		"calling_number": "0612345678",
		"called_number": "+33145678900",
		"calling_team_name": "Alpha",
		"calling_leader_first_name": "Camille",
		"duration": 0,
		"status": "missed",
		"is_missed": true,
		"started_at": "2024-06-01T08:30:00Z"
	}`
	var c CallRecord
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Key() != 42 || c.Direction != DirectionInbound {
		t.Fatalf("unexpected identity: id=%d direction=%q", c.Key(), c.Direction)
	}
	if c.CallingTeam != "Alpha" || c.CallingLeader != "Camille" {
		t.Fatalf("unexpected calling side: %q %q", c.CallingTeam, c.CallingLeader)
	}
	if !c.IsMissed {
		t.Fatalf("expected missed call")
	}
	if want := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC); !c.StartedAt.Equal(want) {
		t.Fatalf("expected started_at %v, got %v", want, c.StartedAt)
	}
}
