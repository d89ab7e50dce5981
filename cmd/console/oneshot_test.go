package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-console/internal/calls"
)

func TestPrintCalls_UsesDisplayNumbers(t *testing.T) {
	var buf bytes.Buffer
	err := printCalls(&buf, calls.Page{
		Items: []calls.CallRecord{{
			ID: 7, Direction: calls.DirectionInbound,
			CallingNumber: "+33612345678", CalledNumber: "",
			DurationSeconds: 42, IsMissed: true,
			StartedAt: time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC),
		}},
		Total: 1, Page: 1, PageSize: 20,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "06 12 34 56 78")
	assert.Contains(t, out, "—")
	assert.Contains(t, out, "2026-10-19 08:30")
	assert.Contains(t, out, "42s")
	assert.Contains(t, out, "page 1, 1 of 1")
}

func TestRunCalls_RejectsBadFlagsBeforeDialing(t *testing.T) {
	callsMissed = "maybe"
	t.Cleanup(func() { callsMissed = "" })

	err := runCalls(callsCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--missed")
}
