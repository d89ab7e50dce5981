package pgsource

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-console/internal/calls"
	"dispatch-console/internal/query"
	"dispatch-console/pkg/utils"
)

func TestWhereClause(t *testing.T) {
	where, args := whereClause(query.Filter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = whereClause(query.Filter{
		Number:    "06_12",
		Direction: query.DirectionInbound,
		Missed:    query.Yes,
		StartDate: "2026-01-01",
		EndDate:   "2026-01-31",
	})
	assert.Equal(t,
		" WHERE (cr.calling_number ILIKE $1 OR cr.called_number ILIKE $1)"+
			" AND lower(cr.direction) IN ($2, 'inbound')"+
			" AND cr.is_missed = $3"+
			" AND cr.timestamp >= $4::date"+
			" AND cr.timestamp < $5::date + 1",
		where)
	assert.Equal(t, []any{`%06\_12%`, "in", true, "2026-01-01", "2026-01-31"}, args)
}

func TestWhereClause_MissedNo(t *testing.T) {
	where, args := whereClause(query.Filter{Missed: query.No, Direction: query.DirectionOutbound})
	assert.Equal(t, " WHERE lower(cr.direction) IN ($1, 'outbound') AND cr.is_missed = $2", where)
	assert.Equal(t, []any{"out", false}, args)
}

func TestNormalizeDirection(t *testing.T) {
	assert.Equal(t, calls.DirectionInbound, NormalizeDirection("in"))
	assert.Equal(t, calls.DirectionInbound, NormalizeDirection("INBOUND"))
	assert.Equal(t, calls.DirectionOutbound, NormalizeDirection(" out "))
	assert.Equal(t, calls.Direction("UNKNOWN"), NormalizeDirection("unknown"))
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.vals[i].(int64)
		case *int:
			*p = r.vals[i].(int)
		case *string:
			*p = r.vals[i].(string)
		case *bool:
			*p = r.vals[i].(bool)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		}
	}
	return nil
}

func TestScanCall(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	c, err := scanCall(fakeRow{vals: []any{
		int64(7), "in", "0612345678", "+33100000000",
		"Alpha", "Jeanne", "", "",
		-3, "missed", true, at,
	}})
	require.NoError(t, err)
	assert.Equal(t, calls.CallRecord{
		ID: 7, Direction: calls.DirectionInbound,
		CallingNumber: "0612345678", CalledNumber: "+33100000000",
		CallingTeam: "Alpha", CallingLeader: "Jeanne",
		DurationSeconds: 0, Status: "missed", IsMissed: true, StartedAt: at,
	}, c)

	_, err = scanCall(fakeRow{err: errors.New("bad row")})
	assert.Error(t, err)
}

func TestReplicaPool_ForcesReadOnlySessions(t *testing.T) {
	p := ReplicaPool(utils.PostgresPoolConfig{MaxOpenConns: 3})
	assert.True(t, p.ReadOnly)
	assert.Equal(t, DefaultStatementTimeout, p.StatementTimeout)
	assert.Equal(t, 3, p.MaxOpenConns)

	p = ReplicaPool(utils.PostgresPoolConfig{StatementTimeout: time.Second})
	assert.Equal(t, time.Second, p.StatementTimeout)
	assert.Contains(t, utils.SessionDSN("host=replica", p), "default_transaction_read_only=on")
}

func TestCallColumns_JoinAtMostOneTeamLeadPerSide(t *testing.T) {
	// Two team leads sharing a number must not duplicate the call row.
	assert.Equal(t, 2, strings.Count(callColumns, "LEFT JOIN LATERAL"))
	assert.Equal(t, 2, strings.Count(callColumns, "ORDER BY id LIMIT 1"))
	assert.NotContains(t, callColumns, "LEFT JOIN team_leads")
}
