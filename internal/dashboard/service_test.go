package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-console/internal/calls"
)

func TestService_SummaryAndHourly(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 4, 15, 14, 30, 0, 0, loc)
	repo := NewMemoryRepo(
		calls.CallRecord{ID: 1, Direction: calls.DirectionInbound, DurationSeconds: 60, StartedAt: now.Add(-time.Hour)},
		calls.CallRecord{ID: 2, Direction: calls.DirectionInbound, IsMissed: true, StartedAt: now.Add(-2 * time.Hour)},
		calls.CallRecord{ID: 3, Direction: calls.DirectionOutbound, DurationSeconds: 120, StartedAt: now.AddDate(0, 0, -3)},
		calls.CallRecord{ID: 4, Direction: calls.DirectionOutbound, DurationSeconds: 999, StartedAt: now.AddDate(0, 0, -10)},
	)
	svc := NewService(repo, loc)
	svc.clock = func() time.Time { return now }

	s, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.TodayTotal)
	assert.Equal(t, 1, s.TodayMissed)
	assert.Equal(t, 3, s.WeekTotal)
	assert.Equal(t, 1, s.WeekMissed)
	assert.Equal(t, 2, s.Inbound)
	assert.Equal(t, 1, s.Outbound)
	assert.Equal(t, 60.0, s.AvgDurationSeconds)
	assert.Equal(t, 30.0, s.AvgInboundDurationSeconds)
	assert.Equal(t, 120.0, s.AvgOutboundDurationSeconds)

	h, err := svc.Hourly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h[13])
	assert.Equal(t, 1, h[12])
	assert.Equal(t, 0, h[14])
}

func TestService_Timeseries(t *testing.T) {
	now := time.Date(2026, 4, 15, 14, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo(
		calls.CallRecord{ID: 1, StartedAt: now.AddDate(0, 0, -1)},
		calls.CallRecord{ID: 2, IsMissed: true, StartedAt: now.AddDate(0, 0, -1)},
		calls.CallRecord{ID: 3, StartedAt: now},
		calls.CallRecord{ID: 4, StartedAt: now.AddDate(0, 0, -20)},
	)
	svc := NewService(repo, time.UTC)
	svc.clock = func() time.Time { return now }

	ts, err := svc.Timeseries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Range7Days, ts.Range)
	assert.Equal(t, []TimeseriesPoint{
		{Date: "2026-04-14", Total: 2, Missed: 1},
		{Date: "2026-04-15", Total: 1},
	}, ts.Points)

	ts, err = svc.TimeseriesRange(context.Background(), Range30Days)
	require.NoError(t, err)
	assert.Len(t, ts.Points, 3)

	_, err = svc.TimeseriesRange(context.Background(), "1y")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestService_LatestCallsNewestFirst(t *testing.T) {
	now := time.Now()
	repo := NewMemoryRepo(
		calls.CallRecord{ID: 1, StartedAt: now.Add(-time.Hour)},
		calls.CallRecord{ID: 2, StartedAt: now},
		calls.CallRecord{ID: 3, StartedAt: now.Add(-time.Minute)},
	)
	out, err := NewService(repo, nil).LatestCalls(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].ID)
	assert.Equal(t, int64(3), out[1].ID)
}

func TestHourlyResponse_Folds(t *testing.T) {
	r := HourlyResponse{Buckets: []HourBucket{{Hour: 1, Count: 2}, {Hour: 1, Count: 1}, {Hour: 24, Count: 5}, {Hour: 3, Count: -1}}}
	h := r.Hourly()
	assert.Equal(t, 3, h[1])
	assert.Equal(t, 0, h[3])
}
