package dashboard

import (
	"context"
	"errors"
	"sort"
	"time"

	"dispatch-console/internal/calls"
)

var ErrInvalidRange = errors.New("dashboard: invalid range")

// Timeseries ranges accepted by Service.TimeseriesRange.
const (
	Range7Days  = "7d"
	Range30Days = "30d"
)

// Repository reads raw call records for local aggregation.
type Repository interface {
	// ListCalls returns calls started in [from, to).
	ListCalls(ctx context.Context, from, to time.Time) ([]calls.CallRecord, error)
	// LatestCalls returns the most recent calls, newest first.
	LatestCalls(ctx context.Context, limit int) ([]calls.CallRecord, error)
}

// Service computes the dashboard aggregates from raw call records. It is the
// Source used when the console reads from a replica instead of the upstream
// aggregate endpoints.
type Service struct {
	repo  Repository
	clock func() time.Time
	loc   *time.Location
}

func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, clock: time.Now, loc: loc}
}

func (s *Service) midnight() time.Time {
	now := s.clock().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	if s.repo == nil {
		return Summary{}, errors.New("dashboard: repository not configured")
	}
	now := s.clock()
	today := s.midnight()
	weekStart := now.Add(-7 * 24 * time.Hour)
	from := weekStart
	if today.Before(from) {
		from = today
	}

	rows, err := s.repo.ListCalls(ctx, from, now.Add(time.Nanosecond))
	if err != nil {
		return Summary{}, err
	}
	return Aggregate(rows, today, weekStart), nil
}

// Aggregate folds rows into a Summary. Today counts calls started at or after
// today; the week and every other figure count calls at or after weekStart.
func Aggregate(rows []calls.CallRecord, today, weekStart time.Time) Summary {
	var out Summary
	var total, in, outb int
	var dur, durIn, durOut int
	for _, c := range rows {
		if !c.StartedAt.Before(today) {
			out.TodayTotal++
			if c.IsMissed {
				out.TodayMissed++
			}
		}
		if c.StartedAt.Before(weekStart) {
			continue
		}
		out.WeekTotal++
		if c.IsMissed {
			out.WeekMissed++
		}
		total++
		dur += c.DurationSeconds
		switch c.Direction {
		case calls.DirectionInbound:
			in++
			durIn += c.DurationSeconds
		case calls.DirectionOutbound:
			outb++
			durOut += c.DurationSeconds
		}
	}
	out.Inbound, out.Outbound = in, outb
	out.AvgDurationSeconds = avg(dur, total)
	out.AvgInboundDurationSeconds = avg(durIn, in)
	out.AvgOutboundDurationSeconds = avg(durOut, outb)
	return out
}

func avg(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// Hourly counts today's calls per local hour.
func (s *Service) Hourly(ctx context.Context) ([HoursPerDay]int, error) {
	var out [HoursPerDay]int
	if s.repo == nil {
		return out, errors.New("dashboard: repository not configured")
	}
	today := s.midnight()
	rows, err := s.repo.ListCalls(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return out, err
	}
	for _, c := range rows {
		out[c.StartedAt.In(s.loc).Hour()]++
	}
	return out, nil
}

func (s *Service) LatestCalls(ctx context.Context, limit int) ([]calls.CallRecord, error) {
	if s.repo == nil {
		return nil, errors.New("dashboard: repository not configured")
	}
	return s.repo.LatestCalls(ctx, limit)
}

func (s *Service) Timeseries(ctx context.Context) (Timeseries, error) {
	return s.TimeseriesRange(ctx, Range7Days)
}

// TimeseriesRange returns per-day totals over the last 7 or 30 days, oldest
// first. Days without calls are omitted.
func (s *Service) TimeseriesRange(ctx context.Context, rng string) (Timeseries, error) {
	days := 0
	switch rng {
	case Range7Days:
		days = 7
	case Range30Days:
		days = 30
	default:
		return Timeseries{}, ErrInvalidRange
	}
	if s.repo == nil {
		return Timeseries{}, errors.New("dashboard: repository not configured")
	}

	now := s.clock()
	rows, err := s.repo.ListCalls(ctx, now.AddDate(0, 0, -days), now.Add(time.Nanosecond))
	if err != nil {
		return Timeseries{}, err
	}

	byDay := map[string]*TimeseriesPoint{}
	for _, c := range rows {
		day := c.StartedAt.In(s.loc).Format("2006-01-02")
		p := byDay[day]
		if p == nil {
			p = &TimeseriesPoint{Date: day}
			byDay[day] = p
		}
		p.Total++
		if c.IsMissed {
			p.Missed++
		}
	}

	out := Timeseries{Range: rng, Points: make([]TimeseriesPoint, 0, len(byDay))}
	for _, p := range byDay {
		out.Points = append(out.Points, *p)
	}
	sort.Slice(out.Points, func(i, j int) bool { return out.Points[i].Date < out.Points[j].Date })
	return out, nil
}
