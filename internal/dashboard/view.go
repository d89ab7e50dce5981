package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"dispatch-console/internal/calls"
)

// DefaultLatestLimit is the number of calls in the latest-calls section.
const DefaultLatestLimit = 10

// Section names one independently loaded part of the dashboard.
type Section string

const (
	SectionSummary    Section = "summary"
	SectionHourly     Section = "hourly"
	SectionLatest     Section = "latest"
	SectionTimeseries Section = "timeseries"
)

// Sections lists every section in display order.
func Sections() []Section {
	return []Section{SectionSummary, SectionHourly, SectionLatest, SectionTimeseries}
}

// Source provides the dashboard sections. The upstream API client and the
// replica-backed Service both implement it.
type Source interface {
	Summary(ctx context.Context) (Summary, error)
	Hourly(ctx context.Context) ([HoursPerDay]int, error)
	LatestCalls(ctx context.Context, limit int) ([]calls.CallRecord, error)
	Timeseries(ctx context.Context) (Timeseries, error)
}

// PartialError reports the sections that failed to load. Sections that loaded
// are still applied.
type PartialError struct {
	Sections map[Section]error
}

func (e *PartialError) Error() string {
	parts := make([]string, 0, len(e.Sections))
	for s, err := range e.Sections {
		parts = append(parts, fmt.Sprintf("%s: %v", s, err))
	}
	sort.Strings(parts)
	return "dashboard: partial load: " + strings.Join(parts, "; ")
}

// PartialResult marks the error as carrying a Result that still has to be
// applied so the failed sections are recorded.
func (e *PartialError) PartialResult() bool { return true }

func (e *PartialError) Unwrap() []error {
	out := make([]error, 0, len(e.Sections))
	for _, err := range e.Sections {
		out = append(out, err)
	}
	return out
}

// Result is one fetch of every section. A nil field means the section failed.
type Result struct {
	Summary    *Summary
	Hourly     *[HoursPerDay]int
	Latest     []calls.CallRecord
	LatestOK   bool
	Timeseries *Timeseries
	Errs       map[Section]error
	FetchedAt  time.Time
}

// KPIs are ratios derived from the summary.
type KPIs struct {
	MissedRateToday float64 `json:"missed_rate_today"`
	MissedRateWeek  float64 `json:"missed_rate_week"`
	InboundShare    float64 `json:"inbound_share"`
}

// ComputeKPIs derives ratios in [0,1]; empty denominators give 0.
func ComputeKPIs(s Summary) KPIs {
	return KPIs{
		MissedRateToday: ratio(s.TodayMissed, s.TodayTotal),
		MissedRateWeek:  ratio(s.WeekMissed, s.WeekTotal),
		InboundShare:    ratio(s.Inbound, s.Inbound+s.Outbound),
	}
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Bars scales hourly counts to [0,1] by the largest bucket. The denominator
// is at least 1, so an empty day yields all zeros.
func Bars(hourly [HoursPerDay]int) [HoursPerDay]float64 {
	max := 1
	for _, c := range hourly {
		if c > max {
			max = c
		}
	}
	var out [HoursPerDay]float64
	for i, c := range hourly {
		if c > 0 {
			out[i] = float64(c) / float64(max)
		}
	}
	return out
}

// Snapshot is the rendered state of the dashboard.
type Snapshot struct {
	Summary    *Summary              `json:"summary"`
	KPIs       *KPIs                 `json:"kpis,omitempty"`
	Hourly     *[HoursPerDay]int     `json:"hourly"`
	Bars       *[HoursPerDay]float64 `json:"bars,omitempty"`
	Latest     []calls.CallRecord    `json:"latest"`
	Timeseries *Timeseries           `json:"timeseries"`
	// Errors holds the message of every section whose last load failed.
	Errors   map[Section]string    `json:"errors,omitempty"`
	LoadedAt map[Section]time.Time `json:"loaded_at"`
}

// View keeps the last good data of every section.
type View struct {
	src   Source
	limit int
	log   *slog.Logger
	clock func() time.Time

	mu       sync.RWMutex
	summary  *Summary
	hourly   *[HoursPerDay]int
	latest   []calls.CallRecord
	series   *Timeseries
	errs     map[Section]error
	loadedAt map[Section]time.Time
}

type ViewOption func(*View)

func WithLatestLimit(n int) ViewOption { return func(v *View) { v.limit = n } }

func WithViewLogger(l *slog.Logger) ViewOption { return func(v *View) { v.log = l } }

func NewView(src Source, opts ...ViewOption) *View {
	v := &View{
		src:      src,
		limit:    DefaultLatestLimit,
		log:      slog.Default(),
		clock:    time.Now,
		errs:     map[Section]error{},
		loadedAt: map[Section]time.Time{},
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Fetch loads every section concurrently. It fails only when every section
// failed; otherwise per-section failures travel in Result.Errs.
func (v *View) Fetch(ctx context.Context) (Result, error) {
	res := Result{Errs: map[Section]error{}}
	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(s Section, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				res.Errs[s] = err
				mu.Unlock()
			}
		}()
	}

	run(SectionSummary, func() error {
		s, err := v.src.Summary(ctx)
		if err == nil {
			mu.Lock()
			res.Summary = &s
			mu.Unlock()
		}
		return err
	})
	run(SectionHourly, func() error {
		h, err := v.src.Hourly(ctx)
		if err == nil {
			mu.Lock()
			res.Hourly = &h
			mu.Unlock()
		}
		return err
	})
	run(SectionLatest, func() error {
		l, err := v.src.LatestCalls(ctx, v.limit)
		if err == nil {
			mu.Lock()
			res.Latest, res.LatestOK = l, true
			mu.Unlock()
		}
		return err
	})
	run(SectionTimeseries, func() error {
		t, err := v.src.Timeseries(ctx)
		if err == nil {
			mu.Lock()
			res.Timeseries = &t
			mu.Unlock()
		}
		return err
	})
	wg.Wait()
	res.FetchedAt = v.clock()

	if len(res.Errs) == len(Sections()) {
		return res, &PartialError{Sections: res.Errs}
	}
	return res, nil
}

// Apply merges the sections of r that loaded and records the failures of the
// others, keeping their previous data.
func (v *View) Apply(r Result) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if r.Summary != nil {
		v.summary = r.Summary
		v.loaded(SectionSummary, r.FetchedAt)
	}
	if r.Hourly != nil {
		v.hourly = r.Hourly
		v.loaded(SectionHourly, r.FetchedAt)
	}
	if r.LatestOK {
		v.latest = r.Latest
		v.loaded(SectionLatest, r.FetchedAt)
	}
	if r.Timeseries != nil {
		v.series = r.Timeseries
		v.loaded(SectionTimeseries, r.FetchedAt)
	}
	for s, err := range r.Errs {
		v.errs[s] = err
		v.log.Warn("dashboard section failed", "section", s, "err", err)
	}
}

func (v *View) loaded(s Section, at time.Time) {
	delete(v.errs, s)
	v.loadedAt[s] = at
}

// Refresh fetches and applies once. It returns a *PartialError when any
// section failed.
func (v *View) Refresh(ctx context.Context) error {
	r, err := v.Fetch(ctx)
	v.Apply(r)
	if err != nil {
		return err
	}
	if len(r.Errs) > 0 {
		return &PartialError{Sections: r.Errs}
	}
	return nil
}

// Err returns the last failure of section s, if any.
func (v *View) Err(s Section) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.errs[s]
}

func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := Snapshot{
		Summary:    v.summary,
		Hourly:     v.hourly,
		Latest:     append([]calls.CallRecord(nil), v.latest...),
		Timeseries: v.series,
		LoadedAt:   make(map[Section]time.Time, len(v.loadedAt)),
	}
	if v.summary != nil {
		k := ComputeKPIs(*v.summary)
		out.KPIs = &k
	}
	if v.hourly != nil {
		b := Bars(*v.hourly)
		out.Bars = &b
	}
	for s, t := range v.loadedAt {
		out.LoadedAt[s] = t
	}
	if len(v.errs) > 0 {
		out.Errors = make(map[Section]string, len(v.errs))
		for s, err := range v.errs {
			out.Errors[s] = message(err)
		}
	}
	return out
}

type userMessager interface {
	UserMessage() string
}

// message prefers the server-provided text of API errors.
func message(err error) string {
	var m userMessager
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}

// IsPartial reports whether err is a partial dashboard load.
func IsPartial(err error) bool {
	var pe *PartialError
	return errors.As(err, &pe)
}
