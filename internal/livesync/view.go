package livesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dispatch-console/internal/apiclient"
	"dispatch-console/internal/push"
	"dispatch-console/internal/query"
)

// DefaultInterval is the polling period used when ViewConfig.Interval is zero.
const DefaultInterval = 2 * time.Second

// partial is implemented by fetch errors that still carry a snapshot worth
// applying, such as a load where every section failed but each failure must
// be recorded.
type partial interface {
	PartialResult() bool
}

func isPartial(err error) bool {
	var p partial
	return errors.As(err, &p) && p.PartialResult()
}

// ViewConfig describes one live view. Fetch retrieves a snapshot for the
// active filter; Apply writes it into the store.
type ViewConfig[S any] struct {
	Name       string
	Fetch      func(ctx context.Context, f query.Filter) (S, error)
	Apply      func(S)
	Interval   time.Duration
	Subscriber push.Subscriber
	Filter     query.Filter
}

// State is a point-in-time view of the sync status.
type State struct {
	Filter      query.Filter
	Fetches     uint64
	Failures    uint64
	Coalesced   uint64
	Loading     bool
	LastErr     error
	Retryable   bool
	LastSuccess time.Time
	// LastPush is the most recent push message, used for status display.
	LastPush *push.Event
	Closed   bool
}

type waiter struct {
	after uint64
	done  chan error
}

// View is a registered live view over snapshots of type S.
type View[S any] struct {
	cfg     ViewConfig[S]
	log     *slog.Logger
	metrics *Metrics
	forget  func()

	trigger chan struct{}
	reset   chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	sub     push.Subscription

	closeOnce sync.Once

	mu      sync.Mutex
	alive   bool
	filter  query.Filter
	gen     uint64
	started uint64
	waiters []*waiter
	state   State
}

// Register mounts a view: it subscribes to push messages, fetches
// immediately and then polls every Interval until Close.
func Register[S any](m *Manager, cfg ViewConfig[S]) *View[S] {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Subscriber == nil {
		cfg.Subscriber = push.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &View[S]{
		cfg:     cfg,
		log:     m.log.With("view", cfg.Name),
		metrics: m.metrics,
		trigger: make(chan struct{}, 1),
		reset:   make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		alive:   true,
		filter:  cfg.Filter,
	}
	v.state.Filter = cfg.Filter
	v.forget = func() { m.forget(v) }

	if !m.track(v) {
		v.alive = false
		v.state.Closed = true
		cancel()
		close(v.done)
		return v
	}

	sub, err := cfg.Subscriber.Subscribe(ctx)
	if err != nil {
		v.log.Warn("push subscription failed, polling only", "err", err)
		sub = nil
	}
	v.sub = sub

	v.trigger <- struct{}{}
	go v.loop()
	go v.pump()
	return v
}

// Trigger requests a refresh. If a refresh is already queued the request
// coalesces into it.
func (v *View[S]) Trigger() {
	select {
	case v.trigger <- struct{}{}:
	default:
		v.mu.Lock()
		v.state.Coalesced++
		v.mu.Unlock()
		v.metrics.Coalesced.WithLabelValues(v.cfg.Name).Inc()
	}
}

// Filter returns the active filter.
func (v *View[S]) Filter() query.Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// SetFilter switches the active filter. The poll timer restarts and a fetch
// is triggered; results fetched for an older filter are discarded.
func (v *View[S]) SetFilter(f query.Filter) {
	v.mu.Lock()
	if !v.alive || v.filter == f {
		v.mu.Unlock()
		return
	}
	v.filter = f
	v.gen++
	v.state.Filter = f
	v.mu.Unlock()

	select {
	case v.reset <- struct{}{}:
	default:
	}
	v.Trigger()
}

// RefreshAndWait triggers a refresh and blocks until a fetch that started
// after the call has been applied or has failed.
func (v *View[S]) RefreshAndWait(ctx context.Context) error {
	v.mu.Lock()
	if !v.alive {
		v.mu.Unlock()
		return ErrClosed
	}
	w := &waiter{after: v.started, done: make(chan error, 1)}
	v.waiters = append(v.waiters, w)
	v.mu.Unlock()

	v.Trigger()

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		v.mu.Lock()
		for i, o := range v.waiters {
			if o == w {
				v.waiters = append(v.waiters[:i], v.waiters[i+1:]...)
				break
			}
		}
		v.mu.Unlock()
		return ctx.Err()
	}
}

// State returns a copy of the current sync status.
func (v *View[S]) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	if s.LastPush != nil {
		ev := *s.LastPush
		s.LastPush = &ev
	}
	return s
}

// Close tears the view down exactly once. Results of an in-flight fetch are
// discarded; Close does not wait for it.
func (v *View[S]) Close() {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		v.alive = false
		v.state.Closed = true
		waiters := v.waiters
		v.waiters = nil
		v.mu.Unlock()

		for _, w := range waiters {
			w.done <- ErrClosed
		}
		v.cancel()
		if v.sub != nil {
			if err := v.sub.Close(); err != nil {
				v.log.Debug("push subscription close", "err", err)
			}
		}
		if v.forget != nil {
			v.forget()
		}
	})
}

// loop runs fetches one at a time.
func (v *View[S]) loop() {
	defer close(v.done)
	for {
		select {
		case <-v.ctx.Done():
			return
		case <-v.trigger:
			v.fetch()
		}
	}
}

// pump turns poll ticks and push messages into triggers.
func (v *View[S]) pump() {
	ticker := time.NewTicker(v.cfg.Interval)
	defer ticker.Stop()

	var events <-chan push.Event
	if v.sub != nil {
		events = v.sub.Events()
	}

	for {
		select {
		case <-v.ctx.Done():
			return
		case <-v.reset:
			ticker.Reset(v.cfg.Interval)
		case <-ticker.C:
			v.Trigger()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			v.metrics.PushEvents.WithLabelValues(v.cfg.Name, string(ev.Type)).Inc()
			v.mu.Lock()
			v.state.LastPush = &ev
			v.mu.Unlock()
			v.Trigger()
		}
	}
}

func (v *View[S]) fetch() {
	v.mu.Lock()
	if !v.alive {
		v.mu.Unlock()
		return
	}
	v.started++
	seq := v.started
	gen := v.gen
	filter := v.filter
	v.state.Loading = true
	v.mu.Unlock()

	start := time.Now()
	snap, err := v.cfg.Fetch(v.ctx, filter)
	v.metrics.FetchDuration.WithLabelValues(v.cfg.Name).Observe(time.Since(start).Seconds())
	v.metrics.Fetches.WithLabelValues(v.cfg.Name).Inc()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Fetches++
	v.state.Loading = false

	if !v.alive {
		v.metrics.Discarded.WithLabelValues(v.cfg.Name).Inc()
		return
	}
	if gen != v.gen {
		// A fetch for the new filter is already queued; its waiters stay put.
		v.metrics.Discarded.WithLabelValues(v.cfg.Name).Inc()
		return
	}

	if err != nil {
		if isPartial(err) {
			v.cfg.Apply(snap)
		}
		v.state.Failures++
		v.state.LastErr = err
		v.state.Retryable = apiclient.Retryable(err) || errors.Is(err, context.DeadlineExceeded)
		v.metrics.Failures.WithLabelValues(v.cfg.Name).Inc()
		v.log.Warn("fetch failed", "err", err, "retryable", v.state.Retryable)
	} else {
		v.cfg.Apply(snap)
		v.state.LastErr = nil
		v.state.Retryable = false
		v.state.LastSuccess = time.Now()
	}
	v.release(seq, err)
}

// release completes every waiter registered before fetch seq started.
// Callers hold v.mu.
func (v *View[S]) release(seq uint64, err error) {
	kept := v.waiters[:0]
	for _, w := range v.waiters {
		if w.after < seq {
			w.done <- err
			continue
		}
		kept = append(kept, w)
	}
	v.waiters = kept
}
