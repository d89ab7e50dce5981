// Package livesync keeps in-memory collections fresh from three trigger
// sources: the upstream push channel, a fixed-interval poll, and explicit
// requests. Each registered view runs at most one fetch at a time and queues
// at most one more; further triggers coalesce into the queued one.
package livesync

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrClosed is returned to RefreshAndWait callers when the view is torn down.
var ErrClosed = errors.New("livesync: view closed")

type closer interface {
	Close()
}

// Manager owns the registered views and tears them down together.
type Manager struct {
	log     *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	views  map[closer]struct{}
	closed bool
}

// NewManager returns a Manager whose metrics are registered with reg (nil
// skips registration).
func NewManager(log *slog.Logger, reg prometheus.Registerer) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:     log,
		metrics: NewMetrics(reg),
		views:   map[closer]struct{}{},
	}
}

func (m *Manager) track(v closer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.views[v] = struct{}{}
	return true
}

func (m *Manager) forget(v closer) {
	m.mu.Lock()
	delete(m.views, v)
	m.mu.Unlock()
}

// Len reports the number of live views.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.views)
}

// Close tears down every live view. Views registered afterwards start closed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	views := make([]closer, 0, len(m.views))
	for v := range m.views {
		views = append(views, v)
	}
	m.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}
