package livesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by every view of a Manager.
//
// All metrics are prefixed with "livesync_" and labelled by view name:
//   - livesync_fetches_total{view}
//   - livesync_fetch_failures_total{view}
//   - livesync_fetch_discarded_total{view}
//   - livesync_coalesced_triggers_total{view}
//   - livesync_push_events_total{view,type}
//   - livesync_fetch_duration_seconds{view}
type Metrics struct {
	Fetches       *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	Discarded     *prometheus.CounterVec
	Coalesced     *prometheus.CounterVec
	PushEvents    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "livesync_fetches_total",
			Help: "Total number of fetches executed per view",
		}, []string{"view"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "livesync_fetch_failures_total",
			Help: "Total number of failed fetches per view",
		}, []string{"view"}),
		Discarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "livesync_fetch_discarded_total",
			Help: "Fetch results dropped because the filter changed or the view closed",
		}, []string{"view"}),
		Coalesced: f.NewCounterVec(prometheus.CounterOpts{
			Name: "livesync_coalesced_triggers_total",
			Help: "Refresh triggers absorbed by an already queued fetch",
		}, []string{"view"}),
		PushEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "livesync_push_events_total",
			Help: "Push messages received per view and message type",
		}, []string{"view", "type"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livesync_fetch_duration_seconds",
			Help:    "Duration of view fetches in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
	}
}
