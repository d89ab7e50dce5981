package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"dispatch-console/internal/apiclient"
	"dispatch-console/internal/audit"
	"dispatch-console/internal/calls"
	"dispatch-console/internal/config"
	"dispatch-console/internal/credential"
	"dispatch-console/internal/dashboard"
	"dispatch-console/internal/kanban"
	"dispatch-console/internal/livesync"
	"dispatch-console/internal/pgsource"
	"dispatch-console/internal/push"
	"dispatch-console/internal/query"
	"dispatch-console/internal/store"
	"dispatch-console/internal/teams"
	"dispatch-console/pkg/utils"
)

// engine holds the long-lived collaborators of one console session.
type engine struct {
	cfg     config.Config
	log     *slog.Logger
	bearer  *credential.Bearer
	client  *apiclient.Client
	replica *pgsource.Source
	rdb     *redis.Client

	store     *store.Store
	audit     *audit.MemoryRepo
	board     *kanban.Board
	dashboard *dashboard.View
	manager   *livesync.Manager

	calls      *livesync.View[store.Snapshot[calls.CallRecord]]
	teamLeads  *livesync.View[[]teams.TeamLead]
	categories *livesync.View[[]teams.Category]
	dashView   *livesync.View[dashboard.Result]
}

// dial connects the upstream client and, when configured, the read replica.
// It does not start any live view.
func dial(ctx context.Context, cfg config.Config, log *slog.Logger) (*engine, error) {
	bearer, err := credential.NewBearer(cfg.Upstream.Token)
	if err != nil {
		return nil, fmt.Errorf("credential: %w", err)
	}
	client, err := apiclient.New(cfg.Upstream.BaseURL, bearer,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.HTTPTimeout}),
		apiclient.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	e := &engine{cfg: cfg, log: log, bearer: bearer, client: client, store: store.New()}
	if cfg.DB.Enabled {
		e.replica, err = pgsource.Open(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{}, log)
		if err != nil {
			return nil, fmt.Errorf("read replica: %w", err)
		}
	}
	return e, nil
}

func (e *engine) subscriber(ctx context.Context) (push.Subscriber, error) {
	switch e.cfg.Push.Mode {
	case config.PushWebSocket:
		return push.WebSocket{URL: e.cfg.Push.URL, Tokens: e.bearer, Log: e.log}, nil
	case config.PushRedis:
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: e.cfg.RedisAddr()})
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		e.rdb = rdb
		return push.Redis{Client: rdb, Channel: e.cfg.Redis.Channel, Log: e.log}, nil
	default:
		return push.Nop{}, nil
	}
}

// dashboardSource prefers local aggregation over the replica when one is
// configured.
func (e *engine) dashboardSource() dashboard.Source {
	if e.replica != nil {
		return dashboard.NewService(e.replica, e.cfg.Location())
	}
	return e.client
}

func (e *engine) searchCalls(ctx context.Context, f query.Filter) (calls.Page, error) {
	if e.replica != nil {
		return e.replica.SearchCalls(ctx, f)
	}
	return e.client.ListCalls(ctx, f)
}

// start registers every live view and builds the board on top of them.
func (e *engine) start(ctx context.Context, reg prometheus.Registerer) error {
	sub, err := e.subscriber(ctx)
	if err != nil {
		return err
	}

	e.manager = livesync.NewManager(e.log, reg)
	interval := e.cfg.Sync.PollInterval

	e.calls = livesync.Register(e.manager, livesync.ViewConfig[store.Snapshot[calls.CallRecord]]{
		Name: "calls",
		Fetch: func(ctx context.Context, f query.Filter) (store.Snapshot[calls.CallRecord], error) {
			page, err := e.searchCalls(ctx, f)
			if err != nil {
				return store.Snapshot[calls.CallRecord]{}, err
			}
			return store.Snapshot[calls.CallRecord]{Filter: f, Records: page.Items, Total: page.Total, FetchedAt: time.Now()}, nil
		},
		Apply:      e.store.Calls.Put,
		Interval:   interval,
		Subscriber: sub,
	})

	e.teamLeads = livesync.Register(e.manager, livesync.ViewConfig[[]teams.TeamLead]{
		Name: "team_leads",
		Fetch: func(ctx context.Context, _ query.Filter) ([]teams.TeamLead, error) {
			return e.client.ListTeamLeads(ctx)
		},
		Apply:      e.store.TeamLeads.ReplaceAll,
		Interval:   interval,
		Subscriber: sub,
	})

	e.categories = livesync.Register(e.manager, livesync.ViewConfig[[]teams.Category]{
		Name: "categories",
		Fetch: func(ctx context.Context, _ query.Filter) ([]teams.Category, error) {
			return e.client.ListCategories(ctx)
		},
		Apply:      e.store.Categories.ReplaceAll,
		Interval:   interval,
		Subscriber: sub,
	})

	e.dashboard = dashboard.NewView(e.dashboardSource(),
		dashboard.WithLatestLimit(e.cfg.Sync.LatestLimit),
		dashboard.WithViewLogger(e.log),
	)
	e.dashView = livesync.Register(e.manager, livesync.ViewConfig[dashboard.Result]{
		Name: "dashboard",
		Fetch: func(ctx context.Context, _ query.Filter) (dashboard.Result, error) {
			return e.dashboard.Fetch(ctx)
		},
		Apply:      e.dashboard.Apply,
		Interval:   interval,
		Subscriber: sub,
	})

	e.audit = audit.NewMemoryRepo(audit.DefaultCapacity)
	e.board = kanban.NewBoard(e.store, e.client,
		kanban.WithAudit(audit.NewService(e.audit, e.log)),
		kanban.WithLogger(e.log),
		kanban.WithActor(e.bearer.Subject),
		kanban.WithRefreshers(e.categories, e.teamLeads),
	)
	return nil
}

// Close stops every view and releases connections.
func (e *engine) Close() {
	if e.manager != nil {
		e.manager.Close()
	}
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	if e.replica != nil {
		_ = e.replica.Close()
	}
}
