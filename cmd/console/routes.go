package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dispatch-console/internal/httpapi"
	"dispatch-console/internal/rbac"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, eng *engine, reg *prometheus.Registry) {
	r.GET("/healthz", func(c *gin.Context) {
		status := gin.H{"status": "ok", "views": eng.manager.Len()}
		if eng.replica != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := eng.replica.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "read_replica": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, status)
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	h := httpapi.Handlers{
		Store:     eng.store,
		Board:     eng.board,
		Dashboard: eng.dashboard,
		Calls:     eng.calls,
		Audit:     eng.audit,
		Views: map[string]httpapi.StateReader{
			"calls":      eng.calls,
			"team_leads": eng.teamLeads,
			"categories": eng.categories,
			"dashboard":  eng.dashView,
		},
		CallsWait: eng.cfg.Upstream.HTTPTimeout,
	}
	httpapi.Register(r.Group("/v1"), h, rbac.RequireAdmin(eng.bearer))
}
