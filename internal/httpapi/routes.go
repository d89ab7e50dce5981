package httpapi

import "github.com/gin-gonic/gin"

// Register wires the console API under r. admin guards settings writes.
func Register(r gin.IRouter, h Handlers, admin gin.HandlerFunc) {
	if admin == nil {
		admin = func(c *gin.Context) { c.Next() }
	}

	r.GET("/board", h.GetBoard)
	cards := r.Group("/board/cards")
	{
		cards.GET("/:id", h.GetCard)
		cards.POST("/:id/move", h.MoveCard)
		cards.PATCH("/:id", h.PatchCard)
	}

	leads := r.Group("/team-leads", admin)
	{
		leads.POST("", h.CreateTeamLead)
		leads.DELETE("/:id", h.DeleteTeamLead)
	}

	cats := r.Group("/categories", admin)
	{
		cats.POST("", h.CreateCategory)
		cats.PUT("/:id/draft", h.PutDraft)
		cats.POST("/:id/save", h.SaveName)
		cats.DELETE("/:id", h.DeleteCategory)
	}

	r.GET("/calls", h.ListCalls)
	r.GET("/dashboard", h.GetDashboard)
	r.GET("/sync", h.GetSync)
	r.GET("/audit", h.GetAudit)
}
