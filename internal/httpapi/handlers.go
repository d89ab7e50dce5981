package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch-console/internal/apiclient"
	"dispatch-console/internal/audit"
	"dispatch-console/internal/calls"
	"dispatch-console/internal/dashboard"
	"dispatch-console/internal/kanban"
	"dispatch-console/internal/livesync"
	"dispatch-console/internal/normalize"
	"dispatch-console/internal/push"
	"dispatch-console/internal/query"
	"dispatch-console/internal/store"
	"dispatch-console/internal/teams"
)

// CallsFeed is the live view serving the call history.
type CallsFeed interface {
	SetFilter(f query.Filter)
	RefreshAndWait(ctx context.Context) error
	State() livesync.State
}

// StateReader exposes the sync status of a live view.
type StateReader interface {
	State() livesync.State
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Store     *store.Store
	Board     *kanban.Board
	Dashboard *dashboard.View
	Calls     CallsFeed
	Audit     *audit.MemoryRepo
	// Views lists every live view by name for the sync status endpoint.
	Views map[string]StateReader

	// CallsWait bounds how long a call query waits for its first snapshot.
	CallsWait time.Duration
}

// --- Board ---

func (h Handlers) GetBoard(c *gin.Context) {
	var f kanban.BoardFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid board filter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"columns":  h.Board.Columns(f),
		"statuses": teams.BaseStatuses(),
	})
}

func (h Handlers) GetCard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tl, found := h.Store.TeamLeads.Get(id)
	if !found {
		writeError(c, store.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"team_lead":            tl,
		"state":                h.Board.CardState(id),
		"intervention_seconds": int64(tl.InterventionElapsed(time.Now()).Seconds()),
	})
}

type moveRequest struct {
	CategoryID *int64 `json:"category_id"`
}

// MoveCard answers once the upstream write has settled; the move itself is
// visible on GET /board as soon as it is issued.
func (h Handlers) MoveCard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid json"})
		return
	}
	if err := h.Board.MoveCard(c.Request.Context(), id, req.CategoryID); err != nil {
		writeError(c, err)
		return
	}
	h.card(c, id)
}

type cardPatch struct {
	Status *string `json:"status"`
	Phone  *string `json:"phone"`
}

func (h Handlers) PatchCard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cardPatch
	if err := c.ShouldBindJSON(&req); err != nil || (req.Status == nil && req.Phone == nil) {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "status or phone required"})
		return
	}
	ctx := c.Request.Context()
	if req.Status != nil {
		if err := h.Board.UpdateStatus(ctx, id, *req.Status); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.Phone != nil {
		if err := h.Board.UpdatePhone(ctx, id, *req.Phone); err != nil {
			writeError(c, err)
			return
		}
	}
	h.card(c, id)
}

func (h Handlers) card(c *gin.Context, id int64) {
	tl, _ := h.Store.TeamLeads.Get(id)
	c.JSON(http.StatusOK, gin.H{"team_lead": tl, "state": h.Board.CardState(id)})
}

// --- Team leads ---

func (h Handlers) CreateTeamLead(c *gin.Context) {
	var req apiclient.NewTeamLead
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid json"})
		return
	}
	tl, err := h.Board.CreateTeamLead(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tl)
}

func (h Handlers) DeleteTeamLead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Board.DeleteTeamLead(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Categories ---

type nameRequest struct {
	Name string `json:"name"`
}

func (h Handlers) CreateCategory(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid json"})
		return
	}
	cat, err := h.Board.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// PutDraft updates the rename buffer without committing it.
func (h Handlers) PutDraft(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid json"})
		return
	}
	if err := h.Board.EditName(id, req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "draft": h.Board.Draft(id)})
}

func (h Handlers) SaveName(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cat, err := h.Board.SaveName(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// DeleteCategory requires ?confirm=true.
func (h Handlers) DeleteCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := h.Board.DeleteCategory(c.Request.Context(), id, confirmed); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Calls ---

type callView struct {
	calls.CallRecord
	CallingDisplay string `json:"calling_display"`
	CalledDisplay  string `json:"called_display"`
}

// ListCalls switches the calls view to the requested filter and returns its
// snapshot, waiting for the first fetch when none is cached.
func (h Handlers) ListCalls(c *gin.Context) {
	f, err := query.ParseQuery(c.Request.URL.RawQuery)
	if err != nil {
		writeError(c, err)
		return
	}

	h.Calls.SetFilter(f)
	snap, ok := h.Store.Calls.Get(f)
	if !ok {
		wait := h.CallsWait
		if wait <= 0 {
			wait = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		if err := h.Calls.RefreshAndWait(ctx); err != nil {
			writeError(c, err)
			return
		}
		if snap, ok = h.Store.Calls.Get(f); !ok {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody{Error: "loading", Message: "calls are still loading"})
			return
		}
	}

	items := make([]callView, 0, len(snap.Records))
	for _, r := range snap.Records {
		items = append(items, callView{
			CallRecord:     r,
			CallingDisplay: normalize.ToDisplayFormat(r.CallingNumber),
			CalledDisplay:  normalize.ToDisplayFormat(r.CalledNumber),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"query":      query.Key(f),
		"items":      items,
		"total":      snap.Total,
		"page":       f.Page,
		"page_size":  f.PageSize,
		"fetched_at": snap.FetchedAt,
		"sync":       syncStatus(h.Calls.State()),
	})
}

// --- Dashboard ---

func (h Handlers) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.Dashboard.Snapshot())
}

// --- Sync status & audit ---

type syncView struct {
	Query       string      `json:"query"`
	Fetches     uint64      `json:"fetches"`
	Failures    uint64      `json:"failures"`
	Coalesced   uint64      `json:"coalesced"`
	Loading     bool        `json:"loading"`
	LastError   string      `json:"last_error,omitempty"`
	Retryable   bool        `json:"retryable"`
	LastSuccess *time.Time  `json:"last_success,omitempty"`
	LastPush    *push.Event `json:"last_push,omitempty"`
	Closed      bool        `json:"closed"`
}

func syncStatus(st livesync.State) syncView {
	v := syncView{
		Query:     query.Key(st.Filter),
		Fetches:   st.Fetches,
		Failures:  st.Failures,
		Coalesced: st.Coalesced,
		Loading:   st.Loading,
		Retryable: st.Retryable,
		LastPush:  st.LastPush,
		Closed:    st.Closed,
	}
	if st.LastErr != nil {
		v.LastError = apiclient.Message(st.LastErr)
	}
	if !st.LastSuccess.IsZero() {
		t := st.LastSuccess
		v.LastSuccess = &t
	}
	return v
}

func (h Handlers) GetSync(c *gin.Context) {
	out := make(map[string]syncView, len(h.Views))
	for name, v := range h.Views {
		out[name] = syncStatus(v.State())
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	evs := []audit.Event{}
	if h.Audit != nil {
		evs = h.Audit.Recent(limit)
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid_request", Message: name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}
