package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-console/internal/apiclient"
	"dispatch-console/internal/audit"
	"dispatch-console/internal/calls"
	"dispatch-console/internal/dashboard"
	"dispatch-console/internal/kanban"
	"dispatch-console/internal/livesync"
	"dispatch-console/internal/query"
	"dispatch-console/internal/store"
	"dispatch-console/internal/teams"
)

type fakeAPI struct {
	leads     map[int64]teams.TeamLead
	updateErr error
	deleteErr error
}

func (f *fakeAPI) UpdateTeamLead(_ context.Context, id int64, p apiclient.TeamLeadPatch) (teams.TeamLead, error) {
	if f.updateErr != nil {
		return teams.TeamLead{}, f.updateErr
	}
	tl := f.leads[id]
	if p.SetCategory {
		tl.CategoryID = p.CategoryID
	}
	if p.Status != nil {
		tl.Status = *p.Status
	}
	if p.Phone != nil {
		tl.Phone = *p.Phone
	}
	f.leads[id] = tl
	return tl, nil
}

func (f *fakeAPI) CreateTeamLead(_ context.Context, in apiclient.NewTeamLead) (teams.TeamLead, error) {
	return teams.TeamLead{ID: 50, TeamName: in.TeamName, Status: in.Status, Phone: in.Phone}, nil
}

func (f *fakeAPI) DeleteTeamLead(context.Context, int64) error { return f.deleteErr }

func (f *fakeAPI) CreateCategory(_ context.Context, name string, position int) (teams.Category, error) {
	return teams.Category{ID: 30, Name: name, Position: position}, nil
}

func (f *fakeAPI) RenameCategory(_ context.Context, id int64, name string) (teams.Category, error) {
	return teams.Category{ID: id, Name: name}, nil
}

func (f *fakeAPI) DeleteCategory(context.Context, int64) error { return f.deleteErr }

// fakeCalls stores a snapshot for the current filter on every refresh.
type fakeCalls struct {
	s       *store.Store
	filter  query.Filter
	err     error
	refresh int
}

func (f *fakeCalls) SetFilter(q query.Filter) { f.filter = q }

func (f *fakeCalls) RefreshAndWait(context.Context) error {
	f.refresh++
	if f.err != nil {
		return f.err
	}
	f.s.Calls.Put(store.Snapshot[calls.CallRecord]{
		Filter: f.filter,
		Records: []calls.CallRecord{
			{ID: 1, Direction: calls.DirectionInbound, CallingNumber: "+33612345678", CalledNumber: "112"},
		},
		Total:     1,
		FetchedAt: time.Now(),
	})
	return nil
}

func (f *fakeCalls) State() livesync.State {
	return livesync.State{Filter: f.filter, Fetches: uint64(f.refresh)}
}

type emptySource struct{}

func (emptySource) Summary(context.Context) (dashboard.Summary, error) {
	return dashboard.Summary{TodayTotal: 4, TodayMissed: 1}, nil
}
func (emptySource) Hourly(context.Context) ([dashboard.HoursPerDay]int, error) {
	return [dashboard.HoursPerDay]int{}, nil
}
func (emptySource) LatestCalls(context.Context, int) ([]calls.CallRecord, error) {
	return nil, errors.New("latest down")
}
func (emptySource) Timeseries(context.Context) (dashboard.Timeseries, error) {
	return dashboard.Timeseries{}, nil
}

type env struct {
	r     *gin.Engine
	s     *store.Store
	api   *fakeAPI
	calls *fakeCalls
	repo  *audit.MemoryRepo
}

func newEnv(t *testing.T, admin gin.HandlerFunc) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.New()
	s.Categories.ReplaceAll([]teams.Category{{ID: 1, Name: "Secteur Nord", Position: 0}})
	leads := []teams.TeamLead{
		{ID: 10, TeamName: "Alpha", LeaderFirstName: "Jeanne", Status: teams.StatusAvailable, CategoryID: teams.ID(1)},
		{ID: 11, TeamName: "Bravo", LeaderFirstName: "Luc", Status: teams.StatusUnavailable},
	}
	s.TeamLeads.ReplaceAll(leads)

	api := &fakeAPI{leads: map[int64]teams.TeamLead{}}
	for _, tl := range leads {
		api.leads[tl.ID] = tl
	}
	repo := audit.NewMemoryRepo(0)
	board := kanban.NewBoard(s, api, kanban.WithAudit(audit.NewService(repo, nil)))
	dash := dashboard.NewView(emptySource{})
	_ = dash.Refresh(context.Background())
	fc := &fakeCalls{s: s}

	r := gin.New()
	Register(r.Group("/v1"), Handlers{
		Store:     s,
		Board:     board,
		Dashboard: dash,
		Calls:     fc,
		Audit:     repo,
		Views:     map[string]StateReader{"calls": fc},
	}, admin)
	return &env{r: r, s: s, api: api, calls: fc, repo: repo}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetBoard_GroupsAndFilters(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/v1/board", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Columns  []kanban.Column `json:"columns"`
		Statuses []string        `json:"statuses"`
	}](t, w)
	require.Len(t, body.Columns, 2)
	assert.Equal(t, "Secteur Nord", body.Columns[0].Name)
	assert.Equal(t, kanban.UncategorizedName, body.Columns[1].Name)
	assert.Equal(t, teams.BaseStatuses(), body.Statuses)

	w = e.do(t, http.MethodGet, "/v1/board?search=bravo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body.Columns = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Columns[0].Cards)
	require.Len(t, body.Columns[1].Cards, 1)
	assert.Equal(t, int64(11), body.Columns[1].Cards[0].ID)
}

func TestMoveCard_ConfirmsAndAudits(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/v1/board/cards/11/move", moveRequest{CategoryID: teams.ID(1)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tl, ok := e.s.TeamLeads.Get(11)
	require.True(t, ok)
	require.NotNil(t, tl.CategoryID)
	assert.Equal(t, int64(1), *tl.CategoryID)

	evs := e.repo.Recent(1)
	require.Len(t, evs, 1)
	assert.Equal(t, audit.EventTypeCardMoved, evs[0].Type)
	assert.Equal(t, audit.OutcomeConfirmed, evs[0].Outcome)
}

func TestMoveCard_UpstreamErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &apiclient.Error{Kind: apiclient.KindValidation, Status: 422, Message: "category is archived"}, http.StatusUnprocessableEntity},
		{"authorization", &apiclient.Error{Kind: apiclient.KindAuthorization, Status: 403, Message: "forbidden"}, http.StatusForbidden},
		{"server", &apiclient.Error{Kind: apiclient.KindServer, Status: 500, Message: "boom"}, http.StatusBadGateway},
		{"transport", &apiclient.Error{Kind: apiclient.KindTransport, Message: "timeout"}, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, nil)
			e.api.updateErr = tc.err

			w := e.do(t, http.MethodPost, "/v1/board/cards/11/move", moveRequest{CategoryID: teams.ID(1)})
			require.Equal(t, tc.want, w.Code)
			assert.Equal(t, apiclient.Message(tc.err), decode[errorBody](t, w).Message)

			tl, _ := e.s.TeamLeads.Get(11)
			assert.Nil(t, tl.CategoryID, "failed move rolls back")
		})
	}
}

func TestMoveCard_LocalErrors(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/v1/board/cards/11/move", moveRequest{CategoryID: teams.ID(99)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "unknown_category", decode[errorBody](t, w).Error)

	w = e.do(t, http.MethodPost, "/v1/board/cards/404/move", moveRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/v1/board/cards/abc/move", moveRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatchCard_StatusAndPhone(t *testing.T) {
	e := newEnv(t, nil)
	status, phone := teams.StatusIntervention, "06 12 34 56 78"

	w := e.do(t, http.MethodPatch, "/v1/board/cards/10", cardPatch{Status: &status, Phone: &phone})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tl, _ := e.s.TeamLeads.Get(10)
	assert.Equal(t, teams.StatusIntervention, tl.Status)
	assert.Equal(t, "+33612345678", tl.Phone)

	w = e.do(t, http.MethodPatch, "/v1/board/cards/10", cardPatch{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	blank := " "
	w = e.do(t, http.MethodPatch, "/v1/board/cards/10", cardPatch{Status: &blank})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCategories_DraftSaveAndDelete(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPut, "/v1/categories/1/draft", nameRequest{Name: "Secteur Sud"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Secteur Sud", decode[map[string]any](t, w)["draft"])

	w = e.do(t, http.MethodPost, "/v1/categories/1/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Secteur Sud", decode[teams.Category](t, w).Name)

	w = e.do(t, http.MethodDelete, "/v1/categories/1", nil)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	_, ok := e.s.Categories.Get(1)
	assert.True(t, ok)

	w = e.do(t, http.MethodDelete, "/v1/categories/1?confirm=true", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	_, ok = e.s.Categories.Get(1)
	assert.False(t, ok)
	tl, _ := e.s.TeamLeads.Get(10)
	assert.Nil(t, tl.CategoryID)
}

func TestCreateCategory_RejectsEmptyName(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/v1/categories", nameRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/v1/categories", nameRequest{Name: "Renforts"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Renforts", decode[teams.Category](t, w).Name)
}

func TestAdminGuard_AppliesToSettings(t *testing.T) {
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) }
	e := newEnv(t, deny)

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/v1/categories", nameRequest{Name: "x"}).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodDelete, "/v1/team-leads/10", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/v1/board", nil).Code)
}

func TestTeamLeads_CreateAndDelete(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/v1/team-leads", apiclient.NewTeamLead{TeamName: "Charlie", Phone: "0612345678"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tl := decode[teams.TeamLead](t, w)
	assert.Equal(t, "+33612345678", tl.Phone)
	assert.Equal(t, teams.StatusAvailable, tl.Status)

	w = e.do(t, http.MethodDelete, "/v1/team-leads/11", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	_, ok := e.s.TeamLeads.Get(11)
	assert.False(t, ok)
}

func TestListCalls_WaitsForFirstSnapshot(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/v1/calls?direction=INBOUND&page=1&page_size=20", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, e.calls.refresh)
	assert.Equal(t, query.Filter{Direction: query.DirectionInbound, Page: 1, PageSize: 20}, e.calls.filter)

	body := decode[struct {
		Query string     `json:"query"`
		Items []callView `json:"items"`
		Total int        `json:"total"`
	}](t, w)
	assert.Equal(t, "direction=INBOUND&page=1&page_size=20", body.Query)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "06 12 34 56 78", body.Items[0].CallingDisplay)
	assert.Equal(t, 1, body.Total)

	// Cached snapshot is served without another refresh.
	w = e.do(t, http.MethodGet, "/v1/calls?direction=INBOUND&page=1&page_size=20", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.calls.refresh)
}

func TestListCalls_Errors(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/v1/calls?direction=SIDEWAYS", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.calls.err = &apiclient.Error{Kind: apiclient.KindServer, Status: 503, Message: "maintenance"}
	w = e.do(t, http.MethodGet, "/v1/calls?missed=true", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "maintenance", decode[errorBody](t, w).Message)
}

func TestGetDashboard_ReportsPartialFailure(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[dashboard.Snapshot](t, w)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, 4, snap.Summary.TodayTotal)
	assert.Contains(t, snap.Errors, dashboard.SectionLatest)
	assert.NotContains(t, snap.Errors, dashboard.SectionSummary)
}

func TestGetSyncAndAudit(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, http.MethodPost, "/v1/board/cards/11/move", moveRequest{CategoryID: teams.ID(1)})

	w := e.do(t, http.MethodGet, "/v1/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]syncView](t, w), "calls")

	w = e.do(t, http.MethodGet, "/v1/audit?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]audit.Event](t, w)["events"], 1)
}
