package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dispatch-console/internal/calls"
	"dispatch-console/internal/dashboard"
	"dispatch-console/internal/query"
	"dispatch-console/internal/teams"
	"dispatch-console/pkg/logger"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// TokenSource supplies the bearer credential attached to every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the call-center REST API.
type Client struct {
	base   *url.URL
	tokens TokenSource
	http   *http.Client
	log    *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: base url must be http(s), got %q", baseURL)
	}
	c := &Client{
		base:   u,
		tokens: tokens,
		http:   &http.Client{Timeout: 15 * time.Second},
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// --- Calls ---

func (c *Client) ListCalls(ctx context.Context, f query.Filter) (calls.Page, error) {
	var out calls.Page
	err := c.do(ctx, "list calls", http.MethodGet, "/calls", query.Encode(query.BuildQuery(f)), nil, &out)
	return out, err
}

// --- Team leads ---

// NewTeamLead is the body of POST /team-leads.
type NewTeamLead struct {
	TeamName        string `json:"team_name"`
	LeaderFirstName string `json:"leader_first_name"`
	LeaderLastName  string `json:"leader_last_name"`
	Phone           string `json:"phone,omitempty"`
	Status          string `json:"status,omitempty"`
	CategoryID      *int64 `json:"category_id,omitempty"`
}

// TeamLeadPatch is the body of PATCH /team-leads/{id}. Only set fields are
// sent; SetCategory with a nil CategoryID sends an explicit null.
type TeamLeadPatch struct {
	Status      *string
	Phone       *string
	SetCategory bool
	CategoryID  *int64
}

func (p TeamLeadPatch) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 3)
	if p.Status != nil {
		m["status"] = *p.Status
	}
	if p.Phone != nil {
		m["phone"] = *p.Phone
	}
	if p.SetCategory {
		m["category_id"] = p.CategoryID
	}
	return json.Marshal(m)
}

func (c *Client) ListTeamLeads(ctx context.Context) ([]teams.TeamLead, error) {
	var out []teams.TeamLead
	err := c.do(ctx, "list team leads", http.MethodGet, "/team-leads", "", nil, &out)
	return out, err
}

func (c *Client) CreateTeamLead(ctx context.Context, in NewTeamLead) (teams.TeamLead, error) {
	var out teams.TeamLead
	err := c.do(ctx, "create team lead", http.MethodPost, "/team-leads", "", in, &out)
	return out, err
}

func (c *Client) UpdateTeamLead(ctx context.Context, id int64, patch TeamLeadPatch) (teams.TeamLead, error) {
	var out teams.TeamLead
	err := c.do(ctx, "update team lead", http.MethodPatch, "/team-leads/"+strconv.FormatInt(id, 10), "", patch, &out)
	return out, err
}

func (c *Client) DeleteTeamLead(ctx context.Context, id int64) error {
	return c.do(ctx, "delete team lead", http.MethodDelete, "/team-leads/"+strconv.FormatInt(id, 10), "", nil, nil)
}

// --- Categories ---

func (c *Client) ListCategories(ctx context.Context) ([]teams.Category, error) {
	var out []teams.Category
	err := c.do(ctx, "list categories", http.MethodGet, "/team-lead-categories", "", nil, &out)
	return out, err
}

func (c *Client) CreateCategory(ctx context.Context, name string, position int) (teams.Category, error) {
	var out teams.Category
	body := map[string]any{"name": name, "position": position}
	err := c.do(ctx, "create category", http.MethodPost, "/team-lead-categories", "", body, &out)
	return out, err
}

func (c *Client) RenameCategory(ctx context.Context, id int64, name string) (teams.Category, error) {
	var out teams.Category
	body := map[string]string{"name": name}
	err := c.do(ctx, "rename category", http.MethodPatch, "/team-lead-categories/"+strconv.FormatInt(id, 10), "", body, &out)
	return out, err
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, "delete category", http.MethodDelete, "/team-lead-categories/"+strconv.FormatInt(id, 10), "", nil, nil)
}

// --- Dashboard ---

func (c *Client) Summary(ctx context.Context) (dashboard.Summary, error) {
	var out dashboard.Summary
	err := c.do(ctx, "dashboard summary", http.MethodGet, "/dashboard/summary", "", nil, &out)
	return out, err
}

func (c *Client) Hourly(ctx context.Context) ([dashboard.HoursPerDay]int, error) {
	var out dashboard.HourlyResponse
	if err := c.do(ctx, "dashboard hourly", http.MethodGet, "/dashboard/hourly", "", nil, &out); err != nil {
		return [dashboard.HoursPerDay]int{}, err
	}
	return out.Hourly(), nil
}

func (c *Client) Timeseries(ctx context.Context) (dashboard.Timeseries, error) {
	var out dashboard.Timeseries
	err := c.do(ctx, "dashboard timeseries", http.MethodGet, "/dashboard/timeseries", "", nil, &out)
	return out, err
}

// LatestCalls returns the first page of the unfiltered call feed.
func (c *Client) LatestCalls(ctx context.Context, limit int) ([]calls.CallRecord, error) {
	page, err := c.ListCalls(ctx, query.Filter{Page: 1, PageSize: limit})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// do performs one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, op, method, path, rawQuery string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return &Error{Kind: KindAuthorization, Op: op, Message: err.Error(), Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	log := logger.FromOr(ctx, c.log)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug("upstream request failed", "op", op, "method", method, "path", path, "err", err)
		return transportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(op, err)
	}
	log.Debug("upstream request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", float64(time.Since(start).Milliseconds()),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: "malformed response body", Err: err}
	}
	return nil
}
