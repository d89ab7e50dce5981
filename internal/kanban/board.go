// Package kanban groups team leads into category columns and runs the
// operator's board edits: optimistic card moves and field edits, and
// confirmed category and team-lead writes followed by a refetch.
package kanban

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dispatch-console/internal/apiclient"
	"dispatch-console/internal/audit"
	"dispatch-console/internal/normalize"
	"dispatch-console/internal/store"
	"dispatch-console/internal/teams"
	"dispatch-console/pkg/logger"
)

var (
	ErrConfirmationRequired = errors.New("kanban: category deletion requires confirmation")
	ErrUnknownCategory      = errors.New("kanban: unknown category")
	ErrEmptyName            = errors.New("kanban: category name is required")
	ErrMissingField         = errors.New("kanban: required field missing")
	// ErrSuperseded wraps the failure of a write whose card was edited again
	// before the answer arrived. The board already shows the newer edit.
	ErrSuperseded = errors.New("kanban: superseded by a newer edit")
)

// API is the subset of the upstream client the board writes through.
type API interface {
	UpdateTeamLead(ctx context.Context, id int64, patch apiclient.TeamLeadPatch) (teams.TeamLead, error)
	CreateTeamLead(ctx context.Context, in apiclient.NewTeamLead) (teams.TeamLead, error)
	DeleteTeamLead(ctx context.Context, id int64) error
	CreateCategory(ctx context.Context, name string, position int) (teams.Category, error)
	RenameCategory(ctx context.Context, id int64, name string) (teams.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// Refresher refetches a collection through its live view.
type Refresher interface {
	RefreshAndWait(ctx context.Context) error
}

// CardState is the move state machine of one card: Idle, or PendingMove
// towards Target. Err holds the message of the last failed move.
type CardState struct {
	Pending bool   `json:"pending"`
	Target  *int64 `json:"target,omitempty"`
	Err     string `json:"error,omitempty"`
}

type pendingMove struct {
	handle store.Handle
	target *int64
}

type draft struct {
	text      string
	committed string
}

// Board is the Kanban engine over one Store.
type Board struct {
	store      *store.Store
	api        API
	audit      *audit.Service
	log        *slog.Logger
	actor      func() string
	refreshers []Refresher
	clock      func() time.Time

	mu       sync.Mutex
	moves    map[int64]pendingMove
	failures map[int64]string
	drafts   map[int64]*draft
}

type Option func(*Board)

func WithAudit(a *audit.Service) Option { return func(b *Board) { b.audit = a } }

func WithLogger(l *slog.Logger) Option { return func(b *Board) { b.log = l } }

// WithActor names the operator recorded on audit events.
func WithActor(fn func() string) Option { return func(b *Board) { b.actor = fn } }

// WithRefreshers sets the views refetched after confirmed writes, typically
// the categories view and the team-leads view.
func WithRefreshers(r ...Refresher) Option {
	return func(b *Board) { b.refreshers = append(b.refreshers, r...) }
}

func NewBoard(s *store.Store, api API, opts ...Option) *Board {
	b := &Board{
		store:    s,
		api:      api,
		log:      slog.Default(),
		actor:    func() string { return "" },
		clock:    time.Now,
		moves:    map[int64]pendingMove{},
		failures: map[int64]string{},
		drafts:   map[int64]*draft{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Columns returns the board for the current store contents.
func (b *Board) Columns(f BoardFilter) []Column {
	cats := b.store.Categories.All()
	leads := b.store.TeamLeads.All()

	b.mu.Lock()
	defer b.mu.Unlock()

	cols := buildColumns(cats, leads, f, b.cardLocked)
	for i := range cols {
		if cols[i].CategoryID == nil {
			continue
		}
		if d := b.draftLocked(*cols[i].CategoryID, cols[i].Name); d != cols[i].Name {
			cols[i].Draft = d
		}
	}
	return cols
}

func (b *Board) cardLocked(tl teams.TeamLead) Card {
	_, pending := b.store.TeamLeads.Pending(tl.ID)
	return Card{
		TeamLead:     tl,
		PhoneDisplay: normalize.ToDisplayFormat(tl.Phone),
		Pending:      pending,
		Error:        b.failures[tl.ID],
	}
}

// CardState returns the move state of team lead id.
func (b *Board) CardState(id int64) CardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := CardState{Err: b.failures[id]}
	if m, ok := b.moves[id]; ok {
		st.Pending = true
		st.Target = m.target
	}
	return st
}

// MoveCard reassigns team lead id to target (nil for uncategorized). The
// move shows immediately; the server's answer confirms it or rolls it back.
// A move issued while another is in flight for the same card supersedes it.
func (b *Board) MoveCard(ctx context.Context, id int64, target *int64) error {
	if !b.store.HasCategory(target) {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, *target)
	}
	if target != nil {
		target = teams.ID(*target)
	}

	return b.edit(ctx, id, edit{
		typ:   audit.EventTypeCardMoved,
		local: func(tl *teams.TeamLead) { tl.CategoryID = target },
		patch: apiclient.TeamLeadPatch{SetCategory: true, CategoryID: target},
		// The category may have been deleted while the write was in flight.
		verify: func(tl teams.TeamLead) error {
			if !b.store.HasCategory(tl.CategoryID) {
				return fmt.Errorf("%w: %d", ErrUnknownCategory, *tl.CategoryID)
			}
			return nil
		},
		move:   true,
		target: target,
	})
}

// UpdateStatus changes the status of team lead id optimistically. Entering
// the intervention status starts the intervention timer locally until the
// server's record arrives.
func (b *Board) UpdateStatus(ctx context.Context, id int64, status string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return fmt.Errorf("%w: status", ErrMissingField)
	}
	now := b.clock().UTC()
	return b.edit(ctx, id, edit{
		typ: audit.EventTypeStatusChanged,
		local: func(tl *teams.TeamLead) {
			switch {
			case status == teams.StatusIntervention && tl.Status != teams.StatusIntervention:
				tl.InterventionStartedAt = &now
			case status != teams.StatusIntervention:
				tl.InterventionStartedAt = nil
			}
			tl.Status = status
		},
		patch: apiclient.TeamLeadPatch{Status: &status},
	})
}

// UpdatePhone stores phone in dialable form.
func (b *Board) UpdatePhone(ctx context.Context, id int64, phone string) error {
	dial := normalize.ToDialable(phone)
	return b.edit(ctx, id, edit{
		typ:   audit.EventTypePhoneChanged,
		local: func(tl *teams.TeamLead) { tl.Phone = dial },
		patch: apiclient.TeamLeadPatch{Phone: &dial},
	})
}

type edit struct {
	typ    audit.EventType
	local  func(*teams.TeamLead)
	patch  apiclient.TeamLeadPatch
	verify func(teams.TeamLead) error
	move   bool
	target *int64
}

func (b *Board) edit(ctx context.Context, id int64, e edit) error {
	h, err := b.store.TeamLeads.ApplyOptimistic(id, e.local)
	if err != nil {
		return fmt.Errorf("kanban: team lead %d: %w", id, err)
	}

	b.mu.Lock()
	delete(b.failures, id)
	if e.move {
		b.moves[id] = pendingMove{handle: h, target: e.target}
	}
	b.mu.Unlock()

	server, err := b.api.UpdateTeamLead(ctx, id, e.patch)
	if err == nil && e.verify != nil {
		err = e.verify(server)
	}

	ev := audit.Event{Type: e.typ, Actor: b.actor(), TeamLeadID: id}
	if e.target != nil {
		ev.CategoryID = *e.target
	}

	var current bool
	if err != nil {
		current = b.store.TeamLeads.Rollback(h)
		ev.Outcome = audit.OutcomeRolledBack
		ev.Err = apiclient.Message(err)
	} else {
		current = b.store.TeamLeads.Confirm(h, server)
		ev.Outcome = audit.OutcomeConfirmed
	}
	if !current {
		ev.Outcome = audit.OutcomeSuperseded
	}

	b.mu.Lock()
	if m, ok := b.moves[id]; ok && m.handle == h {
		delete(b.moves, id)
	}
	if err != nil && current {
		b.failures[id] = apiclient.Message(err)
	}
	b.mu.Unlock()

	b.audit.Record(ctx, ev)

	switch {
	case err == nil:
		return nil
	case !current:
		return fmt.Errorf("%w: %w", ErrSuperseded, err)
	default:
		b.logFor(ctx).Warn("board edit rolled back", "type", e.typ, "team_lead_id", id, "err", err)
		return err
	}
}

// CreateCategory appends a category after the last column.
func (b *Board) CreateCategory(ctx context.Context, name string) (teams.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return teams.Category{}, ErrEmptyName
	}
	pos := 0
	if cats := b.store.SortedCategories(); len(cats) > 0 {
		pos = cats[len(cats)-1].Position + 1
	}

	c, err := b.api.CreateCategory(ctx, name, pos)
	ev := audit.Event{Type: audit.EventTypeCategoryCreated, Actor: b.actor(), Message: name}
	if err != nil {
		ev.Outcome, ev.Err = audit.OutcomeFailed, apiclient.Message(err)
		b.audit.Record(ctx, ev)
		return teams.Category{}, err
	}
	ev.Outcome, ev.CategoryID = audit.OutcomeConfirmed, c.ID
	b.audit.Record(ctx, ev)

	b.refresh(ctx)
	return c, nil
}

// EditName sets the rename buffer of category id.
func (b *Board) EditName(id int64, text string) error {
	c, ok := b.store.Categories.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.drafts[id]
	if d == nil {
		d = &draft{committed: c.Name}
		b.drafts[id] = d
	}
	d.text = text
	return nil
}

// Draft returns the rename buffer of category id. A buffer the operator has
// not changed since the last known committed name follows refreshes.
func (b *Board) Draft(id int64) string {
	c, _ := b.store.Categories.Get(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draftLocked(id, c.Name)
}

func (b *Board) draftLocked(id int64, committed string) string {
	d := b.drafts[id]
	if d == nil {
		return committed
	}
	if d.text == d.committed {
		d.text = committed
	}
	d.committed = committed
	return d.text
}

// SaveName commits the rename buffer of category id. The buffer is kept when
// the server rejects the name.
func (b *Board) SaveName(ctx context.Context, id int64) (teams.Category, error) {
	name := strings.TrimSpace(b.Draft(id))
	if name == "" {
		return teams.Category{}, ErrEmptyName
	}

	c, err := b.api.RenameCategory(ctx, id, name)
	ev := audit.Event{Type: audit.EventTypeCategoryRenamed, Actor: b.actor(), CategoryID: id, Message: name}
	if err != nil {
		ev.Outcome, ev.Err = audit.OutcomeFailed, apiclient.Message(err)
		b.audit.Record(ctx, ev)
		return teams.Category{}, err
	}
	ev.Outcome = audit.OutcomeConfirmed
	b.audit.Record(ctx, ev)

	b.mu.Lock()
	delete(b.drafts, id)
	b.mu.Unlock()

	b.refresh(ctx)
	return c, nil
}

// DeleteCategory removes category id once confirmed is true. Its team leads
// become uncategorized.
func (b *Board) DeleteCategory(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	err := b.api.DeleteCategory(ctx, id)
	ev := audit.Event{Type: audit.EventTypeCategoryDeleted, Actor: b.actor(), CategoryID: id}
	if err != nil {
		ev.Outcome, ev.Err = audit.OutcomeFailed, apiclient.Message(err)
		b.audit.Record(ctx, ev)
		return err
	}
	ev.Outcome = audit.OutcomeConfirmed
	b.audit.Record(ctx, ev)

	detached := b.store.RemoveCategory(id)
	b.mu.Lock()
	delete(b.drafts, id)
	b.mu.Unlock()
	b.logFor(ctx).Info("category deleted", "category_id", id, "detached", detached)

	b.refresh(ctx)
	return nil
}

// CreateTeamLead adds a team lead, storing its phone in dialable form.
func (b *Board) CreateTeamLead(ctx context.Context, in apiclient.NewTeamLead) (teams.TeamLead, error) {
	if strings.TrimSpace(in.TeamName) == "" {
		return teams.TeamLead{}, fmt.Errorf("%w: team_name", ErrMissingField)
	}
	if !b.store.HasCategory(in.CategoryID) {
		return teams.TeamLead{}, fmt.Errorf("%w: %d", ErrUnknownCategory, *in.CategoryID)
	}
	in.Phone = normalize.ToDialable(in.Phone)
	if in.Status == "" {
		in.Status = teams.StatusAvailable
	}

	tl, err := b.api.CreateTeamLead(ctx, in)
	ev := audit.Event{Type: audit.EventTypeTeamLeadCreated, Actor: b.actor(), Message: in.TeamName}
	if err != nil {
		ev.Outcome, ev.Err = audit.OutcomeFailed, apiclient.Message(err)
		b.audit.Record(ctx, ev)
		return teams.TeamLead{}, err
	}
	ev.Outcome, ev.TeamLeadID = audit.OutcomeConfirmed, tl.ID
	b.audit.Record(ctx, ev)

	b.refresh(ctx)
	return tl, nil
}

func (b *Board) DeleteTeamLead(ctx context.Context, id int64) error {
	err := b.api.DeleteTeamLead(ctx, id)
	ev := audit.Event{Type: audit.EventTypeTeamLeadDeleted, Actor: b.actor(), TeamLeadID: id}
	if err != nil {
		ev.Outcome, ev.Err = audit.OutcomeFailed, apiclient.Message(err)
		b.audit.Record(ctx, ev)
		return err
	}
	ev.Outcome = audit.OutcomeConfirmed
	b.audit.Record(ctx, ev)

	b.store.TeamLeads.Remove(id)
	b.mu.Lock()
	delete(b.failures, id)
	b.mu.Unlock()

	b.refresh(ctx)
	return nil
}

// logFor prefers the request-scoped logger so edit failures carry the
// request id.
func (b *Board) logFor(ctx context.Context) *slog.Logger {
	return logger.FromOr(ctx, b.log)
}

// refresh refetches through every refresher. The write it follows already
// succeeded, so failures are logged and left to the next poll.
func (b *Board) refresh(ctx context.Context) {
	for _, r := range b.refreshers {
		if err := r.RefreshAndWait(ctx); err != nil {
			b.logFor(ctx).Warn("refetch after write failed", "err", err)
		}
	}
}
