// Package pgsource reads snapshots straight from a Postgres read replica of
// the call-center database. It never writes.
package pgsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"dispatch-console/internal/calls"
	"dispatch-console/internal/query"
	"dispatch-console/internal/teams"
	"dispatch-console/pkg/utils"
)

// DriverName is the database/sql driver registered by pgx stdlib.
const DriverName = "pgx"

const defaultPageSize = 20

// Source serves call and board snapshots from the replica.
type Source struct {
	db  *sql.DB
	log *slog.Logger
}

// DefaultStatementTimeout bounds replica queries when the pool sets none.
const DefaultStatementTimeout = 10 * time.Second

// Open connects to the replica and verifies connectivity. Sessions are always
// read-only.
func Open(ctx context.Context, dsn string, pool utils.PostgresPoolConfig, log *slog.Logger) (*Source, error) {
	db, err := utils.OpenPostgres(ctx, DriverName, dsn, ReplicaPool(pool))
	if err != nil {
		return nil, fmt.Errorf("pgsource: open: %w", err)
	}
	return New(db, log), nil
}

// ReplicaPool forces the read-only session settings onto pool.
func ReplicaPool(pool utils.PostgresPoolConfig) utils.PostgresPoolConfig {
	pool.ReadOnly = true
	if pool.StatementTimeout <= 0 {
		pool.StatementTimeout = DefaultStatementTimeout
	}
	return pool
}

func New(db *sql.DB, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{db: db, log: log}
}

func (s *Source) Ping(ctx context.Context) error {
	return utils.HealthCheck(ctx, s.db, 2*time.Second)
}

func (s *Source) Close() error { return s.db.Close() }

// callColumns joins at most one team lead per side of the call, the lowest id
// among those sharing the number, so every call yields exactly one row.
const callColumns = `
	cr.id, cr.direction, COALESCE(cr.calling_number, ''), COALESCE(cr.called_number, ''),
	COALESCE(ct.team_name, ''), COALESCE(ct.leader_first_name, ''),
	COALESCE(dt.team_name, ''), COALESCE(dt.leader_first_name, ''),
	COALESCE(cr.duration, 0), COALESCE(cr.status, ''), COALESCE(cr.is_missed, false), cr.timestamp
FROM call_records cr
LEFT JOIN LATERAL (
	SELECT team_name, leader_first_name FROM team_leads
	WHERE phone <> '' AND phone = cr.calling_number ORDER BY id LIMIT 1
) ct ON true
LEFT JOIN LATERAL (
	SELECT team_name, leader_first_name FROM team_leads
	WHERE phone <> '' AND phone = cr.called_number ORDER BY id LIMIT 1
) dt ON true`

// ListCalls returns calls started in [from, to).
func (s *Source) ListCalls(ctx context.Context, from, to time.Time) ([]calls.CallRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+callColumns+` WHERE cr.timestamp >= $1 AND cr.timestamp < $2 ORDER BY cr.timestamp`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("pgsource: list calls: %w", err)
	}
	return scanCalls(rows)
}

// LatestCalls returns the most recent calls, newest first.
func (s *Source) LatestCalls(ctx context.Context, limit int) ([]calls.CallRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+callColumns+` ORDER BY cr.timestamp DESC, cr.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("pgsource: latest calls: %w", err)
	}
	return scanCalls(rows)
}

// SearchCalls returns one page of calls matching f, newest first.
func (s *Source) SearchCalls(ctx context.Context, f query.Filter) (calls.Page, error) {
	if err := f.Validate(); err != nil {
		return calls.Page{}, err
	}
	where, args := whereClause(f)
	page, size := f.Page, f.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}

	out := calls.Page{Page: page, PageSize: size}
	n := len(args)
	pageArgs := append(append([]any{}, args...), size, (page-1)*size)

	// Count and page come from the same snapshot so Total matches the page.
	err := utils.WithReadTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM call_records cr`+where, args...).Scan(&out.Total); err != nil {
			return fmt.Errorf("count calls: %w", err)
		}
		rows, err := tx.QueryContext(ctx,
			fmt.Sprintf(`SELECT %s%s ORDER BY cr.timestamp DESC, cr.id DESC LIMIT $%d OFFSET $%d`, callColumns, where, n+1, n+2),
			pageArgs...)
		if err != nil {
			return err
		}
		out.Items, err = scanCalls(rows)
		return err
	})
	if err != nil {
		return calls.Page{}, fmt.Errorf("pgsource: search calls: %w", err)
	}
	return out, nil
}

// whereClause renders the filter predicate with positional arguments.
func whereClause(f query.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if n := strings.TrimSpace(f.Number); n != "" {
		add("(cr.calling_number ILIKE ? OR cr.called_number ILIKE ?)", "%"+escapeLike(n)+"%")
	}
	switch f.Direction {
	case query.DirectionInbound:
		add("lower(cr.direction) IN (?, 'inbound')", "in")
	case query.DirectionOutbound:
		add("lower(cr.direction) IN (?, 'outbound')", "out")
	}
	switch f.Missed {
	case query.Yes:
		add("cr.is_missed = ?", true)
	case query.No:
		add("cr.is_missed = ?", false)
	}
	if f.StartDate != "" {
		add("cr.timestamp >= ?::date", f.StartDate)
	}
	if f.EndDate != "" {
		add("cr.timestamp < ?::date + 1", f.EndDate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCalls(rows *sql.Rows) ([]calls.CallRecord, error) {
	defer rows.Close()
	out := make([]calls.CallRecord, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("pgsource: scan call: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCall(r scanner) (calls.CallRecord, error) {
	var c calls.CallRecord
	var dir string
	err := r.Scan(&c.ID, &dir,
		&c.CallingNumber, &c.CalledNumber,
		&c.CallingTeam, &c.CallingLeader,
		&c.CalledTeam, &c.CalledLeader,
		&c.DurationSeconds, &c.Status, &c.IsMissed, &c.StartedAt)
	if err != nil {
		return calls.CallRecord{}, err
	}
	c.Direction = NormalizeDirection(dir)
	if c.DurationSeconds < 0 {
		c.DurationSeconds = 0
	}
	return c, nil
}

// NormalizeDirection maps the stored direction ("in", "out", or already
// upper-case) to the API enum. Unknown values pass through upper-cased.
func NormalizeDirection(v string) calls.Direction {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "in", "inbound", "incoming":
		return calls.DirectionInbound
	case "out", "outbound", "outgoing":
		return calls.DirectionOutbound
	default:
		return calls.Direction(strings.ToUpper(strings.TrimSpace(v)))
	}
}

// Board reads categories and team leads in one read-only transaction so both
// collections come from the same replica snapshot.
func (s *Source) Board(ctx context.Context) ([]teams.Category, []teams.TeamLead, error) {
	var cats []teams.Category
	var leads []teams.TeamLead

	err := utils.WithReadTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		if cats, err = listCategories(ctx, tx); err != nil {
			return err
		}
		leads, err = listTeamLeads(ctx, tx)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pgsource: board: %w", err)
	}
	return cats, leads, nil
}

func listCategories(ctx context.Context, tx *sql.Tx) ([]teams.Category, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, name, position FROM team_lead_categories ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]teams.Category, 0)
	for rows.Next() {
		var c teams.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Position); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func listTeamLeads(ctx context.Context, tx *sql.Tx) ([]teams.TeamLead, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, team_name, leader_first_name, leader_last_name, COALESCE(phone, ''),
		       status, category_id, intervention_started_at
		FROM team_leads ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]teams.TeamLead, 0)
	for rows.Next() {
		var tl teams.TeamLead
		var cat sql.NullInt64
		var started sql.NullTime
		if err := rows.Scan(&tl.ID, &tl.TeamName, &tl.LeaderFirstName, &tl.LeaderLastName,
			&tl.Phone, &tl.Status, &cat, &started); err != nil {
			return nil, err
		}
		if cat.Valid {
			tl.CategoryID = teams.ID(cat.Int64)
		}
		if started.Valid {
			t := started.Time
			tl.InterventionStartedAt = &t
		}
		out = append(out, tl)
	}
	return out, rows.Err()
}
