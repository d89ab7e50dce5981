package utils

import (
	"context"
	"net/url"
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns != 5 || c.MaxIdleConns != 2 {
		t.Fatalf("unexpected pool sizes: %+v", c)
	}
	if c.ConnMaxLifetime != 30*time.Minute || c.ConnMaxIdleTime != 5*time.Minute || c.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected durations: %+v", c)
	}

	c = PostgresPoolConfig{MaxOpenConns: 9, PingTimeout: time.Second}.withDefaults()
	if c.MaxOpenConns != 9 || c.PingTimeout != time.Second {
		t.Fatalf("explicit values overridden: %+v", c)
	}
}

func TestOpenPostgres_UnknownDriver(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), "no-such-driver", "", PostgresPoolConfig{}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestSessionDSN_KeywordForm(t *testing.T) {
	dsn := "host=db port=5432 sslmode=disable"

	if got := SessionDSN(dsn, PostgresPoolConfig{}); got != dsn {
		t.Fatalf("expected dsn unchanged, got %q", got)
	}

	got := SessionDSN(dsn, PostgresPoolConfig{ReadOnly: true, StatementTimeout: 3 * time.Second})
	want := "host=db port=5432 sslmode=disable default_transaction_read_only=on statement_timeout=3000"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSessionDSN_URLForm(t *testing.T) {
	got := SessionDSN("postgres://u:p@db:5432/calls?sslmode=require", PostgresPoolConfig{ReadOnly: true})

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse %q: %v", got, err)
	}
	q := u.Query()
	if q.Get("default_transaction_read_only") != "on" || q.Get("sslmode") != "require" {
		t.Fatalf("unexpected query %q", u.RawQuery)
	}
	if q.Has("statement_timeout") {
		t.Fatalf("statement_timeout set without a timeout: %q", u.RawQuery)
	}
}
