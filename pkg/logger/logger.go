package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New returns the process logger: JSON on stdout, debug level for local and
// dev environments.
func New(appEnv string) *slog.Logger {
	return NewTo(os.Stdout, appEnv)
}

// NewTo is New with an explicit sink. One-shot CLI commands log to stderr so
// stdout stays machine-readable.
func NewTo(w io.Writer, appEnv string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: Level(appEnv)})
	return slog.New(h).With("service", "dispatch-console")
}

// Level maps an APP_ENV value to the minimum log level.
func Level(appEnv string) slog.Level {
	if appEnv == "local" || appEnv == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	return FromOr(ctx, slog.Default())
}

// FromOr gets the request-scoped logger from context, falling back to l for
// background work such as polling.
func FromOr(ctx context.Context, l *slog.Logger) *slog.Logger {
	if ctx != nil {
		if v, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && v != nil {
			return v
		}
	}
	if l == nil {
		return slog.Default()
	}
	return l
}
