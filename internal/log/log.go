// Package log is the service's structured logger: a small interface over
// log/slog that adds trace ids, stacks and error chains to records and keeps
// credentials and subscriber addresses out of the output.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type Logger interface {
	With(kv ...any) Logger

	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, err error, msg string, kv ...any)

	Sync() error
}

type Options struct {
	App     string
	Version string
	Commit  string
	BuildId string

	Level slog.Level
	// StacktraceLevel and above get a "stack" attribute. Zero means error.
	StacktraceLevel slog.Level
	JsonFormat      bool

	IncludeErrorLinks bool
	// MaxErrorLinks bounds error_links; <= 0 means 8.
	MaxErrorLinks int

	// SensitiveKeys are attribute keys whose values are replaced by a
	// fingerprint. nil uses DefaultSensitiveKeys.
	SensitiveKeys []string

	// Writer defaults to stdout.
	Writer io.Writer
}

// DefaultSensitiveKeys name attributes that must never be logged verbatim.
var DefaultSensitiveKeys = []string{
	"token",
	"confirm_token",
	"unsubscribe_token",
	"secret",
	"admin_secret",
	"password",
	"authorization",
	"email",
}

func New(opts Options) (Logger, error) { return newSlog(opts) }

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q (valid levels are debug|info|warn|error)", s)
}
