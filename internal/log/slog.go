package log

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

const defaultMaxErrorLinks = 8

type slogLogger struct {
	h         slog.Handler
	attrs     []slog.Attr
	errLinks  bool
	linkLimit int
}

func newSlog(opts Options) (Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.StacktraceLevel == 0 {
		opts.StacktraceLevel = slog.LevelError
	}
	if opts.MaxErrorLinks <= 0 {
		opts.MaxErrorLinks = defaultMaxErrorLinks
	}
	keys := opts.SensitiveKeys
	if keys == nil {
		keys = DefaultSensitiveKeys
	}

	hopts := &slog.HandlerOptions{Level: opts.Level, AddSource: true}
	var h slog.Handler
	if opts.JsonFormat {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	// innermost first: redaction sees every attribute the others add
	h = newRedactHandler(h, keys)
	h = traceHandler{next: h}
	h = stackHandler{next: h, level: opts.StacktraceLevel}

	base := []slog.Attr{slog.String("app", opts.App)}
	for _, kv := range [][2]string{{"version", opts.Version}, {"commit", opts.Commit}, {"build_id", opts.BuildId}} {
		if kv[1] != "" {
			base = append(base, slog.String(kv[0], kv[1]))
		}
	}

	return &slogLogger{
		h:         h,
		attrs:     base,
		errLinks:  opts.IncludeErrorLinks,
		linkLimit: opts.MaxErrorLinks,
	}, nil
}

// With returns a child logger; the parent is never modified.
func (s *slogLogger) With(kv ...any) Logger {
	child := *s
	child.attrs = append(append(make([]slog.Attr, 0, len(s.attrs)+len(kv)/2), s.attrs...), kvAttrs(kv)...)
	return &child
}

func (s *slogLogger) Debug(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelDebug, msg, kv)
}

func (s *slogLogger) Info(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelInfo, msg, kv)
}

func (s *slogLogger) Warn(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelWarn, msg, kv)
}

func (s *slogLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	if err != nil {
		kv = append(kv, errorAttrs(err, s.errLinks, s.linkLimit)...)
	}
	s.log(ctx, slog.LevelError, msg, kv)
}

func (s *slogLogger) Sync() error { return nil }

// kvAttrs pairs up kv; non-string keys and a trailing odd value are dropped.
func kvAttrs(kv []any) []slog.Attr {
	out := make([]slog.Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			out = append(out, slog.Any(k, kv[i+1]))
		}
	}
	return out
}

// log must be called directly from a level method so source points at the
// caller of Debug/Info/Warn/Error.
func (s *slogLogger) log(ctx context.Context, lvl slog.Level, msg string, kv []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.h.Enabled(ctx, lvl) {
		return
	}
	var pcs [1]uintptr
	// runtime.Callers, log, level method
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), lvl, msg, pcs[0])
	r.AddAttrs(s.attrs...)
	r.AddAttrs(kvAttrs(kv)...)
	_ = s.h.Handle(ctx, r)
}
