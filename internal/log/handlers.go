package log

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// traceHandler adds trace_id and span_id from the active span.
type traceHandler struct{ next slog.Handler }

func (h traceHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{next: h.next.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{next: h.next.WithGroup(name)}
}

// stackHandler adds a "stack" attribute at or above level, taken from the
// logged error when it carries one.
type stackHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h stackHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h stackHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.level {
		return h.next.Handle(ctx, r)
	}
	var pcs []uintptr
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "err" {
			return true
		}
		if hs, ok := a.Value.Any().(hasStack); ok {
			pcs = hs.StackPCs()
		}
		return false
	})
	if len(pcs) == 0 {
		// runtime.Callers, callerStack, Handle
		pcs = callerStack(3)
	}
	r.AddAttrs(slog.String("stack", formatFrames(pcs)))
	return h.next.Handle(ctx, r)
}

func (h stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return stackHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h stackHandler) WithGroup(name string) slog.Handler {
	return stackHandler{next: h.next.WithGroup(name), level: h.level}
}

// redactHandler replaces the values of sensitive keys with a short
// fingerprint so related lines stay correlatable.
type redactHandler struct {
	next slog.Handler
	keys map[string]struct{}
}

func newRedactHandler(next slog.Handler, keys []string) redactHandler {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return redactHandler{next: next, keys: set}
}

func (h redactHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h redactHandler) Handle(ctx context.Context, r slog.Record) error {
	if len(h.keys) == 0 {
		return h.next.Handle(ctx, r)
	}
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redact(a)
	}
	return redactHandler{next: h.next.WithAttrs(clean), keys: h.keys}
}

func (h redactHandler) WithGroup(name string) slog.Handler {
	return redactHandler{next: h.next.WithGroup(name), keys: h.keys}
}

func (h redactHandler) redact(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		group := v.Group()
		clean := make([]any, len(group))
		for i, ga := range group {
			clean[i] = h.redact(ga)
		}
		return slog.Group(a.Key, clean...)
	}
	if _, ok := h.keys[strings.ToLower(a.Key)]; !ok {
		return a
	}
	s := v.String()
	if s == "" {
		return a
	}
	sum := sha256.Sum256([]byte(s))
	return slog.String(a.Key, "fp:"+hex.EncodeToString(sum[:6]))
}
