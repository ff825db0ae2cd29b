package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// TraceResponseHeaders echoes the trace and span id of sampled requests so a
// caller reporting a failed download can hand support an id to search for.
// Unsampled ids are not exported anywhere and are left off. Empty header
// names default to X-Trace-Id and X-Span-Id.
func TraceResponseHeaders(traceHeader, spanHeader string) Middleware {
	if traceHeader == "" {
		traceHeader = "X-Trace-Id"
	}
	if spanHeader == "" {
		spanHeader = "X-Span-Id"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() && sc.IsSampled() {
				h := w.Header()
				h.Set(traceHeader, sc.TraceID().String())
				h.Set(spanHeader, sc.SpanID().String())
			}
			next.ServeHTTP(w, r)
		})
	}
}
