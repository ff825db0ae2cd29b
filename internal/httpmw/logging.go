package httpmw

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/cryptoutil"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// responseWriter wraps http.ResponseWriter to capture status and bytes written
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64

	// response.write span, started on first WriteHeader/Write
	ctx      context.Context
	reqStart time.Time

	writeSpan        trace.Span
	writeSpanStarted bool
	writeBlocked     time.Duration
	writeErr         error
}

func (rw *responseWriter) ensureWriteSpan() {
	if rw.writeSpanStarted {
		return
	}
	rw.writeSpanStarted = true

	parent := trace.SpanFromContext(rw.ctx)
	if !parent.IsRecording() {
		return
	}
	ttfb := time.Since(rw.reqStart)
	_, rw.writeSpan = otel.Tracer("compliancehub/httpmw").Start(rw.ctx, "response.write",
		trace.WithAttributes(attribute.Float64("http.server.ttfb_seconds", ttfb.Seconds())),
	)
}

func (rw *responseWriter) finishWriteSpan() {
	if rw.writeSpan == nil {
		return
	}
	rw.writeSpan.SetAttributes(
		attribute.Int("http.response.status_code", rw.statusOrOK()),
		attribute.Int64("http.response.body.size", rw.bytes),
		attribute.Float64("http.server.write.block_seconds", rw.writeBlocked.Seconds()),
	)
	if rw.writeErr != nil {
		rw.writeSpan.RecordError(rw.writeErr)
		rw.writeSpan.SetStatus(codes.Error, rw.writeErr.Error())
	}
	rw.writeSpan.End()
}

func (rw *responseWriter) statusOrOK() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.ensureWriteSpan()
	if rw.status == 0 {
		rw.status = code
	}
	start := time.Now()
	rw.ResponseWriter.WriteHeader(code)
	rw.writeBlocked += time.Since(start)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.ensureWriteSpan()
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	start := time.Now()
	n, err := rw.ResponseWriter.Write(b)
	rw.writeBlocked += time.Since(start)
	rw.bytes += int64(n)
	if err != nil && rw.writeErr == nil {
		rw.writeErr = err
	}
	return n, err
}

// Flush is needed for streamed downloads.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, xerrors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// sensitiveParams are query parameters that carry capabilities. They are
// replaced by a fingerprint before anything reaches logs or spans.
var sensitiveParams = map[string]bool{
	"token": true,
}

// RedactQuery renders raw with every sensitive parameter replaced by
// "fp:<fingerprint>". Unparseable queries are dropped entirely.
func RedactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparseable]"
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			if sensitiveParams[strings.ToLower(k)] {
				v = "fp:" + cryptoutil.Fingerprint(v)
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// RedactPath replaces every path segment shaped like a token (32 to 256
// characters of letters, digits, '-' or '_') with "fp:<fingerprint>".
func RedactPath(p string) string {
	segs := strings.Split(p, "/")
	changed := false
	for i, seg := range segs {
		if tokenLike(seg) {
			segs[i] = "fp:" + cryptoutil.Fingerprint(seg)
			changed = true
		}
	}
	if !changed {
		return p
	}
	return strings.Join(segs, "/")
}

func tokenLike(seg string) bool {
	if len(seg) < 32 || len(seg) > 256 {
		return false
	}
	for _, c := range seg {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// WithLogger stores a request-scoped logger in the context carrying request
// id, client key, method, path and the redacted query.
func WithLogger(base log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			reqID := RequestIDFromContext(ctx)
			clientKey := ClientKeyFromContext(ctx)
			if clientKey == "" {
				clientKey = ExtractClientKey(r.Header)
			}
			peerAddr := r.RemoteAddr
			if host, _, err := net.SplitHostPort(peerAddr); err == nil {
				peerAddr = host
			}
			scheme := schemeFromRequest(r)
			query := RedactQuery(r.URL.RawQuery)

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("request_id", reqID),
					attribute.String("client.address", clientKey),
					attribute.String("network.peer.address", peerAddr),
					attribute.String("url.scheme", scheme),
				)
				if query != "" {
					span.SetAttributes(attribute.String("url.query", query))
				}
			}

			fields := []any{
				"request_id", reqID,
				"client.address", clientKey,
				"network.peer.address", peerAddr,
				"server.address", r.Host,
				"http.request.method", r.Method,
				"url.path", RedactPath(r.URL.Path),
				"url.scheme", scheme,
			}
			if query != "" {
				fields = append(fields, "url.query", query)
			}

			ctx = log.WithContext(ctx, base.With(fields...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLog writes one line per request after the handler returns. Health
// probes are skipped.
func AccessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, ctx: r.Context(), reqStart: start}

			next.ServeHTTP(rw, r)
			rw.finishWriteSpan()

			if r.URL.Path == "/-/ready" || r.URL.Path == "/-/healthy" {
				return
			}

			ctx := r.Context()
			var reqBodySize int64
			if r.ContentLength > 0 {
				reqBodySize = r.ContentLength
			}

			log.FromContext(ctx).Info(ctx, "http request",
				"http.response.status_code", rw.statusOrOK(),
				"http.server.request.duration", time.Since(start).Seconds(),
				"http.response.body.size", rw.bytes,
				"http.request.body.size", reqBodySize,
				"http.route", routePattern(r),
			)
		})
	}
}

// routePattern returns chi's matched pattern, or the redacted path when unrouted.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return RedactPath(r.URL.Path)
}

func schemeFromRequest(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-Proto"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		switch s := strings.ToLower(strings.TrimSpace(first)); s {
		case "http", "https":
			return s
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// Scope tags the request logger and span with the handler name.
func Scope(handler string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = log.WithContext(ctx, log.FromContext(ctx).With("handler", handler))

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.String("app.handler", handler))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
