package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// unmatchedRoute labels requests no route claimed. Raw paths would carry
// download and subscription tokens into label values.
const unmatchedRoute = "unmatched"

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.n += n
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Middleware records request count, latency, size and 5xx errors labelled by
// the chi route pattern, never the raw path.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// chi reuses a route context it finds, so the matched pattern is
		// readable here after the handler returns
		if chi.RouteContext(r.Context()) == nil {
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
		}

		m.http.inflight.Inc()
		defer m.http.inflight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		m.observe(r, sw, time.Since(start))
	})
}

func (m *ServerMetrics) observe(r *http.Request, sw *statusWriter, elapsed time.Duration) {
	code := sw.status
	if code == 0 {
		code = http.StatusOK
	}
	ctx := r.Context()
	route := routeOf(ctx)

	m.http.total.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
	if code >= http.StatusInternalServerError {
		m.http.errors.WithLabelValues(r.Method, route).Inc()
	}
	m.http.size.WithLabelValues(r.Method, route).Observe(float64(sw.n))

	obs := m.http.duration.WithLabelValues(r.Method, route)
	if ex := traceExemplar(ctx); ex != nil {
		if eo, ok := obs.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(elapsed.Seconds(), ex)
			return
		}
	}
	obs.Observe(elapsed.Seconds())
}

func routeOf(ctx context.Context) string {
	if rc := chi.RouteContext(ctx); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

// traceExemplar links a latency sample to its trace when the trace is sampled.
func traceExemplar(ctx context.Context) prometheus.Labels {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil
	}
	return prometheus.Labels{"trace_id": sc.TraceID().String()}
}
