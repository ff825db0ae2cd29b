package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/health"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

const DefaultPort = 8080

// NewHandler builds the public handler: routes + middleware.
// main() owns *http.Server so it can do graceful shutdown
func NewHandler(opts *Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	r := chi.NewRouter()

	// every API response is JSON; downloads are already-compressed documents
	r.Use(middleware.Compress(5, "application/json"))

	// Annotate logger and span with http.route once chi has matched
	r.Use(httpmw.AnnotateHTTPRoute)

	r.Use(httpmw.AccessLog())

	r.Use(httpmw.MaxBody(opts.MaxBodyBytes))

	if opts.Health != nil {
		r.Get("/-/healthy", health.HealthzHandler(opts.Health))
	}
	if opts.Readiness != nil {
		r.Get("/-/ready", health.ReadyzHandler(opts.Readiness))
	}

	if opts.APIRoutes != nil {
		opts.APIRoutes(r)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmw.WriteJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmw.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var recoverMW func(http.Handler) http.Handler
	if opts.UseRecoverMW {
		recoverMW = httpmw.Recover(logger, opts.OnPanic)
	}

	// outermost first; nil entries are skipped
	return httpmw.Chain(r,
		// set on every response, panics included
		httpmw.SecurityHeaders,
		recoverMW,
		httpmw.RequestID("X-Request-Id"),
		// before anything that logs or rate-limits
		httpmw.ClientKey,
		tracing,
		httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id"),
		opts.MetricsMW,
		// innermost so the request logger sees trace, request id and client key
		httpmw.WithLogger(logger),
	)
}

func tracing(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return shouldTrace(r.URL.Path)
		}),
		// AnnotateHTTPRoute renames the span to the route pattern; the raw
		// path would carry tokens into span names
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
}

// health checks are not traced
func shouldTrace(p string) bool {
	return !strings.HasPrefix(p, "/-/")
}

// Server timeout defaults, shared with opshttp.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 60 * time.Second // downloads stream through this
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// Start public HTTP server
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, opts *Options) (func(context.Context) error, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := fmt.Sprintf(":%d", port)

	srv := NewServer(addr, NewHandler(opts))

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp4", addr)
	if err != nil {
		return nil, xerrors.EnsureTrace(err)
	}

	go func() {
		opts.Logger.Info(ctx, "http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			opts.Logger.Error(ctx, err, "http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			opts.Logger.Info(sctx, "http server shutting down")
			c, cancel := context.WithTimeout(sctx, 10*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}
