package opshttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/health"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpserver"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

const DefaultPort = 9000

// NewHandler builds the ops mux: health, metrics and optional pprof, reachable
// only from non-public networks.
func NewHandler(L log.Logger, opts Options) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	mux := http.NewServeMux()

	mux.Handle("/-/healthy", health.HealthzHandler(opts.Health))
	mux.Handle("/-/ready", health.ReadyzHandler(opts.Readiness))

	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	// pprof (or shadow with 404s)
	if opts.EnablePprof {
		RegisterPprof(mux)
	} else {
		mux.HandleFunc("/debug/pprof/", http.NotFound)
	}

	var h http.Handler = requireNonPublicNetwork(L, mux)
	if opts.UseRecoverMW {
		h = httpmw.Recover(L, opts.OnPanic)(h)
	}
	return h
}

// Start ops HTTP server with /metrics, /-/healthy, /-/ready and pprof endpoints
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, L log.Logger, opts Options) (func(context.Context) error, error) {
	if L == nil {
		L = log.Nop()
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := fmt.Sprintf(":%d", port)

	srv := httpserver.NewServer(addr, NewHandler(L, opts))
	if opts.EnablePprof {
		// CPU profiles and traces stream for their full duration
		srv.WriteTimeout = 0
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "could not listen for ops port on addr=%v", addr)
	}

	go func() {
		L.Info(ctx, "ops http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "ops http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			L.Info(sctx, "ops http server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}
