package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/health"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
)

type Options struct {
	Logger log.Logger
	Port   int

	UseRecoverMW bool
	OnPanic      func()

	MetricsMW func(http.Handler) http.Handler
	Health    health.Probe
	Readiness health.Probe

	// MaxBodyBytes caps every request body; <= 0 uses httpmw.DefaultMaxBody.
	MaxBodyBytes int64

	// APIRoutes registers the application routes on the root router.
	APIRoutes func(chi.Router)
}
