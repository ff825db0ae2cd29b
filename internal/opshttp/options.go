package opshttp

import (
	"net/http"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe

	UseRecoverMW bool
	OnPanic      func() // called after a recovered panic, e.g. to bump http_panic_total
}
