package app

import (
	"context"
	"time"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/metrics"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/ratelimit"
)

// Limiter names, also used as the "limiter" metric label.
const (
	LimiterAdmin    = "admin"
	LimiterForm     = "form"
	LimiterDownload = "download"
	LimiterToken    = "token"
)

// deniedLogInterval caps rate-limit warnings across all clients of a limiter.
const deniedLogInterval = 10 * time.Second

type LimiterConfig struct {
	Window      time.Duration
	Cleanup     time.Duration
	AdminMax    int
	FormMax     int
	DownloadMax int
	TokenMax    int
}

// DefaultLimiterConfig: one minute windows, 5 admin attempts, 10 for the rest.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Window:      ratelimit.DefaultWindow,
		Cleanup:     ratelimit.DefaultCleanupInterval,
		AdminMax:    5,
		FormMax:     10,
		DownloadMax: 10,
		TokenMax:    10,
	}
}

// Limiters holds one independent limiter per endpoint category.
type Limiters struct {
	Admin    *ratelimit.Limiter
	Form     *ratelimit.Limiter
	Download *ratelimit.Limiter
	Token    *ratelimit.Limiter
}

// NewLimiters builds the four limiters with logging and, when m is non-nil,
// metrics hooks. Their sweepers stop when ctx is cancelled.
func NewLimiters(ctx context.Context, cfg LimiterConfig, logger log.Logger, m *metrics.ServerMetrics) Limiters {
	if logger == nil {
		logger = log.Nop()
	}
	build := func(name string, max int) *ratelimit.Limiter {
		opts := []ratelimit.Option{
			ratelimit.WithName(name),
			ratelimit.WithWindow(cfg.Window),
			ratelimit.WithMax(max),
			ratelimit.WithCleanupInterval(cfg.Cleanup),
			ratelimit.WithOnFirstDenied(ratelimit.Throttle(deniedLogInterval, func(name, key string) {
				logger.Warn(ctx, "rate limit exceeded", "limiter", name, "client.address", key)
			})),
		}
		if m != nil {
			opts = append(opts,
				ratelimit.WithOnDenied(func(name, _ string) { m.IncRateLimitDenied(name) }),
				ratelimit.WithOnSweep(func(name string, _, remaining int) { m.SetRateLimitTracked(name, remaining) }),
			)
		}
		return ratelimit.New(ctx, opts...)
	}
	return Limiters{
		Admin:    build(LimiterAdmin, cfg.AdminMax),
		Form:     build(LimiterForm, cfg.FormMax),
		Download: build(LimiterDownload, cfg.DownloadMax),
		Token:    build(LimiterToken, cfg.TokenMax),
	}
}

// Stop halts every sweeper.
func (ls Limiters) Stop() {
	for _, l := range []*ratelimit.Limiter{ls.Admin, ls.Form, ls.Download, ls.Token} {
		if l != nil {
			l.Stop()
		}
	}
}
