package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/app"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/cfg"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/cryptoutil"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/health"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpserver"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/metrics"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/opshttp"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/otelx"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/prof"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/subscription"
	v "github.com/yannicklang1/eu-complience-hub-sub009/internal/version"
)

const (
	// drainPeriod keeps serving after readiness fails so the load balancer
	// can stop routing to us before listeners close.
	drainPeriod     = 15 * time.Second
	shutdownTimeout = 10 * time.Second
	probeTimeout    = 2 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool
	var envFile string
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading "+cfg.EnvPrefix+"* variables")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			v.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return 0
	}

	stderrf := func(format string, args ...any) { fmt.Fprintf(os.Stderr, format+"\n", args...) }
	if err := cfg.LoadDotEnv(envFile); err != nil {
		stderrf("config error: %v", err)
		return 1
	}
	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, stderrf)
	if err := cfg.Validate(conf); err != nil {
		stderrf("config error: %v", err)
		return 1
	}

	// levels were checked by Validate
	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		BuildId:           vi.BuildId,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		stderrf("logger init error: %v", err)
		return 1
	}
	defer func() { _ = lg.Sync() }()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Short(),
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"ops_port", conf.OpsPort,
		"enable_pprof", conf.EnablePprof,
		"enable_tracing", conf.EnableTracing,
		"enable_pyroscope", conf.EnablePyroscope,
		"store_backend", conf.StoreBackend,
		"blob_backend", conf.BlobBackend,
		"ratelimit_window", conf.RateLimitWindow,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", &vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
		OnActive: m.SetProfilingActive,
	})
	if err != nil {
		L.Error(ctx, err, "profiling disabled after start failure")
	}
	defer stopProf()

	// collector runs on localhost, hence insecure
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:     conf.EnableTracing,
		Endpoint:    conf.OTLPEndpoint,
		Insecure:    true,
		Sample:      conf.TraceSample,
		Service:     v.AppName,
		Component:   "server",
		Version:     vi.Version,
		RedactQuery: httpmw.RedactQuery,
		RedactPath:  httpmw.RedactPath,
	})
	if err != nil {
		L.Error(ctx, err, "tracing init failed")
		shutdownOTEL = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	clients := newAWSClients(ctx, vi.AppID())

	secret, err := loadAdminSecret(ctx, conf, clients)
	if err != nil {
		L.Error(ctx, err, "failed to load admin secret")
		return 1
	}
	adminSecret := cryptoutil.NewSecretCheck(secret)
	if !adminSecret.Configured() {
		L.Warn(ctx, "no admin secret configured, admin API will reject every request")
	}

	rows, closeRows, err := openRowStore(ctx, conf)
	if err != nil {
		L.Error(ctx, err, "failed to open row store", "store_backend", conf.StoreBackend)
		return 1
	}
	defer closeRows()

	blobs, err := openBlobStore(ctx, conf, clients)
	if err != nil {
		L.Error(ctx, err, "failed to open resource store", "blob_backend", conf.BlobBackend)
		return 1
	}

	limiters := app.NewLimiters(ctx, app.LimiterConfig{
		Window:      conf.RateLimitWindow,
		Cleanup:     conf.RateLimitCleanup,
		AdminMax:    conf.RateLimitAdminMax,
		FormMax:     conf.RateLimitFormMax,
		DownloadMax: conf.RateLimitDownloadMax,
		TokenMax:    conf.RateLimitTokenMax,
	}, L, m)
	defer limiters.Stop()

	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.Named("row store", health.WithTimeout(probeTimeout, health.CheckFunc(rows.Ping))),
	)
	liveness := health.Fixed(true, "")

	apiStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		Health:       liveness,
		Readiness:    readiness,
		APIRoutes: app.Routes(app.Deps{
			Rows:        rows,
			Blobs:       blobs,
			AdminSecret: adminSecret,
			Limiters:    limiters,
			Notifier:    subscription.LogNotifier{},
			Metrics:     m,
		}),
	})
	if err != nil {
		L.Error(ctx, err, "failed to start api listener")
		return 1
	}

	// ops listener rejects public peers itself; the security group is the first line
	opsStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:         conf.OpsPort,
		Metrics:      m.Handler(),
		EnablePprof:  conf.EnablePprof,
		Health:       liveness,
		Readiness:    readiness,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops listener")
		_ = apiStop(context.Background())
		return 1
	}

	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd readiness not sent", "reason", err.Error())
	}

	<-ctx.Done()
	stop()
	bg := context.Background()
	L.Info(bg, "shutdown signal received")

	gate.Set("draining")
	drain(bg, L)

	shutdownCtx, cancel := context.WithTimeout(bg, shutdownTimeout)
	defer cancel()
	if err := apiStop(shutdownCtx); err != nil {
		L.Error(bg, err, "api server shutdown")
	}
	if err := opsStop(shutdownCtx); err != nil {
		L.Error(bg, err, "ops server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(bg, err, "tracing shutdown")
	}

	L.Info(bg, "shutdown complete")
	return 0
}

// drain waits out drainPeriod while readiness reports draining. A second
// signal skips the wait.
func drain(ctx context.Context, L log.Logger) {
	L.Info(ctx, "draining before shutdown", "period", drainPeriod)
	force := make(chan os.Signal, 1)
	signal.Notify(force, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(force)

	select {
	case <-time.After(drainPeriod):
		L.Info(ctx, "drain period complete")
	case <-force:
		L.Warn(ctx, "second signal received, skipping drain")
	}
}
