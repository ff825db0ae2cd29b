package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/version"
)

var (
	latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	// downloads dominate response sizes, so buckets reach 64 MiB
	sizeBuckets = prometheus.ExponentialBuckets(256, 4, 10)
)

type httpSeries struct {
	inflight prometheus.Gauge
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	panics   prometheus.Counter
}

type domainSeries struct {
	rateDenied    *prometheus.CounterVec
	rateTracked   *prometheus.GaugeVec
	downloads     *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	subscribe     *prometheus.CounterVec
	adminFailures prometheus.Counter
	storeErrors   *prometheus.CounterVec
}

// ServerMetrics owns a private registry. Every label is bounded: route
// patterns, limiter names and outcome enums only.
type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	http   httpSeries
	domain domainSeries

	buildInfo *prometheus.GaugeVec
	profiling prometheus.Gauge
}

func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &ServerMetrics{reg: reg}
	m.http = httpSeries{
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests currently being served",
		}),
		total: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Requests by method, route pattern and status",
		}, []string{"method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route pattern",
			Buckets: latencyBuckets,
		}, []string{"method", "route"}),
		size: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response body size by method and route pattern",
			Buckets: sizeBuckets,
		}, []string{"method", "route"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "5xx responses by method and route pattern",
		}, []string{"method", "route"}),
		panics: f.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Handler panics recovered by the server",
		}),
	}
	m.domain = domainSeries{
		rateDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_denied_total",
			Help: "Requests rejected by a rate limiter",
		}, []string{"limiter"}),
		rateTracked: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ratelimit_tracked_clients",
			Help: "Client windows held by a rate limiter after its last sweep",
		}, []string{"limiter"}),
		downloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "download_requests_total",
			Help: "Download attempts by outcome",
		}, []string{"outcome"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_token_transitions_total",
			Help: "Subscription link clicks by transition and result",
		}, []string{"transition", "result"}),
		subscribe: f.NewCounterVec(prometheus.CounterOpts{
			Name: "subscribe_requests_total",
			Help: "Subscribe form submissions by result",
		}, []string{"result"}),
		adminFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_auth_failures_total",
			Help: "Admin requests with a missing or wrong secret",
		}),
		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Failed backend calls by store",
		}, []string{"store"}),
	}
	m.buildInfo = f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata, always 1",
	}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"})
	m.profiling = f.NewGauge(prometheus.GaugeOpts{
		Name: "profiling_active",
		Help: "1 while continuous profiling is running",
	})

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

// Registry is exposed for tests and extra collectors.
func (m *ServerMetrics) Registry() *prometheus.Registry { return m.reg }

func (m *ServerMetrics) IncHttpPanic() { m.http.panics.Inc() }

// SetBuildInfoFromVersion publishes vi once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.WithLabelValues(
		app, component, vi.Version, vi.Commit, vi.CommitDate,
		vi.BuildId, vi.BuildDate, dirty, vi.GoVersion,
	).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	m.profiling.Set(v)
}

func (m *ServerMetrics) IncRateLimitDenied(limiter string) {
	m.domain.rateDenied.WithLabelValues(limiter).Inc()
}

func (m *ServerMetrics) SetRateLimitTracked(limiter string, n int) {
	m.domain.rateTracked.WithLabelValues(limiter).Set(float64(n))
}

func (m *ServerMetrics) IncDownloadOutcome(outcome string) {
	m.domain.downloads.WithLabelValues(outcome).Inc()
}

func (m *ServerMetrics) IncTokenTransition(transition, result string) {
	m.domain.transitions.WithLabelValues(transition, result).Inc()
}

func (m *ServerMetrics) IncAdminAuthFailure() { m.domain.adminFailures.Inc() }

func (m *ServerMetrics) IncSubscribe(result string) {
	m.domain.subscribe.WithLabelValues(result).Inc()
}

// IncStoreError counts a failed backend call; store is "rows" or "blobs".
func (m *ServerMetrics) IncStoreError(store string) {
	m.domain.storeErrors.WithLabelValues(store).Inc()
}
