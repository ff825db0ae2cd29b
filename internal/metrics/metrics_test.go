package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/version"
)

func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

// labeledValue returns the counter or gauge value of the sample whose labels
// include all of want. Missing samples read as 0.
func labeledValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	f := gatherMetric(t, reg, name)
	if f == nil {
		return 0
	}
	for _, m := range f.GetMetric() {
		got := make(map[string]string)
		for _, lp := range m.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		match := true
		for k, v := range want {
			if got[k] != v {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}
		return m.GetGauge().GetValue()
	}
	return 0
}

func scrape(t *testing.T, m *ServerMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestNew_ScrapeHasCollectorsAndScalars(t *testing.T) {
	body := scrape(t, New())
	for _, name := range []string{
		"go_goroutines",
		"http_inflight_requests",
		"http_panic_total",
		"profiling_active",
		"admin_auth_failures_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q missing from scrape", name)
		}
	}
}

func TestNew_IsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncRateLimitDenied("admin")
	if got := labeledValue(t, b.Registry(), "ratelimit_denied_total", map[string]string{"limiter": "admin"}); got != 0 {
		t.Fatalf("second registry saw %v denials", got)
	}
}

func TestDomainCounters(t *testing.T) {
	m := New()
	reg := m.Registry()

	m.IncRateLimitDenied("download")
	m.IncRateLimitDenied("download")
	m.IncRateLimitDenied("admin")
	m.IncDownloadOutcome("served")
	m.IncTokenTransition("unsubscribe", "done")
	m.IncTokenTransition("unsubscribe", "not_found")
	m.IncTokenTransition("unsubscribe", "not_found")
	m.IncAdminAuthFailure()
	m.IncSubscribe("created")
	m.IncHttpPanic()

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"ratelimit_denied_total", map[string]string{"limiter": "download"}, 2},
		{"ratelimit_denied_total", map[string]string{"limiter": "admin"}, 1},
		{"download_requests_total", map[string]string{"outcome": "served"}, 1},
		{"subscription_token_transitions_total", map[string]string{"transition": "unsubscribe", "result": "not_found"}, 2},
		{"subscription_token_transitions_total", map[string]string{"transition": "unsubscribe", "result": "done"}, 1},
		{"admin_auth_failures_total", nil, 1},
		{"subscribe_requests_total", map[string]string{"result": "created"}, 1},
		{"http_panic_total", nil, 1},
	}
	for _, tt := range tests {
		if got := labeledValue(t, reg, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}

func TestSetRateLimitTracked(t *testing.T) {
	m := New()
	m.SetRateLimitTracked("form", 12)
	m.SetRateLimitTracked("form", 3)
	if got := labeledValue(t, m.Registry(), "ratelimit_tracked_clients", map[string]string{"limiter": "form"}); got != 3 {
		t.Fatalf("tracked = %v, want 3", got)
	}
}

func TestIncStoreError(t *testing.T) {
	m := New()
	m.IncStoreError("rows")
	m.IncStoreError("rows")
	m.IncStoreError("blobs")

	reg := m.Registry()
	if got := labeledValue(t, reg, "store_errors_total", map[string]string{"store": "rows"}); got != 2 {
		t.Fatalf("rows = %v, want 2", got)
	}
	if got := labeledValue(t, reg, "store_errors_total", map[string]string{"store": "blobs"}); got != 1 {
		t.Fatalf("blobs = %v, want 1", got)
	}
}

func TestSetProfilingActive(t *testing.T) {
	m := New()
	m.SetProfilingActive(true)
	if got := labeledValue(t, m.Registry(), "profiling_active", nil); got != 1 {
		t.Fatalf("active = %v", got)
	}
	m.SetProfilingActive(false)
	if got := labeledValue(t, m.Registry(), "profiling_active", nil); got != 0 {
		t.Fatalf("inactive = %v", got)
	}
}

func TestSetBuildInfoFromVersion(t *testing.T) {
	dirty := true
	m := New()
	m.SetBuildInfoFromVersion("compliancehub", "server", &version.Info{
		Version:   "1.4.0",
		Commit:    "abc1234",
		GoVersion: "go1.25",
		VCSDirty:  &dirty,
	})
	want := map[string]string{"app": "compliancehub", "component": "server", "version": "1.4.0", "vcs_dirty": "true"}
	if got := labeledValue(t, m.Registry(), "build_info", want); got != 1 {
		t.Fatalf("build_info = %v, want 1", got)
	}

	m = New()
	m.SetBuildInfoFromVersion("compliancehub", "server", &version.Info{Version: "dev"})
	if got := labeledValue(t, m.Registry(), "build_info", map[string]string{"vcs_dirty": "unknown"}); got != 1 {
		t.Fatal("nil VCSDirty should be labeled unknown")
	}
}

func TestHandler_OpenMetricsNegotiation(t *testing.T) {
	m := New()
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.Header.Set("Accept", "application/openmetrics-text; version=1.0.0")
	m.Handler().ServeHTTP(rec, r)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/openmetrics-text") {
		t.Fatalf("Content-Type = %q", ct)
	}
}
