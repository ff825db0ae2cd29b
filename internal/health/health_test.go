package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(h http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/ready", nil))
	return rec
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name     string
		h        http.Handler
		wantCode int
		wantBody string
	}{
		{"healthy", HealthzHandler(Fixed(true, "")), http.StatusOK, "ok"},
		{"healthy nil probe", HealthzHandler(nil), http.StatusOK, "ok"},
		{"unhealthy", HealthzHandler(Fixed(false, "wedged")), http.StatusServiceUnavailable, "wedged"},
		{"ready", ReadyzHandler(Fixed(true, "")), http.StatusOK, "ready"},
		{"ready nil probe", ReadyzHandler(nil), http.StatusOK, "ready"},
		{"not ready", ReadyzHandler(Fixed(false, "draining")), http.StatusServiceUnavailable, "draining"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.h)
			if rec.Code != tt.wantCode || !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("got %d %q, want %d containing %q", rec.Code, rec.Body.String(), tt.wantCode, tt.wantBody)
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Fatal("probe responses must not be cached")
			}
		})
	}
}

func TestReadyzHandler_NamedProbeHidesCause(t *testing.T) {
	store := Named("row store", CheckFunc(func(context.Context) error {
		return errors.New("dial tcp 10.0.3.7:6379: connect: connection refused")
	}))
	rec := serve(ReadyzHandler(store))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "row store unavailable") || strings.Contains(body, "10.0.3.7") {
		t.Fatalf("body = %q", body)
	}
}

func TestHealthzHandler_PassesRequestContext(t *testing.T) {
	type ctxKey struct{}
	var got any
	h := HealthzHandler(CheckFunc(func(ctx context.Context) error {
		got = ctx.Value(ctxKey{})
		return nil
	}))
	r := httptest.NewRequest(http.MethodGet, "/-/healthy", nil)
	h.ServeHTTP(httptest.NewRecorder(), r.WithContext(context.WithValue(r.Context(), ctxKey{}, "v")))
	if got != "v" {
		t.Fatal("request context not passed to probe")
	}
}
