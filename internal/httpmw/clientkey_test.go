package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"no headers", nil, UnknownClientKey},
		{"single xff", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "203.0.113.1"},
		{"xff chain takes first", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1, 10.0.0.2"}, "203.0.113.1"},
		{"xff trimmed", map[string]string{"X-Forwarded-For": "  198.51.100.7  ,10.0.0.1"}, "198.51.100.7"},
		{"real ip fallback", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"real ip trimmed", map[string]string{"X-Real-IP": " 198.51.100.9 "}, "198.51.100.9"},
		{"xff wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.1", "X-Real-IP": "198.51.100.9"}, "203.0.113.1"},
		{"empty first xff entry falls back", map[string]string{"X-Forwarded-For": " , 10.0.0.1", "X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"not validated as ip", map[string]string{"X-Forwarded-For": "not-an-ip"}, "not-an-ip"},
		{"ipv6", map[string]string{"X-Forwarded-For": "2001:db8::1"}, "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			if got := ExtractClientKey(h); got != tt.want {
				t.Fatalf("ExtractClientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractClientKey_IgnoresRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:4321"
	if got := ExtractClientKey(r.Header); got != UnknownClientKey {
		t.Fatalf("got %q, want %q", got, UnknownClientKey)
	}
}

func TestClientKey_StoresInContext(t *testing.T) {
	var got string
	h := ClientKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientKeyFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got != "203.0.113.5" {
		t.Fatalf("context key = %q, want 203.0.113.5", got)
	}
}

func TestClientKeyFromContext_Empty(t *testing.T) {
	if got := ClientKeyFromContext(context.Background()); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
