package httpmw

import (
	"context"
	"net/http"
	"strings"
)

// UnknownClientKey is returned when no forwarded address is present. Every such
// client shares one rate limit budget.
const UnknownClientKey = "unknown"

type clientKeyCtx struct{}

// ExtractClientKey derives the per-client key from proxy headers: the first
// X-Forwarded-For entry, else X-Real-IP, else UnknownClientKey.
//
// Values are not validated as IP addresses. The deployment is assumed to sit
// behind a proxy that overwrites both headers; without one they are spoofable.
func ExtractClientKey(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(h.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return UnknownClientKey
}

// ClientKey resolves the client key once per request and stores it in the context.
func ClientKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithClientKey(r.Context(), ExtractClientKey(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyCtx{}, key)
}

// ClientKeyFromContext returns the key stored by ClientKey, "" if none.
func ClientKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientKeyCtx{}).(string); ok {
		return v
	}
	return ""
}
