package httpmw

import "net/http"

// DefaultMaxBody is the body limit for the JSON endpoints.
const DefaultMaxBody = 64 << 10

// MaxBody limits request body size. Reading past the limit fails and the
// handler answers 413.
func MaxBody(bytes int64) func(http.Handler) http.Handler {
	if bytes <= 0 {
		bytes = DefaultMaxBody
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > bytes {
				WriteJSONError(w, http.StatusRequestEntityTooLarge, "request too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, bytes)
			next.ServeHTTP(w, r)
		})
	}
}
