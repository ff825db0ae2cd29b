package httpmw

import (
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentInfo describes a response body. Empty fields are not written and a
// negative Length leaves Content-Length to net/http.
type ContentInfo struct {
	Type         string
	Disposition  string
	CacheControl string
	Length       int64
}

// JSONContent is the description every JSON response carries.
var JSONContent = ContentInfo{Type: "application/json; charset=utf-8", Length: -1}

// ContentHeaders sets the body headers from ci plus nosniff, and records the
// content type on the current span. Call it before WriteHeader.
func ContentHeaders(w http.ResponseWriter, r *http.Request, ci ContentInfo) {
	h := w.Header()
	if ci.Type != "" {
		h.Set("Content-Type", ci.Type)
	}
	if ci.Disposition != "" {
		h.Set("Content-Disposition", ci.Disposition)
	}
	if ci.CacheControl != "" {
		h.Set("Cache-Control", ci.CacheControl)
	}
	if ci.Length >= 0 {
		h.Set("Content-Length", strconv.FormatInt(ci.Length, 10))
	}
	// set again here for handlers mounted outside SecurityHeaders
	h.Set("X-Content-Type-Options", "nosniff")

	if r == nil {
		return
	}
	if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
		span.SetAttributes(attribute.String("http.response.header.content-type", ci.Type))
		if ci.Length >= 0 {
			span.SetAttributes(attribute.Int64("http.response.body.size", ci.Length))
		}
	}
}
