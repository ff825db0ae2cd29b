package httpmw

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	ContentHeaders(w, nil, JSONContent)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteJSONError writes {"error": msg}. msg must be safe to show to anyone.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// PublicMessages maps an error kind to the message shown to callers. The
// KindUnexpected entry is the fallback for kinds without their own message.
type PublicMessages map[xerrors.Kind]string

// WriteError picks the status from err's kind and the body from msgs. The
// error itself never reaches the response body.
func WriteError(w http.ResponseWriter, err error, msgs PublicMessages) {
	kind := xerrors.KindOf(err)
	status := kind.HTTPStatus()
	msg, ok := msgs[kind]
	if !ok {
		msg, ok = msgs[xerrors.KindUnexpected]
	}
	if !ok {
		msg = strings.ToLower(http.StatusText(status))
	}
	WriteJSONError(w, status, msg)
}

// DecodeJSON reads one JSON object from r's body into dst. Unknown fields and
// trailing data are rejected. Oversized bodies are tagged KindValidation like
// every other decode failure; callers check IsTooLarge for 413.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return xerrors.WithKind(xerrors.Wrap(err, "decode request body"), xerrors.KindValidation)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return xerrors.NewKind(xerrors.KindValidation, "decode request body: trailing data")
	}
	return nil
}

// IsTooLarge reports whether err came from a MaxBody limit.
func IsTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
