package httpmw

import (
	"fmt"
	"net/http"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// Recover turns a handler panic into a 500 with a generic body. The panic value
// and stack go to the log only. onPanic may be nil.
func Recover(logger log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// let net/http abort the connection as it normally would
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rec)
				}
				if onPanic != nil {
					onPanic()
				}

				var err error
				if e, ok := rec.(error); ok {
					err = xerrors.Wrap(e, "panic")
				} else {
					err = xerrors.Newf("panic: %v", rec)
				}
				err = xerrors.WithStack(err)

				logger.With(
					"http.request.method", r.Method,
					"http.route", routePattern(r),
					"request_id", RequestIDFromContext(r.Context()),
				).Error(r.Context(), err, "httpserver panic recovered", "panic_type", fmt.Sprintf("%T", rec))

				WriteJSONError(w, http.StatusInternalServerError, "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
