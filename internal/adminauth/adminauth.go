// Package adminauth guards the admin API with a shared secret sent in the
// X-Admin-Secret header.
package adminauth

import (
	"errors"
	"net/http"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/cryptoutil"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// Header carries the admin secret. Query parameters are never accepted since
// they end up in logs and browser history.
const Header = "X-Admin-Secret"

var errUnauthorized = xerrors.WithKind(errors.New("admin secret rejected"), xerrors.KindAuth)

// Require rejects requests whose secret does not verify with 401. onDenied may
// be nil.
func Require(check *cryptoutil.SecretCheck, onDenied func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !check.Verify(r.Header.Get(Header)) {
				if onDenied != nil {
					onDenied()
				}
				ctx := r.Context()
				log.FromContext(ctx).Warn(ctx, "admin authentication failed",
					"secret_present", r.Header.Get(Header) != "",
					"configured", check.Configured(),
				)
				httpmw.WriteError(w, errUnauthorized, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
