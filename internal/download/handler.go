package download

import (
	"io"
	"net/http"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// CacheControl keeps downloads out of shared caches and lets the browser reuse
// them briefly.
const CacheControl = "private, max-age=300"

var errorMessages = httpmw.PublicMessages{
	xerrors.KindValidation: "invalid token",
	xerrors.KindNotFound:   "not found",
	xerrors.KindUnexpected: "download failed",
}

// Handler serves GET /api/download?token=.
func Handler(svc *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		d, err := svc.Open(ctx, r.URL.Query().Get("token"))
		if err != nil {
			httpmw.WriteError(w, err, errorMessages)
			return
		}
		defer d.Object.Body.Close()

		httpmw.ContentHeaders(w, r, httpmw.ContentInfo{
			Type:         d.Object.ContentType,
			Disposition:  ContentDisposition(d.Filename),
			CacheControl: CacheControl,
			Length:       d.Object.Size,
		})
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, d.Object.Body); err != nil {
			// headers are out, the client sees a truncated body
			log.FromContext(ctx).Warn(ctx, "download stream interrupted", "err", err.Error())
		}
	})
}
