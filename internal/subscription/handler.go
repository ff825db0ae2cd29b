package subscription

import (
	"net/http"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// LinkNotFoundMessage is shared by unknown tokens and ineligible records.
const LinkNotFoundMessage = "invalid or already-used link"

var linkErrorMessages = httpmw.PublicMessages{
	xerrors.KindValidation: "invalid token",
	xerrors.KindNotFound:   LinkNotFoundMessage,
	xerrors.KindUnexpected: "could not process request",
}

type outcomeBody struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

// ConsumerHandler serves GET /api/{unsubscribe,confirm}?token=.
func ConsumerHandler(c *Consumer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out, err := c.Consume(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			httpmw.WriteError(w, err, linkErrorMessages)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		httpmw.WriteJSON(w, http.StatusOK, outcomeBody{Message: out.Message, Email: out.Email})
	})
}
