// Package app assembles the public API: it binds the download, subscription
// and admin handlers to their routes behind the matching rate limiter.
package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/adminapi"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/adminauth"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/blob"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/cryptoutil"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/download"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/metrics"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/ratelimit"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/rowstore"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/subscription"
)

// formMaxBody caps the subscribe form; an address never needs more.
const formMaxBody = 4 << 10

// Indexes are the unique columns of every table the API uses.
var Indexes = rowstore.Indexes{
	download.Table:     {download.ColToken},
	subscription.Table: subscription.Indexes,
}

type Deps struct {
	Rows        rowstore.Store
	Blobs       blob.Store
	AdminSecret *cryptoutil.SecretCheck
	Limiters    Limiters

	// Notifier sends confirmation links; nil logs them instead.
	Notifier subscription.Notifier
	// Metrics is optional.
	Metrics *metrics.ServerMetrics
}

// Routes returns the API route registrar for httpserver.Options.APIRoutes.
func Routes(d Deps) func(chi.Router) {
	downloads := download.NewService(d.Rows, d.Blobs)
	unsubscribe := subscription.NewConsumer(d.Rows, subscription.Unsubscribe)
	confirm := subscription.NewConsumer(d.Rows, subscription.Confirm)
	subscriber := subscription.NewSubscriber(d.Rows, d.Notifier)
	admin := adminapi.New(d.Rows)

	var onAdminDenied func()
	if m := d.Metrics; m != nil {
		downloads.OnOutcome = func(outcome string) {
			m.IncDownloadOutcome(outcome)
			if outcome == download.OutcomeStoreError {
				m.IncStoreError("rows")
			}
			if outcome == download.OutcomeFetchError {
				m.IncStoreError("blobs")
			}
		}
		onToken := func(transition, result string) {
			m.IncTokenTransition(transition, result)
			if result == subscription.ResultError {
				m.IncStoreError("rows")
			}
		}
		unsubscribe.OnResult = onToken
		confirm.OnResult = onToken
		subscriber.OnResult = func(result string) {
			m.IncSubscribe(result)
			if result == subscription.SubscribeFailed {
				m.IncStoreError("rows")
			}
		}
		onAdminDenied = m.IncAdminAuthFailure
	}

	return func(r chi.Router) {
		r.With(limit(d.Limiters.Download), httpmw.Scope("download")).
			Method(http.MethodGet, "/api/download", download.Handler(downloads))

		r.Group(func(r chi.Router) {
			r.Use(limit(d.Limiters.Token))
			r.With(httpmw.Scope("unsubscribe")).Method(http.MethodGet, "/api/unsubscribe", subscription.ConsumerHandler(unsubscribe))
			r.With(httpmw.Scope("confirm")).Method(http.MethodGet, "/api/confirm", subscription.ConsumerHandler(confirm))
		})

		r.With(limit(d.Limiters.Form), httpmw.MaxBody(formMaxBody), httpmw.Scope("subscribe")).
			Method(http.MethodPost, "/api/subscribe", subscription.SubscribeHandler(subscriber))

		r.Route("/api/admin", func(r chi.Router) {
			// limiter first: failed secrets count against the budget
			r.Use(limit(d.Limiters.Admin))
			r.Use(adminauth.Require(d.AdminSecret, onAdminDenied))
			r.Use(httpmw.Scope("admin"))
			admin.Routes(r)
		})
	}
}

func limit(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return l.Middleware
}
