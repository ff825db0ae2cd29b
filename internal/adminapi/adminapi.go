// Package adminapi implements the admin endpoints for managing downloadable
// resources and reading subscription statistics. Routes are mounted behind
// adminauth.Require and the admin rate limiter.
package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/blob"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/download"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/rowstore"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/subscription"
)

const maxDisplayNameLen = 200

type API struct {
	rows rowstore.Store
	now  func() time.Time
}

func New(rows rowstore.Store) *API {
	return &API{rows: rows, now: time.Now}
}

// Routes registers the admin endpoints on r, relative to /api/admin.
func (a *API) Routes(r chi.Router) {
	r.Post("/resources", a.createResource)
	r.Get("/resources/{token}", a.getResource)
	r.Patch("/resources/{token}", a.updateResource)
	r.Delete("/resources/{token}", a.deleteResource)
	r.Get("/subscriptions/stats", a.subscriptionStats)
}

type resourceView struct {
	ID            string `json:"id"`
	Token         string `json:"token"`
	DisplayName   string `json:"display_name"`
	StoragePath   string `json:"storage_path,omitempty"`
	Available     bool   `json:"available"`
	DownloadCount int64  `json:"download_count"`
	CreatedAt     string `json:"created_at,omitempty"`
}

func viewOf(row rowstore.Row) resourceView {
	count, _ := strconv.ParseInt(row[download.ColDownloadCount], 10, 64)
	return resourceView{
		ID:            row[rowstore.IDColumn],
		Token:         row[download.ColToken],
		DisplayName:   row[download.ColDisplayName],
		StoragePath:   row[download.ColStoragePath],
		Available:     row[download.ColStoragePath] != "",
		DownloadCount: count,
		CreatedAt:     row[download.ColCreatedAt],
	}
}

type resourceRequest struct {
	DisplayName *string `json:"display_name"`
	StoragePath *string `json:"storage_path"`
}

// patch validates req into row columns. create requires a display name.
func (req resourceRequest) patch(create bool) (rowstore.Row, string) {
	row := rowstore.Row{}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" || len(name) > maxDisplayNameLen {
			return nil, "invalid display_name"
		}
		row[download.ColDisplayName] = name
	} else if create {
		return nil, "display_name is required"
	}
	switch {
	case req.StoragePath == nil:
	case *req.StoragePath == "":
		// an explicit empty path withdraws the object; downloads then 404
		if !create {
			row[download.ColStoragePath] = ""
		}
	default:
		p, err := blob.CleanPath(*req.StoragePath)
		if err != nil {
			return nil, "invalid storage_path"
		}
		row[download.ColStoragePath] = p
	}
	if !create && len(row) == 0 {
		return nil, "nothing to update"
	}
	return row, ""
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpmw.DecodeJSON(r, dst); err != nil {
		if httpmw.IsTooLarge(err) {
			httpmw.WriteJSONError(w, http.StatusRequestEntityTooLarge, "request too large")
		} else {
			httpmw.WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	return true
}

func (a *API) storeFailed(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	log.FromContext(ctx).Error(ctx, err, msg)
	httpmw.WriteJSONError(w, http.StatusInternalServerError, "internal error")
}

// tokenParam returns the {token} path value if it has download token shape.
func tokenParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok := chi.URLParam(r, "token")
	if !download.ValidToken(tok) {
		httpmw.WriteJSONError(w, http.StatusBadRequest, "invalid token")
		return "", false
	}
	return tok, true
}

func (a *API) createResource(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if !decode(w, r, &req) {
		return
	}
	row, problem := req.patch(true)
	if problem != "" {
		httpmw.WriteJSONError(w, http.StatusBadRequest, problem)
		return
	}
	row[download.ColToken] = uuid.NewString()
	row[download.ColDownloadCount] = "0"
	row[download.ColCreatedAt] = a.now().UTC().Format(time.RFC3339)

	created, err := a.rows.Insert(r.Context(), download.Table, row)
	if err != nil {
		// a uuid collision is not worth a retry path
		a.storeFailed(w, r, err, "create resource failed")
		return
	}
	ctx := r.Context()
	log.FromContext(ctx).Info(ctx, "resource created", "resource_id", created[rowstore.IDColumn])
	httpmw.WriteJSON(w, http.StatusCreated, viewOf(created))
}

func (a *API) lookup(w http.ResponseWriter, r *http.Request, tok string) (rowstore.Row, bool) {
	res, err := a.rows.Select(r.Context(), download.Table, rowstore.Filter{download.ColToken: tok}, rowstore.SelectOptions{Limit: 1})
	if err != nil {
		a.storeFailed(w, r, err, "lookup resource failed")
		return nil, false
	}
	if res.First() == nil {
		httpmw.WriteJSONError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return res.First(), true
}

func (a *API) getResource(w http.ResponseWriter, r *http.Request) {
	tok, ok := tokenParam(w, r)
	if !ok {
		return
	}
	row, ok := a.lookup(w, r, tok)
	if !ok {
		return
	}
	httpmw.WriteJSON(w, http.StatusOK, viewOf(row))
}

func (a *API) updateResource(w http.ResponseWriter, r *http.Request) {
	tok, ok := tokenParam(w, r)
	if !ok {
		return
	}
	var req resourceRequest
	if !decode(w, r, &req) {
		return
	}
	patch, problem := req.patch(false)
	if problem != "" {
		httpmw.WriteJSONError(w, http.StatusBadRequest, problem)
		return
	}

	n, err := a.rows.Update(r.Context(), download.Table, rowstore.Filter{download.ColToken: tok}, patch)
	if err != nil {
		if errors.Is(err, rowstore.ErrIndexedColumn) {
			httpmw.WriteJSONError(w, http.StatusBadRequest, "column cannot be changed")
			return
		}
		a.storeFailed(w, r, err, "update resource failed")
		return
	}
	if n == 0 {
		httpmw.WriteJSONError(w, http.StatusNotFound, "not found")
		return
	}
	row, ok := a.lookup(w, r, tok)
	if !ok {
		return
	}
	httpmw.WriteJSON(w, http.StatusOK, viewOf(row))
}

func (a *API) deleteResource(w http.ResponseWriter, r *http.Request) {
	tok, ok := tokenParam(w, r)
	if !ok {
		return
	}
	n, err := a.rows.Delete(r.Context(), download.Table, rowstore.Filter{download.ColToken: tok})
	if err != nil {
		a.storeFailed(w, r, err, "delete resource failed")
		return
	}
	if n == 0 {
		httpmw.WriteJSONError(w, http.StatusNotFound, "not found")
		return
	}
	ctx := r.Context()
	log.FromContext(ctx).Info(ctx, "resource deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) subscriptionStats(w http.ResponseWriter, r *http.Request) {
	st, err := subscription.CountByStatus(r.Context(), a.rows)
	if err != nil {
		a.storeFailed(w, r, err, "subscription stats failed")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpmw.WriteJSON(w, http.StatusOK, st)
}
