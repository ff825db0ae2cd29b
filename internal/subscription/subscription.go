// Package subscription manages newsletter subscriptions: the public subscribe
// form and the token links that confirm or cancel a subscription.
package subscription

import (
	"context"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/rowstore"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// Subscription table layout.
const (
	Table               = "subscriptions"
	ColEmail            = "email"
	ColStatus           = "status"
	ColConfirmToken     = "confirm_token"
	ColUnsubscribeToken = "unsubscribe_token"
	ColConfirmedAt      = "confirmed_at"
	ColUnsubscribedAt   = "unsubscribed_at"
	ColCreatedAt        = "created_at"
)

// Indexes are the unique columns of the subscriptions table.
var Indexes = []string{ColEmail, ColConfirmToken, ColUnsubscribeToken}

type Status string

const (
	StatusPending      Status = "pending"
	StatusActive       Status = "active"
	StatusUnsubscribed Status = "unsubscribed"
)

// Statuses lists every lifecycle status in display order.
var Statuses = []Status{StatusPending, StatusActive, StatusUnsubscribed}

// Stats holds exact subscription counts per status.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}

// CountByStatus counts subscriptions per status.
func CountByStatus(ctx context.Context, rows rowstore.Store) (Stats, error) {
	st := Stats{ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		res, err := rows.Select(ctx, Table, rowstore.Filter{ColStatus: string(s)}, rowstore.SelectOptions{Limit: 1, Count: true})
		if err != nil {
			return Stats{}, xerrors.Wrapf(err, "count %s subscriptions", s)
		}
		st.ByStatus[s] = res.Count
		st.Total += res.Count
	}
	return st, nil
}
