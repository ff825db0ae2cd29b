package subscription

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/cryptoutil"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/rowstore"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

const (
	maxEmailLen = 254
	// tokenBytes of randomness per link token, hex encoded to twice the length
	tokenBytes = 32

	// AcceptedMessage is returned for every well-formed request, new or known
	// address alike, so the form cannot be used to test for subscribers.
	AcceptedMessage = "Please check your inbox to confirm your subscription."
)

// Subscribe results reported to OnResult.
const (
	SubscribeCreated = "created"
	SubscribeResent  = "resent"
	SubscribeKnown   = "known"
	SubscribeInvalid = "invalid"
	SubscribeFailed  = "failed"
)

// Notifier delivers the confirmation message for a pending subscription.
type Notifier interface {
	SendConfirmation(ctx context.Context, email, confirmToken, unsubscribeToken string) error
}

// LogNotifier records that a confirmation would be sent. Tokens and the raw
// address stay out of the log.
type LogNotifier struct{}

func (LogNotifier) SendConfirmation(ctx context.Context, email, _, _ string) error {
	log.FromContext(ctx).Info(ctx, "subscription confirmation queued", "email_fp", cryptoutil.Fingerprint(email))
	return nil
}

// Subscriber creates pending subscriptions.
type Subscriber struct {
	rows     rowstore.Store
	notifier Notifier
	now      func() time.Time

	// OnResult, if set, is called once per Subscribe call.
	OnResult func(result string)
}

func (s *Subscriber) report(result string) {
	if s.OnResult != nil {
		s.OnResult(result)
	}
}

func NewSubscriber(rows rowstore.Store, n Notifier) *Subscriber {
	if n == nil {
		n = LogNotifier{}
	}
	return &Subscriber{rows: rows, notifier: n, now: time.Now}
}

// NormalizeEmail validates a bare address and lowercases it.
func NormalizeEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxEmailLen {
		return "", xerrors.NewKind(xerrors.KindValidation, "invalid email")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return "", xerrors.NewKind(xerrors.KindValidation, "invalid email")
	}
	at := strings.LastIndexByte(s, '@')
	if at < 1 || !strings.Contains(s[at+1:], ".") {
		return "", xerrors.NewKind(xerrors.KindValidation, "invalid email")
	}
	return strings.ToLower(s), nil
}

// Subscribe records email as pending and asks the notifier to send the
// confirmation link. A known pending address gets its existing links again;
// active and unsubscribed addresses are left untouched.
func (s *Subscriber) Subscribe(ctx context.Context, rawEmail string) error {
	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		s.report(SubscribeInvalid)
		return err
	}
	logger := log.FromContext(ctx).With("email_fp", cryptoutil.Fingerprint(email))

	confirmTok, err := cryptoutil.RandomToken(tokenBytes)
	if err != nil {
		s.report(SubscribeFailed)
		return xerrors.Wrap(err, "generate confirm token")
	}
	unsubTok, err := cryptoutil.RandomToken(tokenBytes)
	if err != nil {
		s.report(SubscribeFailed)
		return xerrors.Wrap(err, "generate unsubscribe token")
	}

	_, err = s.rows.Insert(ctx, Table, rowstore.Row{
		ColEmail:            email,
		ColStatus:           string(StatusPending),
		ColConfirmToken:     confirmTok,
		ColUnsubscribeToken: unsubTok,
		ColCreatedAt:        s.now().UTC().Format(time.RFC3339),
	})
	switch {
	case err == nil:
	case errors.Is(err, rowstore.ErrConflict):
		return s.resend(ctx, logger, email)
	default:
		s.report(SubscribeFailed)
		return xerrors.Wrap(err, "insert subscription")
	}

	if err := s.notifier.SendConfirmation(ctx, email, confirmTok, unsubTok); err != nil {
		logger.Error(ctx, err, "confirmation delivery failed")
	}
	logger.Info(ctx, "subscription created")
	s.report(SubscribeCreated)
	return nil
}

func (s *Subscriber) resend(ctx context.Context, logger log.Logger, email string) error {
	res, err := s.rows.Select(ctx, Table, rowstore.Filter{ColEmail: email}, rowstore.SelectOptions{Limit: 1})
	if err != nil {
		s.report(SubscribeFailed)
		return xerrors.Wrap(err, "lookup existing subscription")
	}
	row := res.First()
	if row == nil || Status(row[ColStatus]) != StatusPending {
		logger.Info(ctx, "subscribe for known address ignored")
		s.report(SubscribeKnown)
		return nil
	}
	if err := s.notifier.SendConfirmation(ctx, email, row[ColConfirmToken], row[ColUnsubscribeToken]); err != nil {
		logger.Error(ctx, err, "confirmation delivery failed")
	}
	logger.Info(ctx, "confirmation resent for pending subscription")
	s.report(SubscribeResent)
	return nil
}

type subscribeRequest struct {
	Email string `json:"email"`
}

// SubscribeHandler serves POST /api/subscribe.
func SubscribeHandler(s *Subscriber) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req subscribeRequest
		if err := httpmw.DecodeJSON(r, &req); err != nil {
			if httpmw.IsTooLarge(err) {
				httpmw.WriteJSONError(w, http.StatusRequestEntityTooLarge, "request too large")
				return
			}
			httpmw.WriteJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := s.Subscribe(ctx, req.Email); err != nil {
			if xerrors.IsKind(err, xerrors.KindValidation) {
				httpmw.WriteJSONError(w, http.StatusBadRequest, "invalid email")
				return
			}
			log.FromContext(ctx).Error(ctx, err, "subscribe failed")
			httpmw.WriteJSONError(w, http.StatusInternalServerError, "could not process request")
			return
		}
		httpmw.WriteJSON(w, http.StatusAccepted, outcomeBody{Message: AcceptedMessage})
	})
}
