package subscription

import (
	"context"
	"slices"
	"time"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/cryptoutil"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/rowstore"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// Token length bounds for link tokens.
const (
	MinTokenLen = 32
	MaxTokenLen = 256
)

// Transition describes a one-way status change triggered by a link token.
type Transition struct {
	Name string
	// TokenColumn holds the token that authorizes this transition.
	TokenColumn string
	Target      Status
	// StampColumn records when the transition happened. Written once.
	StampColumn string
	// From lists the statuses the transition may start from.
	From           []Status
	DoneMessage    string
	AlreadyMessage string
}

var (
	Unsubscribe = Transition{
		Name:           "unsubscribe",
		TokenColumn:    ColUnsubscribeToken,
		Target:         StatusUnsubscribed,
		StampColumn:    ColUnsubscribedAt,
		From:           []Status{StatusPending, StatusActive},
		DoneMessage:    "You have been unsubscribed.",
		AlreadyMessage: "You are already unsubscribed.",
	}
	Confirm = Transition{
		Name:           "confirm",
		TokenColumn:    ColConfirmToken,
		Target:         StatusActive,
		StampColumn:    ColConfirmedAt,
		From:           []Status{StatusPending},
		DoneMessage:    "Your subscription is confirmed.",
		AlreadyMessage: "Your subscription is already confirmed.",
	}
)

// Results reported to OnResult.
const (
	ResultDone     = "done"
	ResultAlready  = "already"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Outcome is what a successful Consume reports back to the link holder.
type Outcome struct {
	Email   string
	Already bool
	Message string
}

// Consumer applies one Transition for holders of its token.
type Consumer struct {
	rows rowstore.Store
	tr   Transition
	now  func() time.Time

	// OnResult is called once per Consume with the transition name and result.
	OnResult func(transition, result string)
}

func NewConsumer(rows rowstore.Store, tr Transition) *Consumer {
	return &Consumer{rows: rows, tr: tr, now: time.Now}
}

func (c *Consumer) Transition() Transition { return c.tr }

func (c *Consumer) report(result string) {
	if c.OnResult != nil {
		c.OnResult(c.tr.Name, result)
	}
}

// ValidToken checks only the length; link tokens are otherwise opaque.
func ValidToken(tok string) bool {
	return len(tok) >= MinTokenLen && len(tok) <= MaxTokenLen
}

// Consume applies the transition for token. Repeating it after success is a
// no-op reported as Already, and the stamp column keeps its first value.
//
// The write is conditional on the status read just before it, so a concurrent
// change between read and write is detected and resolved by reading again.
func (c *Consumer) Consume(ctx context.Context, token string) (Outcome, error) {
	if !ValidToken(token) {
		c.report(ResultInvalid)
		return Outcome{}, xerrors.NewKind(xerrors.KindValidation, "invalid link token")
	}
	logger := log.FromContext(ctx).With("transition", c.tr.Name, "token_fp", cryptoutil.Fingerprint(token))

	row, err := c.lookup(ctx, token)
	if err != nil {
		c.report(ResultError)
		logger.Error(ctx, err, "subscription lookup failed")
		return Outcome{}, err
	}
	if row == nil {
		c.report(ResultNotFound)
		return Outcome{}, xerrors.NewKind(xerrors.KindNotFound, "no subscription for token")
	}

	current := Status(row[ColStatus])
	if current == c.tr.Target {
		c.report(ResultAlready)
		return c.already(row), nil
	}
	if !slices.Contains(c.tr.From, current) {
		c.report(ResultNotFound)
		return Outcome{}, xerrors.NewKind(xerrors.KindNotFound, "subscription not eligible for "+c.tr.Name)
	}

	n, err := c.rows.Update(ctx, Table,
		rowstore.Filter{c.tr.TokenColumn: token, ColStatus: string(current)},
		rowstore.Row{ColStatus: string(c.tr.Target), c.tr.StampColumn: c.now().UTC().Format(time.RFC3339)},
	)
	if err != nil {
		c.report(ResultError)
		err = xerrors.Wrapf(err, "%s subscription", c.tr.Name)
		logger.Error(ctx, err, "subscription update failed", "from", string(current))
		return Outcome{}, err
	}
	if n == 0 {
		// another request changed the row between read and write
		return c.resolveRace(ctx, logger, token, current)
	}

	c.report(ResultDone)
	logger.Info(ctx, "subscription status changed", "from", string(current), "to", string(c.tr.Target))
	return Outcome{Email: row[ColEmail], Message: c.tr.DoneMessage}, nil
}

func (c *Consumer) resolveRace(ctx context.Context, logger log.Logger, token string, read Status) (Outcome, error) {
	row, err := c.lookup(ctx, token)
	if err != nil {
		c.report(ResultError)
		logger.Error(ctx, err, "subscription re-read failed")
		return Outcome{}, err
	}
	if row != nil && Status(row[ColStatus]) == c.tr.Target {
		c.report(ResultAlready)
		return c.already(row), nil
	}
	c.report(ResultError)
	got := ""
	if row != nil {
		got = row[ColStatus]
	}
	err = xerrors.Newf("%s lost a concurrent update: read %s, now %q", c.tr.Name, read, got)
	logger.Error(ctx, err, "subscription changed concurrently")
	return Outcome{}, err
}

func (c *Consumer) lookup(ctx context.Context, token string) (rowstore.Row, error) {
	res, err := c.rows.Select(ctx, Table, rowstore.Filter{c.tr.TokenColumn: token}, rowstore.SelectOptions{Limit: 1})
	if err != nil {
		return nil, xerrors.Wrap(err, "lookup subscription")
	}
	return res.First(), nil
}

func (c *Consumer) already(row rowstore.Row) Outcome {
	return Outcome{Email: row[ColEmail], Already: true, Message: c.tr.AlreadyMessage}
}
