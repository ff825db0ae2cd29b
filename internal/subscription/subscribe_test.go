package subscription

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/rowstore"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

type sentConfirmation struct {
	email, confirm, unsub string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentConfirmation
	err  error
}

func (n *recordingNotifier) SendConfirmation(_ context.Context, email, confirm, unsub string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentConfirmation{email, confirm, unsub})
	return n.err
}

func postSubscribe(s *Subscriber, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(body))
	SubscribeHandler(s).ServeHTTP(rec, r)
	return rec
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"user@example.eu", "user@example.eu", true},
		{"  User@Example.EU ", "user@example.eu", true},
		{"first.last+news@sub.example.de", "first.last+news@sub.example.de", true},
		{"", "", false},
		{"no-at-sign", "", false},
		{"user@localhost", "", false},
		{"Name <user@example.eu>", "", false},
		{"user@example.eu, other@example.eu", "", false},
		{strings.Repeat("a", 250) + "@x.eu", "", false},
	}
	for _, tt := range tests {
		got, err := NormalizeEmail(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, %v; want %q ok=%v", tt.in, got, err, tt.want, tt.ok)
		}
		if err != nil && !xerrors.IsKind(err, xerrors.KindValidation) {
			t.Errorf("NormalizeEmail(%q) error kind = %v", tt.in, xerrors.KindOf(err))
		}
	}
}

func TestSubscribe_CreatesPendingWithTokens(t *testing.T) {
	store := rowstore.NewMemory(rowstore.Indexes{Table: Indexes})
	n := &recordingNotifier{}
	rec := postSubscribe(NewSubscriber(store, n), `{"email":"New@Example.eu"}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	row := getRow(t, store, ColEmail, "new@example.eu")
	if row[ColStatus] != string(StatusPending) {
		t.Fatalf("status = %s", row[ColStatus])
	}
	for _, col := range []string{ColConfirmToken, ColUnsubscribeToken} {
		tok := row[col]
		if _, err := hex.DecodeString(tok); err != nil || len(tok) != 64 {
			t.Fatalf("%s = %q, want 64 hex chars", col, tok)
		}
		if !ValidToken(tok) {
			t.Fatalf("%s does not pass link token validation", col)
		}
	}
	if row[ColConfirmToken] == row[ColUnsubscribeToken] {
		t.Fatal("tokens must differ")
	}
	if len(n.sent) != 1 || n.sent[0].confirm != row[ColConfirmToken] || n.sent[0].unsub != row[ColUnsubscribeToken] {
		t.Fatalf("notifier calls = %+v", n.sent)
	}
}

func TestSubscribe_KnownAddressesLookTheSame(t *testing.T) {
	store := newTestStore(t)
	n := &recordingNotifier{}
	s := NewSubscriber(store, n)

	fresh := postSubscribe(s, `{"email":"fresh@example.eu"}`)
	active := postSubscribe(s, `{"email":"active@example.eu"}`)
	pending := postSubscribe(s, `{"email":"pending@example.eu"}`)

	for _, rec := range []*httptest.ResponseRecorder{active, pending} {
		if rec.Code != fresh.Code || rec.Body.String() != fresh.Body.String() {
			t.Fatalf("known address response differs: %d %s vs %d %s", rec.Code, rec.Body.String(), fresh.Code, fresh.Body.String())
		}
	}

	// fresh plus a resend for pending, nothing for active
	if len(n.sent) != 2 || n.sent[1].email != "pending@example.eu" || n.sent[1].confirm != confirmTok {
		t.Fatalf("notifier calls = %+v", n.sent)
	}
	if getRow(t, store, ColEmail, "active@example.eu")[ColStatus] != string(StatusActive) {
		t.Fatal("active subscription modified")
	}
}

func TestSubscribe_NotifierFailureStillAccepted(t *testing.T) {
	store := rowstore.NewMemory(rowstore.Indexes{Table: Indexes})
	rec := postSubscribe(NewSubscriber(store, &recordingNotifier{err: errors.New("smtp down")}), `{"email":"a@example.eu"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSubscribeHandler_BadRequests(t *testing.T) {
	s := NewSubscriber(rowstore.NewMemory(rowstore.Indexes{Table: Indexes}), nil)
	tests := []struct {
		body string
		msg  string
	}{
		{`{"email":"not-an-email"}`, "invalid email"},
		{`{"email":""}`, "invalid email"},
		{`{"email":"a@example.eu","status":"active"}`, "invalid request body"},
		{`not json`, "invalid request body"},
	}
	for _, tt := range tests {
		rec := postSubscribe(s, tt.body)
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), tt.msg) {
			t.Errorf("body %s: status %d %s", tt.body, rec.Code, rec.Body.String())
		}
	}
}

type failingInsertStore struct{ rowstore.Store }

func (failingInsertStore) Insert(context.Context, string, rowstore.Row) (rowstore.Row, error) {
	return nil, xerrors.WithKind(errors.New("redis down"), xerrors.KindStore)
}

func TestSubscribeHandler_StoreFailure(t *testing.T) {
	s := NewSubscriber(failingInsertStore{rowstore.NewMemory(nil)}, nil)
	rec := postSubscribe(s, `{"email":"a@example.eu"}`)
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "redis") {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestCountByStatus(t *testing.T) {
	store := newTestStore(t)
	st, err := CountByStatus(context.Background(), store)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 {
		t.Fatalf("total = %d", st.Total)
	}
	for _, s := range Statuses {
		if st.ByStatus[s] != 1 {
			t.Errorf("%s = %d, want 1", s, st.ByStatus[s])
		}
	}
}

func TestSubscribe_ReportsResults(t *testing.T) {
	store := newTestStore(t)
	s := NewSubscriber(store, &recordingNotifier{})
	var got []string
	s.OnResult = func(result string) { got = append(got, result) }

	for _, body := range []string{
		`{"email":"fresh@example.eu"}`,
		`{"email":"pending@example.eu"}`,
		`{"email":"active@example.eu"}`,
		`{"email":"not-an-address"}`,
	} {
		postSubscribe(s, body)
	}

	want := []string{SubscribeCreated, SubscribeResent, SubscribeKnown, SubscribeInvalid}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("results = %v, want %v", got, want)
	}
}
