package adminauth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/cryptoutil"
)

func guarded(check *cryptoutil.SecretCheck, denied *atomic.Int32) http.Handler {
	return Require(check, func() { denied.Add(1) })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestRequire(t *testing.T) {
	const secret = "correct-horse-battery-staple"
	tests := []struct {
		name     string
		secret   string
		supplied string
		want     int
	}{
		{"match", secret, secret, http.StatusNoContent},
		{"missing header", secret, "", http.StatusUnauthorized},
		{"wrong same length", secret, strings.Repeat("x", len(secret)), http.StatusUnauthorized},
		{"prefix", secret, secret[:10], http.StatusUnauthorized},
		{"longer", secret, secret + "!", http.StatusUnauthorized},
		{"unconfigured rejects everything", "", "anything", http.StatusUnauthorized},
		{"unconfigured rejects empty", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var denied atomic.Int32
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/admin/subscriptions/stats", nil)
			if tt.supplied != "" {
				r.Header.Set(Header, tt.supplied)
			}
			guarded(cryptoutil.NewSecretCheck(tt.secret), &denied).ServeHTTP(rec, r)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"unauthorized"}` {
					t.Fatalf("body = %s", got)
				}
				if denied.Load() != 1 {
					t.Fatal("onDenied not called")
				}
			}
		})
	}
}

func TestRequire_QueryParamIgnored(t *testing.T) {
	var denied atomic.Int32
	rec := httptest.NewRecorder()
	guarded(cryptoutil.NewSecretCheck("s3cret-value"), &denied).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x?secret=s3cret-value", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequire_NilCheckFailsClosed(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(Header, "x")
	Require(nil, nil)(http.NotFoundHandler()).ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

type fakeSSM struct {
	in  *ssm.GetParameterInput
	val *string
	err error
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: f.val}}, nil
}

type fakeKMS struct {
	in        *kms.DecryptInput
	plaintext []byte
	err       error
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &kms.DecryptOutput{Plaintext: f.plaintext}, nil
}

func TestLoadSecret_Precedence(t *testing.T) {
	ssmFake := &fakeSSM{val: aws.String("from-ssm")}
	src := Source{Literal: " literal ", SSMParam: "/hub/admin", SSM: ssmFake}
	got, err := LoadSecret(context.Background(), src)
	if err != nil || got != "literal" {
		t.Fatalf("got %q, %v", got, err)
	}
	if ssmFake.in != nil {
		t.Fatal("ssm should not be called when a literal is set")
	}
}

func TestLoadSecret_SSM(t *testing.T) {
	f := &fakeSSM{val: aws.String("from-ssm\n")}
	got, err := LoadSecret(context.Background(), Source{SSMParam: "/hub/admin", SSM: f})
	if err != nil || got != "from-ssm" {
		t.Fatalf("got %q, %v", got, err)
	}
	if aws.ToString(f.in.Name) != "/hub/admin" || !aws.ToBool(f.in.WithDecryption) {
		t.Fatalf("input = %+v", f.in)
	}

	if _, err := LoadSecret(context.Background(), Source{SSMParam: "/p", SSM: &fakeSSM{val: aws.String("  ")}}); err == nil {
		t.Fatal("empty parameter should fail")
	}
	if _, err := LoadSecret(context.Background(), Source{SSMParam: "/p", SSM: &fakeSSM{err: errors.New("denied")}}); err == nil {
		t.Fatal("ssm error should propagate")
	}
	if _, err := LoadSecret(context.Background(), Source{SSMParam: "/p"}); err == nil {
		t.Fatal("missing client should fail")
	}
}

func TestLoadSecret_KMS(t *testing.T) {
	cipher := []byte{0x01, 0x02, 0x03}
	f := &fakeKMS{plaintext: []byte("from-kms")}
	got, err := LoadSecret(context.Background(), Source{KMSCiphertext: base64.StdEncoding.EncodeToString(cipher), KMS: f})
	if err != nil || got != "from-kms" {
		t.Fatalf("got %q, %v", got, err)
	}
	if string(f.in.CiphertextBlob) != string(cipher) {
		t.Fatal("ciphertext not passed through")
	}

	if _, err := LoadSecret(context.Background(), Source{KMSCiphertext: "%%%", KMS: f}); err == nil {
		t.Fatal("bad base64 should fail")
	}
}

func TestLoadSecret_None(t *testing.T) {
	got, err := LoadSecret(context.Background(), Source{})
	if err != nil || got != "" {
		t.Fatalf("got %q, %v", got, err)
	}
	if (Source{}).Kind() != "none" {
		t.Fatal("kind should be none")
	}
}
