package cryptoutil

import (
	"strings"
	"testing"
)

func TestSecretCheck_Verify(t *testing.T) {
	const secret = "s3cr3t-admin-value-0123456789"

	tests := []struct {
		name       string
		configured string
		supplied   string
		want       bool
	}{
		{"exact match", secret, secret, true},
		{"no configured secret", "", secret, false},
		{"nothing configured or supplied", "", "", false},
		{"empty supplied", secret, "", false},
		{"shorter supplied", secret, secret[:len(secret)-1], false},
		{"longer supplied", secret, secret + "x", false},
		{"same length different last byte", secret, secret[:len(secret)-1] + "X", false},
		{"same length different first byte", secret, "X" + secret[1:], false},
		{"case differs", secret, strings.ToUpper(secret), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSecretCheck(tt.configured)
			if got := c.Verify(tt.supplied); got != tt.want {
				t.Fatalf("Verify(%q) = %v, want %v", tt.supplied, got, tt.want)
			}
		})
	}
}

func TestSecretCheck_NilAndZeroValue(t *testing.T) {
	var nilCheck *SecretCheck
	if nilCheck.Verify("anything") {
		t.Fatal("nil check must reject")
	}
	if nilCheck.Configured() {
		t.Fatal("nil check must not report configured")
	}

	var zero SecretCheck
	if zero.Verify("anything") {
		t.Fatal("zero value check must reject")
	}
}

func TestSecretCheck_Configured(t *testing.T) {
	if NewSecretCheck("").Configured() {
		t.Fatal("empty secret should not be configured")
	}
	if !NewSecretCheck("x").Configured() {
		t.Fatal("non-empty secret should be configured")
	}
}

func TestRandomToken_LengthAndUniqueness(t *testing.T) {
	a, err := RandomToken(32)
	if err != nil {
		t.Fatalf("RandomToken: %v", err)
	}
	b, err := RandomToken(32)
	if err != nil {
		t.Fatalf("RandomToken: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	if a == b {
		t.Fatal("two random tokens should differ")
	}
	if strings.Trim(a, "0123456789abcdef") != "" {
		t.Fatalf("token %q is not lowercase hex", a)
	}
}

func TestSHA256Hex_KnownVector(t *testing.T) {
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256Hex([]byte{}); got != want {
		t.Fatalf("SHA256Hex(empty) = %q, want %q", got, want)
	}
}

func TestFingerprint(t *testing.T) {
	tok := "3f0c1a52-9d4e-4b8a-b1f2-6e7d8c9a0b1c"
	fp := Fingerprint(tok)
	if len(fp) != fingerprintLen {
		t.Fatalf("len = %d, want %d", len(fp), fingerprintLen)
	}
	if strings.Contains(tok, fp) {
		t.Fatal("fingerprint must not leak token text")
	}
	if fp != Fingerprint(tok) {
		t.Fatal("fingerprint should be deterministic")
	}
	if Fingerprint("") != "" {
		t.Fatal("empty input should have empty fingerprint")
	}
}
