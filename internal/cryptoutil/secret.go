package cryptoutil

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// SecretCheck compares caller-supplied secrets against a configured value.
// The zero value and a check built from an empty secret reject everything.
type SecretCheck struct {
	secret []byte
}

// NewSecretCheck returns a check for the configured secret.
func NewSecretCheck(configured string) *SecretCheck {
	return &SecretCheck{secret: []byte(configured)}
}

// Configured reports whether a non-empty secret is set.
func (c *SecretCheck) Configured() bool {
	return c != nil && len(c.secret) > 0
}

// Verify reports whether supplied equals the configured secret.
//
// Fails closed when nothing is configured or nothing is supplied. A length
// mismatch returns early, the length is not treated as sensitive. Equal
// lengths are compared with subtle.ConstantTimeCompare so the time taken does
// not depend on the position of the first differing byte.
func (c *SecretCheck) Verify(supplied string) bool {
	if !c.Configured() || supplied == "" {
		return false
	}
	if len(supplied) != len(c.secret) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), c.secret) == 1
}

// RandomToken returns n random bytes hex encoded (2n characters).
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
