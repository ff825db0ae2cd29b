package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is long enough to correlate log lines, far too short to
// recover or brute force a token from.
const fingerprintLen = 12

// SHA256Hex computes the SHA-256 hash of the input data and returns it as a hex string
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint returns a short stable identifier for a token or secret, safe for logs.
// Empty input yields an empty fingerprint.
func Fingerprint(s string) string {
	if s == "" {
		return ""
	}
	return SHA256Hex([]byte(s))[:fingerprintLen]
}
