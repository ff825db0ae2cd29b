// Package pathutil validates slash-separated object paths before they reach a
// filesystem root or an object store key.
package pathutil

import "strings"

// MaxObjectPathLen bounds object paths; S3 keys stop at 1024 bytes.
const MaxObjectPathLen = 1024

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// CleanObjectPath trims p and reports whether it is a safe relative object
// path: non-empty, not rooted, no empty or dot segments, no backslash, NUL or
// other control characters.
func CleanObjectPath(p string) (string, bool) {
	p = strings.TrimSpace(p)
	if p == "" || len(p) > MaxObjectPathLen || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return "", false
	}
	if strings.Contains(p, "//") || HasDotSegments(p) {
		return "", false
	}
	for _, r := range p {
		if r == '\\' || r < 0x20 || r == 0x7f {
			return "", false
		}
	}
	return p, true
}
