package download

import (
	"path"
	"strings"
	"unicode/utf8"
)

const fallbackFilename = "download"

// ContentDisposition renders an attachment header carrying an ASCII filename
// for old clients and an RFC 5987 UTF-8 filename* for everyone else.
func ContentDisposition(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallbackFilename
	}
	return `attachment; filename="` + asciiFilename(name) + `"; filename*=UTF-8''` + encodeRFC5987(name)
}

// asciiFilename replaces everything outside printable ASCII, plus the quote and
// backslash that would break the quoted-string, with an underscore.
func asciiFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// encodeRFC5987 percent-encodes every UTF-8 byte that is not an attr-char.
func encodeRFC5987(s string) string {
	const hex = "0123456789ABCDEF"
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "_")
	}
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}

// filenameFor picks the client-facing name: the display name, else the last
// element of the storage path.
func filenameFor(displayName, storagePath string) string {
	if n := strings.TrimSpace(displayName); n != "" {
		if path.Ext(n) == "" {
			if ext := path.Ext(storagePath); ext != "" {
				n += ext
			}
		}
		return n
	}
	if base := path.Base(storagePath); base != "." && base != "/" {
		return base
	}
	return fallbackFilename
}
