package identifier

import (
	"net/url"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// Quote percent-encodes s for use in an IRI path. Letters, digits, "_.-~"
// and "/" are kept, everything else is escaped byte by byte, which matches
// the IRIs found in published index dumps.
func Quote(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// Unquote reverses Quote. Invalid escapes are kept literally.
func Unquote(s string) string {
	u, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return u
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '-', '~', '/':
		return true
	}
	return false
}
