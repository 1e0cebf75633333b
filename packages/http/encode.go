package http

import (
	"sort"
	"strings"
)

const upperHex = "0123456789ABCDEF"

// PercentEncode escapes every byte outside the unreserved set
// (ALPHA / DIGIT / "-" / "_" / "." / "~") as %XX with uppercase hex.
func PercentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}

// EncodeParams joins params as key=value pairs separated by '&', keys in
// sorted order.
func EncodeParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(PercentEncode(k))
		b.WriteByte('=')
		b.WriteString(PercentEncode(params[k]))
	}
	return b.String()
}

// ComposeURL appends the encoded params to base. A base that already has a
// query string is extended with '&'. A fragment stays at the end.
func ComposeURL(base string, params map[string]string) string {
	if len(params) == 0 {
		return base
	}
	fragment := ""
	if idx := strings.IndexByte(base, '#'); idx >= 0 {
		base, fragment = base[:idx], base[idx:]
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
		if strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&") {
			sep = ""
		}
	}
	return base + sep + EncodeParams(params) + fragment
}
