package query

import "strings"

const upperHex = "0123456789ABCDEF"

// paramAllowed is the RFC 3986 (Appendix A) query grammar with '=' and '&'
// removed, so both are always percent-encoded inside a key or a value.
// pct-encoded triplets are handled separately in encodeComponent.
var paramAllowed = func() [256]bool {
	var allowed [256]bool
	for c := 'a'; c <= 'z'; c++ {
		allowed[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		allowed[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		allowed[c] = true
	}
	// unreserved
	for _, c := range "-._~" {
		allowed[c] = true
	}
	// sub-delims minus '&' and '='
	for _, c := range "!$'()*+,;" {
		allowed[c] = true
	}
	// pchar extras and query extras
	for _, c := range ":@/?" {
		allowed[c] = true
	}
	return allowed
}()

func isHex(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'f') || ('A' <= b && b <= 'F')
}

// Normalize re-encodes every key and value of a raw query string so that only
// characters allowed by the query-parameter grammar remain unencoded. Existing
// %XX triplets are copied verbatim, which makes the function idempotent.
// Empty segments ("a=1&&b=2") are dropped; parameters without '=' stay without it.
func Normalize(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := Parse(rawQuery)
	for i := range pairs {
		pairs[i].Key = encodeComponent(pairs[i].Key)
		if pairs[i].HasValue {
			pairs[i].Value = encodeComponent(pairs[i].Value)
		}
	}
	return Encode(pairs)
}

// encodeComponent works on the UTF-8 bytes of s, so a multi-byte character is
// encoded byte by byte. A '%' that does not start a valid triplet is encoded as %25.
func encodeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case paramAllowed[c]:
			b.WriteByte(c)
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteString(s[i : i+3])
			i += 2
		default:
			writeEscaped(&b, c)
		}
	}
	return b.String()
}

func writeEscaped(b *strings.Builder, c byte) {
	b.WriteByte('%')
	b.WriteByte(upperHex[c>>4])
	b.WriteByte(upperHex[c&0x0F])
}

// EscapeUnreserved percent-encodes everything except RFC 3986 unreserved
// characters. Spaces become %20, never '+'.
func EscapeUnreserved(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		writeEscaped(&b, c)
	}
	return b.String()
}
