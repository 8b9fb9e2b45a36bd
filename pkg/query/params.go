package query

import (
	"net/url"
	"strings"
)

// Pair is a single raw query parameter. HasValue is false for "key" without '='.
type Pair struct {
	Key      string
	Value    string
	HasValue bool
}

// Parse splits a raw query on '&' and then on the first '='. Keys and values
// are returned exactly as they appear on the wire; empty segments are skipped.
func Parse(rawQuery string) []Pair {
	if rawQuery == "" {
		return nil
	}
	segments := strings.Split(rawQuery, "&")
	pairs := make([]Pair, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		key, value, found := strings.Cut(segment, "=")
		pairs = append(pairs, Pair{Key: key, Value: value, HasValue: found})
	}
	return pairs
}

// Encode joins pairs back into a raw query string without touching their bytes.
func Encode(pairs []Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.Key)
		if p.HasValue {
			b.WriteByte('=')
			b.WriteString(p.Value)
		}
	}
	return b.String()
}

// decode unescapes a raw key or value the way a form decoder would. Undecodable
// input is compared in its raw form.
func decode(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

// First returns the first parameter whose decoded key equals name ignoring
// case. The returned pair keeps the raw key and raw value; ok is false when no
// key matches.
func First(rawQuery, name string) (Pair, bool) {
	for _, p := range Parse(rawQuery) {
		if strings.EqualFold(decode(p.Key), name) {
			return p, true
		}
	}
	return Pair{}, false
}

// DecodedValue returns the form-decoded value of p.
func (p Pair) DecodedValue() string {
	if !p.HasValue {
		return ""
	}
	return decode(p.Value)
}

// All returns every parameter whose decoded key is exactly name, in order. A
// bare "name" without '=' is included with HasValue false.
func All(rawQuery, name string) []Pair {
	var pairs []Pair
	for _, p := range Parse(rawQuery) {
		if decode(p.Key) == name {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// ReplaceOrAppend replaces the value of every parameter whose raw key equals rawKey with
// value (which must already be encoded), or appends rawKey=value when no such
// parameter exists. The first occurrence keeps its position and later
// duplicates are removed; all other segments are copied byte for byte.
func ReplaceOrAppend(rawQuery, rawKey, value string) string {
	pairs := Parse(rawQuery)
	out := make([]Pair, 0, len(pairs)+1)
	replaced := false
	for _, p := range pairs {
		if p.Key != rawKey {
			out = append(out, p)
			continue
		}
		if replaced {
			continue
		}
		out = append(out, Pair{Key: rawKey, Value: value, HasValue: true})
		replaced = true
	}
	if !replaced {
		out = append(out, Pair{Key: rawKey, Value: value, HasValue: true})
	}
	return Encode(out)
}
