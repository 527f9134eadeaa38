package common

import (
	"strings"
)

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// keyEscaper keeps the "_" separator out of key parts.
var keyEscaper = strings.NewReplacer("%", "%25", "_", "%5F")

// CacheKey builds a store key from a prefix and parameter parts.
// Parts are lowercased and inner whitespace collapses to a single "-",
// so "New  York" and "new york" share a key. "_" and "%" inside a part are
// percent-encoded, so distinct part lists never collide. Empty parts are
// kept as placeholders to keep positions stable.
func CacheKey(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		b.WriteByte('_')
		b.WriteString(keyEscaper.Replace(strings.Join(strings.Fields(strings.ToLower(p)), "-")))
	}
	return b.String()
}
