// Package keys builds the Redis keys under which blobs are stored.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "tzw"

// BlobKey returns tzw:<namespace>:<name>. Names that sanitizing alters get
// an xxhash suffix of the raw name so distinct names never collide.
func BlobKey(namespace, name string) string {
	ns := sanitize(strings.TrimSpace(namespace))
	safe := sanitize(name)
	if safe == name {
		return prefix + ":" + ns + ":" + safe
	}
	return fmt.Sprintf("%s:%s:%s:h=%016x", prefix, ns, safe, xxhash.Sum64String(name))
}

// NamespacePattern matches every key of namespace, for SCAN/cleanup.
func NamespacePattern(namespace string) string {
	return prefix + ":" + sanitize(strings.TrimSpace(namespace)) + ":*"
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
