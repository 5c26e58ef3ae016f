// Package sanitize normalizes the deployment prefix that namespaces the
// Projects and Tasks collections (MongoDB) and tables (PostgreSQL).
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxPrefixLength leaves room for the longest collection suffix
	// ("_Projects") inside PostgreSQL's 63-byte identifier limit.
	MaxPrefixLength = 48

	// HashSuffixLength is the length of the hash suffix added to truncated
	// prefixes. Format: _<8-char-hash>
	HashSuffixLength = 9
)

// Prefix returns s reduced to lowercase letters, digits and single
// underscores, without leading or trailing underscores. Prefixes longer
// than MaxPrefixLength are truncated with a hash suffix so distinct inputs
// stay distinct. An empty result means "no prefix".
//
// Examples:
//
//	"Staging"       -> "staging"
//	"team-a.prod"   -> "team_a_prod"
//	"$$$" or ""     -> ""
func Prefix(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	out = strings.Trim(out, "_")

	if len(out) > MaxPrefixLength {
		out = truncateWithHash(out)
	}
	return out
}

// truncateWithHash shortens s to MaxPrefixLength, replacing the tail with
// the first 8 hex digits of its SHA-256.
func truncateWithHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	base := strings.TrimRight(s[:MaxPrefixLength-HashSuffixLength], "_")
	return base + "_" + hex.EncodeToString(hash[:])[:8]
}
