// Package sanitize cleans identifiers, file names and paths that come from
// configuration, uploads and tool calls.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

const (
	// MaxIdentifierLength is the maximum length of an index identifier.
	MaxIdentifierLength = 64

	// HashSuffixLength is the length of the hash suffix added to truncated
	// values. Format: _<8-char-hash> = 9 characters total
	HashSuffixLength = 9

	// DefaultIdentifier is used when sanitization produces an empty result.
	DefaultIdentifier = "default"
)

// Identifier sanitizes a string for use as an index name, which doubles as
// a directory name and a metric label.
//
// Rules applied:
//   - Converts to lowercase
//   - Replaces invalid characters with underscores
//   - Collapses multiple underscores
//   - Trims leading/trailing underscores
//   - Truncates to MaxIdentifierLength with hash suffix if too long
//   - Returns DefaultIdentifier if result would be empty
//
// Examples:
//
//	"combined_vector_db" -> "combined_vector_db"
//	"My Books!"          -> "my_books"
//	"../.." or ""        -> "default"
func Identifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	sanitized := b.String()
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")

	if sanitized == "" {
		return DefaultIdentifier
	}
	if len(sanitized) > MaxIdentifierLength {
		sanitized = truncateWithHash(sanitized, MaxIdentifierLength)
	}
	return sanitized
}

// truncateWithHash truncates s to max bytes, appending a hash of the
// original to preserve uniqueness.
//
// Format: <truncated>_<8-char-hash>
func truncateWithHash(s string, max int) string {
	hash := sha256.Sum256([]byte(s))
	suffix := "_" + hex.EncodeToString(hash[:])[:8]

	truncated := s[:max-HashSuffixLength]
	// Drop a multi-byte rune split by the cut.
	for !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}
	truncated = strings.TrimRight(truncated, "_")

	return truncated + suffix
}
