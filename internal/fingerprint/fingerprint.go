// Package fingerprint computes the content-addressed cache key used to
// deduplicate generation requests.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/graceverse/study-api/internal/models"
)

// Normalize trims surrounding whitespace and lowercases raw input so that
// trivially-different spellings of the same request share a cache entry.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Compute returns the lower-hex SHA-256 fingerprint for a generation request:
//
//	SHA-256(input_kind || 0x00 || normalize(raw_input) || 0x00 || language)
func Compute(kind models.InputKind, rawInput string, lang models.Language) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0x00})
	h.Write([]byte(Normalize(rawInput)))
	h.Write([]byte{0x00})
	h.Write([]byte(lang))
	return hex.EncodeToString(h.Sum(nil))
}
