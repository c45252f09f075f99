package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const fingerprintTextPrefixLen = 40

// Fingerprint computes the Pattern Store's cache key for a descriptor:
// a stable hash of (tagName, testId, id, name, ariaLabel, role, a
// normalized text prefix), deliberately excluding Selector so a
// recorded healing survives the very selector rename that triggered it
// (spec.md §6).
func Fingerprint(d Bundle) string {
	h := sha256.New()
	parts := []string{
		d.TagName, d.TestID, d.ID, d.Name, d.AriaLabel, d.Role,
		normalizeTextPrefix(d.Text),
	}
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeTextPrefix(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	normalized := strings.Join(fields, " ")
	if len(normalized) > fingerprintTextPrefixLen {
		normalized = normalized[:fingerprintTextPrefixLen]
	}
	return normalized
}
