// Package textsim computes normalized text similarity using
// diff-match-patch's Levenshtein distance, grounded on the teacher's
// internal/diff package which uses the same library for unified diffs.
package textsim

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var dmp = diffmatchpatch.New()

// Similarity returns a score in [0,1]: 1 means identical (after
// trimming and case-folding), 0 means completely dissimilar. Two empty
// strings are considered identical; one empty and one non-empty are
// completely dissimilar.
func Similarity(a, b string) float64 {
	a = strings.TrimSpace(strings.ToLower(a))
	b = strings.TrimSpace(strings.ToLower(b))
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	sim := 1 - float64(distance)/float64(maxLen)
	if sim < 0 {
		sim = 0
	}
	return sim
}
