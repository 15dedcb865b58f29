package dedup

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// normalize lowercases and collapses all whitespace so similarity reflects
// the words, not the formatting.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity returns a normalized edit-distance ratio in [0,1]: 1 for equal
// strings, 0 for nothing in common. The inputs are ordered canonically
// before comparison so Similarity(a, b) == Similarity(b, a) holds exactly,
// not just in theory.
func Similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a > b {
		a, b = b, a
	}

	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
