// Package strings provides string set and normalization helpers.
package strings

import (
	"slices"
	"strings"
	"unicode"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}

// SortedSet is DedupeAndTrim followed by a lexical sort, so equal inputs in
// any order produce the same slice. Empty input yields nil.
//
// Example:
//
//	SortedSet([]string{"ICT", " Governance", "ICT"})
//	// Returns: []string{"Governance", "ICT"}
func SortedSet(values []string) []string {
	result := DedupeAndTrim(values)
	if len(result) == 0 {
		return nil
	}
	slices.Sort(result)
	return result
}

// NormalizeKey folds text for equality checks: lower case, punctuation
// dropped, whitespace collapsed.
//
// Example:
//
//	NormalizeKey("Maintain  an ICT-risk framework.")
//	// Returns: "maintain an ict risk framework"
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
