package document

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// Tokens splits text into lower-case word tokens. Letters and digits form
// words; everything else separates them.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NormalizeForComparison collapses whitespace and case so cosmetic edits
// compare equal.
func NormalizeForComparison(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// ContentHash fingerprints clause content after NormalizeForComparison.
func ContentHash(content string) string {
	sum := blake2b.Sum256([]byte(NormalizeForComparison(content)))
	return hex.EncodeToString(sum[:])
}
