package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims, collapses runs of whitespace and caps the result at
// maxLen runes. Ingredient and item names are often entered in Devanagari or
// Tamil script, so the cap never splits a multi-byte character.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 || utf8.RuneCountInString(cleaned) <= maxLen {
		return cleaned
	}
	runes := []rune(cleaned)
	return strings.TrimSpace(string(runes[:maxLen]))
}
