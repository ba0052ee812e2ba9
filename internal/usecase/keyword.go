package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxKeywordLength bounds search keywords sent to the sites, in runes
const maxKeywordLength = 100

var (
	// Matches characters that search pages choke on (quotes, brackets, control chars)
	keywordNoisePattern = regexp.MustCompile(`["'<>\[\]{}\\|` + "`" + `\x00-\x1f]`)

	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeKeyword cleans a user-entered search keyword.
// Strips markup-like punctuation, normalizes whitespace and bounds the length,
// cutting at a word boundary when one is reasonably close.
func NormalizeKeyword(keyword string) string {
	cleaned := keywordNoisePattern.ReplaceAllString(keyword, " ")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if utf8.RuneCountInString(cleaned) > maxKeywordLength {
		runes := []rune(cleaned)[:maxKeywordLength]
		cleaned = string(runes)
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > len(cleaned)/2 {
			cleaned = cleaned[:lastSpace]
		}
	}

	return cleaned
}
