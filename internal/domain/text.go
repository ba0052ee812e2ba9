package domain

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultTitleLength is the maximum length of a cleaned title, in runes
const DefaultTitleLength = 100

var nonDigitRegex = regexp.MustCompile(`[^0-9]`)

// ParsePrice extracts an integer price from display text such as "1,234,567원".
// Returns false when no digits remain or the value does not fit in int64.
func ParsePrice(text string) (int64, bool) {
	digits := nonDigitRegex.ReplaceAllString(text, "")
	if digits == "" {
		return 0, false
	}
	price, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// CleanTitle collapses whitespace runs and truncates to maxLength runes
func CleanTitle(title string, maxLength int) string {
	cleaned := strings.Join(strings.Fields(title), " ")
	if maxLength < 0 {
		maxLength = 0
	}
	if utf8.RuneCountInString(cleaned) <= maxLength {
		return cleaned
	}
	return string([]rune(cleaned)[:maxLength])
}
