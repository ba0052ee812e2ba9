package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation thresholds
const (
	// TokenMismatchThreshold is the share of core tokens allowed to differ
	TokenMismatchThreshold = 0.5
)

// PriceChangeThreshold is the maximum relative price move (±30%) treated as normal
var PriceChangeThreshold = decimal.RequireFromString("0.30")

// isTokenRune keeps word characters (letters, digits, underscore) and Hangul syllables
func isTokenRune(r rune) bool {
	if r >= '가' && r <= '힣' {
		return true
	}
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ExtractCoreTokens returns the meaningful words and numbers of a product title.
// "삼성 RTX 4070 Ti SUPER 16GB" → {삼성, rtx, 4070, ti, super, 16gb}
func ExtractCoreTokens(title string) map[string]struct{} {
	tokens := make(map[string]struct{})
	if title == "" {
		return tokens
	}

	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || isTokenRune(r) {
			return r
		}
		return ' '
	}, strings.ToLower(title))

	for _, word := range strings.Fields(normalized) {
		if utf8.RuneCountInString(word) >= 2 || containsDigit(word) {
			tokens[word] = struct{}{}
		}
	}
	return tokens
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// TokenSimilarity is the Jaccard similarity of two token sets
func TokenSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// CheckTokenMismatch reports whether two titles likely describe different products.
// An empty token set on either side counts as a mismatch.
func CheckTokenMismatch(titleA, titleB string) bool {
	a := ExtractCoreTokens(titleA)
	b := ExtractCoreTokens(titleB)
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	return TokenSimilarity(a, b) < 1-TokenMismatchThreshold
}

// CheckAbnormalPriceChange reports a move of more than PriceChangeThreshold
// relative to oldPrice. Without a positive baseline nothing is abnormal.
func CheckAbnormalPriceChange(oldPrice, newPrice int64) bool {
	if oldPrice <= 0 {
		return false
	}
	diff := decimal.NewFromInt(newPrice).Sub(decimal.NewFromInt(oldPrice)).Abs()
	limit := decimal.NewFromInt(oldPrice).Mul(PriceChangeThreshold)
	return diff.GreaterThan(limit)
}
