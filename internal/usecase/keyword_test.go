package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeKeyword(t *testing.T) {
	testCases := []struct {
		name    string
		keyword string
		want    string
	}{
		{name: "trims and collapses spaces", keyword: "  갤럭시   버즈3  ", want: "갤럭시 버즈3"},
		{name: "strips quotes and brackets", keyword: `"에어팟" [프로] <2세대>`, want: "에어팟 프로 2세대"},
		{name: "strips control characters", keyword: "rtx\t4070\x00ti", want: "rtx 4070 ti"},
		{name: "keeps hyphen and plus", keyword: "usb-c 케이블 2m+", want: "usb-c 케이블 2m+"},
		{name: "only noise", keyword: `"'<>`, want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeKeyword(tc.keyword); got != tc.want {
				t.Errorf("NormalizeKeyword(%q) = %q, want %q", tc.keyword, got, tc.want)
			}
		})
	}
}

func TestNormalizeKeyword_BoundsLength(t *testing.T) {
	long := strings.Repeat("노트북 ", 40)

	got := NormalizeKeyword(long)

	if n := utf8.RuneCountInString(got); n > maxKeywordLength {
		t.Errorf("NormalizeKeyword length = %d runes, want <= %d", n, maxKeywordLength)
	}
	if strings.HasSuffix(got, " ") {
		t.Errorf("NormalizeKeyword = %q, want no trailing space", got)
	}
	if !strings.HasSuffix(got, "노트북") {
		t.Errorf("NormalizeKeyword = %q, want cut at a word boundary", got)
	}
}
