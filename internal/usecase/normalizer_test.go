package usecase

import "testing"

func TestExtractCoreTokens(t *testing.T) {
	testCases := []struct {
		name  string
		title string
		want  []string
	}{
		{
			name:  "mixed hangul and latin",
			title: "삼성 RTX 4070 Ti SUPER 16GB",
			want:  []string{"삼성", "rtx", "4070", "ti", "super", "16gb"},
		},
		{
			name:  "drops single letters but keeps digits",
			title: "Galaxy S 5 buds",
			want:  []string{"galaxy", "5", "buds"},
		},
		{
			name:  "punctuation splits words",
			title: "[정품] 애플/에어팟-프로(2세대)",
			want:  []string{"정품", "애플", "에어팟", "프로", "2세대"},
		},
		{
			name:  "empty",
			title: "",
			want:  nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractCoreTokens(tc.title)
			if len(got) != len(tc.want) {
				t.Fatalf("ExtractCoreTokens(%q) = %v, want %v", tc.title, got, tc.want)
			}
			for _, w := range tc.want {
				if _, ok := got[w]; !ok {
					t.Errorf("ExtractCoreTokens(%q) missing %q (got %v)", tc.title, w, got)
				}
			}
		})
	}
}

func TestTokenSimilarity(t *testing.T) {
	a := ExtractCoreTokens("apple airpods pro")
	b := ExtractCoreTokens("apple airpods max")

	if got := TokenSimilarity(a, b); got != 0.5 {
		t.Errorf("TokenSimilarity = %v, want 0.5", got)
	}
	if got := TokenSimilarity(a, a); got != 1 {
		t.Errorf("TokenSimilarity(a, a) = %v, want 1", got)
	}
	if got := TokenSimilarity(map[string]struct{}{}, map[string]struct{}{}); got != 0 {
		t.Errorf("TokenSimilarity(empty, empty) = %v, want 0", got)
	}
}

func TestCheckTokenMismatch(t *testing.T) {
	testCases := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "same title", a: "LG 그램 16 노트북", b: "LG 그램 16 노트북", want: false},
		{name: "exactly half overlap is accepted", a: "apple airpods pro", b: "apple airpods max", want: false},
		{name: "two of five tokens shared", a: "apple airpods pro", b: "apple airpods max silver", want: true},
		{name: "different product", a: "LG 그램 16 노트북", b: "삼성 갤럭시북 프로", want: true},
		{name: "empty side", a: "", b: "LG 그램", want: true},
		{name: "only single letters", a: "a b c", b: "LG 그램", want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CheckTokenMismatch(tc.a, tc.b); got != tc.want {
				t.Errorf("CheckTokenMismatch(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCheckAbnormalPriceChange(t *testing.T) {
	testCases := []struct {
		name     string
		old, new int64
		want     bool
	}{
		{name: "rise of exactly 30 percent", old: 1000, new: 1300, want: false},
		{name: "rise just over 30 percent", old: 1000, new: 1301, want: true},
		{name: "drop of exactly 30 percent", old: 1000, new: 700, want: false},
		{name: "drop just over 30 percent", old: 1000, new: 699, want: true},
		{name: "no baseline", old: 0, new: 5000, want: false},
		{name: "negative baseline", old: -1, new: 5000, want: false},
		{name: "unchanged", old: 129000, new: 129000, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CheckAbnormalPriceChange(tc.old, tc.new); got != tc.want {
				t.Errorf("CheckAbnormalPriceChange(%d, %d) = %v, want %v", tc.old, tc.new, got, tc.want)
			}
		})
	}
}
