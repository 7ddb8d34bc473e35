package slug

import "testing"

func TestMake(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"World News":               "world-news",
		"  world   news  ":         "world-news",
		"Arts & Culture":           "arts-and-culture",
		"Café Société":             "cafe-societe",
		"U.S. Politics -- 2025":    "u-s-politics-2025",
		"Already-a-slug":           "already-a-slug",
		"":                         "",
		"!!!":                      "",
		"Ünïcödé Ñews @ Home_Page": "unicode-news-at-home-page",
	}

	for input, want := range cases {
		if got := Make(input); got != want {
			t.Fatalf("Make(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMake_SameSlugForEquivalentLabels(t *testing.T) {
	t.Parallel()

	if Make("World News") != Make("world-news") {
		t.Fatalf("expected equivalent labels to share a slug")
	}
}
