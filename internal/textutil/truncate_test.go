package textutil_test

import (
	"testing"

	"showrunner/internal/textutil"
)

func TestTruncateRunesCountsCharacters(t *testing.T) {
	if got := textutil.TruncateRunes("hello", 10); got != "hello" {
		t.Fatalf("short strings must pass through, got %q", got)
	}
	if got := textutil.TruncateRunes("hello", 3); got != "hel" {
		t.Fatalf("expected hel, got %q", got)
	}
	if got := textutil.TruncateRunes("héllo wörld", 7); got != "héllo w" {
		t.Fatalf("multibyte truncation broken: %q", got)
	}
	if got := textutil.TruncateRunes("anything", 0); got != "" {
		t.Fatalf("zero limit must empty the string, got %q", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := textutil.CollapseWhitespace("  one\t two \n three  "); got != "one two three" {
		t.Fatalf("unexpected collapse result: %q", got)
	}
}

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"ai_tech":          "Ai Tech",
		"ready_for_review": "Ready For Review",
		"motivation":       "Motivation",
		"":                 "",
	}
	for input, want := range cases {
		if got := textutil.Label(input); got != want {
			t.Fatalf("Label(%q) = %q, want %q", input, got, want)
		}
	}
}
