package textutil

import (
	"strings"
	"unicode"
)

// TruncateRunes returns s cut to at most limit runes. Byte-oriented slicing
// would split multibyte narration text; scene prompts and caption excerpts
// count characters the way the upstream models do.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// CollapseWhitespace trims s and folds internal whitespace runs to single
// spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
