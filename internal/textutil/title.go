package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Label renders an identifier such as "ai_tech" or "ready_for_review" as a
// human-facing label ("Ai Tech", "Ready For Review").
func Label(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.NewReplacer("_", " ", "-", " ").Replace(value)
	return titleCaser.String(value)
}
