package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Default is the narration language assumed when a series sets none.
const Default = "en-US"

// Normalize canonicalizes a BCP-47 tag ("en-us", "EN_us") to its standard
// form ("en-US"). Empty input returns the default; unparseable input is
// returned trimmed so callers can surface it in validation errors.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return Default
	}
	code = strings.ReplaceAll(code, "_", "-")
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

// IsValid reports whether code parses as a BCP-47 tag.
func IsValid(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	_, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	return err == nil
}

// IsDefault reports whether code names the default narration language.
// Script prompts only carry a language directive for non-default languages.
func IsDefault(code string) bool {
	return Normalize(code) == Default
}

// DisplayName returns a human-readable name for a tag, e.g.
// "American English" for en-US. Unparseable input echoes back trimmed, and
// empty input reports "Unknown".
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Unknown"
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return name
}
