package tts

import "strings"

// DefaultVoiceID is used when a series expresses no voice preference.
const DefaultVoiceID = "alloy"

// Voice describes one synthesis voice exposed to series configuration.
type Voice struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LanguageCode string `json:"languageCode"`
	Gender       string `json:"gender"`
	Style        string `json:"style"`
}

var voiceCatalog = []Voice{
	{ID: "alloy", Name: "Alloy", LanguageCode: "en-US", Gender: "neutral", Style: "neutral"},
	{ID: "echo", Name: "Echo", LanguageCode: "en-US", Gender: "male", Style: "neutral"},
	{ID: "fable", Name: "Fable", LanguageCode: "en-GB", Gender: "male", Style: "warm"},
	{ID: "onyx", Name: "Onyx", LanguageCode: "en-US", Gender: "male", Style: "deep"},
	{ID: "nova", Name: "Nova", LanguageCode: "en-US", Gender: "female", Style: "friendly"},
	{ID: "shimmer", Name: "Shimmer", LanguageCode: "en-US", Gender: "female", Style: "warm"},
}

// Voices returns the available synthesis voices, optionally filtered by
// language code.
func Voices(languageCode string) []Voice {
	languageCode = strings.TrimSpace(languageCode)
	out := make([]Voice, 0, len(voiceCatalog))
	for _, voice := range voiceCatalog {
		if languageCode != "" && voice.LanguageCode != languageCode {
			continue
		}
		out = append(out, voice)
	}
	return out
}

// VoiceForPreference maps a series voice preference onto a concrete voice.
// The gender check runs female before male because one contains the other.
func VoiceForPreference(gender, style string) string {
	gender = strings.ToLower(strings.TrimSpace(gender))
	style = strings.ToLower(strings.TrimSpace(style))
	switch {
	case strings.Contains(gender, "female"):
		if strings.Contains(style, "warm") {
			return "nova"
		}
		return "shimmer"
	case strings.Contains(gender, "male"):
		if strings.Contains(style, "deep") {
			return "onyx"
		}
		return "echo"
	default:
		return DefaultVoiceID
	}
}
