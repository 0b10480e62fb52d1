package scriptgen

import (
	"fmt"
	"strings"

	"showrunner/internal/language"
	"showrunner/internal/store"
)

var textThemes = map[string]string{
	"motivation": "Create an inspiring motivational short-form video script",
	"horror":     "Create a suspenseful horror story script",
	"finance":    "Create an educational finance tip script",
	"ai_tech":    "Create an engaging AI and technology explainer script",
	"kids":       "Create a fun, educational script suitable for children",
	"anime":      "Create an anime-style narrative script",
	"custom":     "Create a custom content script",
}

var sceneThemes = map[string]string{
	"motivation": "inspiring motivational short-form video",
	"horror":     "suspenseful horror story",
	"finance":    "educational finance tip",
	"ai_tech":    "engaging AI and technology explainer",
	"kids":       "fun, educational content for children",
	"anime":      "anime-style narrative",
	"custom":     "custom content",
}

const textSystemPrompt = "You are a professional scriptwriter for short-form video content. " +
	"Create engaging, concise scripts optimized for social media platforms."

const sceneSystemPrompt = "You are a professional scriptwriter for short vertical videos (Reels/TikTok). " +
	"Output ONLY a valid JSON array of scenes. No markdown, no code fence, no explanation."

// textPrompts builds the monolithic-script prompt pair from series settings.
func textPrompts(series *store.Series, languageCode string) (string, string) {
	base, ok := textThemes[series.ContentType]
	if !ok {
		base = "Create a video script"
	}

	var parts []string
	if series.ContentType == "custom" && series.CustomTopic != nil {
		topic := series.CustomTopic
		parts = append(parts, fmt.Sprintf("%s about: %s", base, topic.TopicTitle))
		if topic.TargetAudience != "" {
			parts = append(parts, fmt.Sprintf("Target audience: %s", topic.TargetAudience))
		}
		if topic.Tone != "" {
			parts = append(parts, fmt.Sprintf("Tone: %s", topic.Tone))
		}
		if len(topic.Keywords) > 0 {
			parts = append(parts, fmt.Sprintf("Keywords to include: %s", strings.Join(topic.Keywords, ", ")))
		}
		if topic.CTAStyle != "" {
			parts = append(parts, fmt.Sprintf("Call-to-action style: %s", topic.CTAStyle))
		}
	} else {
		parts = append(parts, base)
	}

	if prefs := series.ScriptPreferences; prefs != nil {
		switch storyLength(prefs) {
		case "45_60":
			parts = append(parts, "Length: 45-60 seconds of spoken content")
		case "30_40":
			parts = append(parts, "Length: 30-40 seconds of spoken content")
		}
		if prefs.Tone != "" {
			parts = append(parts, fmt.Sprintf("Tone: %s", prefs.Tone))
		}
		if prefs.HookStrength != "" {
			parts = append(parts, fmt.Sprintf("Hook strength: %s", prefs.HookStrength))
		}
		if prefs.IncludeCTA && prefs.CTAText != "" {
			parts = append(parts, fmt.Sprintf("Include call-to-action: %s", prefs.CTAText))
		}
	}

	if !language.IsDefault(languageCode) {
		parts = append(parts, fmt.Sprintf("Language: %s", languageCode))
	}
	parts = append(parts,
		"Write only the script text, no stage directions or notes. "+
			"Make it engaging and suitable for a short-form video.")

	return textSystemPrompt, strings.Join(parts, "\n")
}

// scenePrompts builds the scene-array prompt pair from series settings.
func scenePrompts(series *store.Series, languageCode string, minScenes, maxScenes int) (string, string) {
	theme, ok := sceneThemes[series.ContentType]
	if !ok {
		theme = "short-form video"
	}
	if series.ContentType == "custom" && series.CustomTopic != nil {
		title := series.CustomTopic.TopicTitle
		if title == "" {
			title = theme
		}
		theme = "custom: " + title
	}

	lengthSec := "30-40"
	if storyLength(series.ScriptPreferences) == "45_60" {
		lengthSec = "45-60"
	}

	user := fmt.Sprintf(
		"Create a %s script for %s seconds of spoken content. "+
			"Split it into exactly %d to %d short scenes. "+
			"For each scene provide: "+
			`"scene" (1-based index), `+
			`"text" (the exact narration for that scene, one or two sentences), `+
			`"visual_description" (short cinematic visual for that moment: setting, mood. MUST contain no text/letters/words/subtitles/signage/watermarks). `+
			"Keep visual_description under 100 words, cinematic and concrete. "+
			`Output a JSON array only, e.g. [{"scene":1,"text":"...","visual_description":"..."}, ...]`,
		theme, lengthSec, minScenes, maxScenes,
	)
	if !language.IsDefault(languageCode) {
		user += fmt.Sprintf(" Language for narration: %s.", languageCode)
	}

	return sceneSystemPrompt, user
}

func storyLength(prefs *store.ScriptPreferences) string {
	if prefs == nil || prefs.StoryLength == "" {
		return "30_40"
	}
	return prefs.StoryLength
}
