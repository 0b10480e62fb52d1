package imagegen

import "strings"

const sceneStyleSuffix = " Cinematic dramatic lighting, photorealistic, film grain, shallow depth of field, " +
	"professional color grading, no text or logos, vertical composition 9:16, hyper realistic. " +
	"Family-friendly, PG-13 only, no gore, no graphic violence, no weapons, no nudity. " +
	"Absolutely no letters, words, subtitles, captions, signage, watermarks, UI, or symbols."

// SafeScenePrompt is the abstract retry prompt used after a safety-system
// rejection.
const SafeScenePrompt = "Soft, abstract atmospheric background with gentle gradients and subtle light rays, " +
	"no characters, no creatures, no text, no symbols, no violence, suitable for a " +
	"family-friendly short vertical horror story. Vertical 9:16 composition, cinematic lighting."

const (
	sceneDescriptionLimit = 400
	coverSnippetLimit     = 800
)

// ScenePrompt builds the illustration prompt for one scene description.
func ScenePrompt(visualDescription string) string {
	desc := truncateRunes(strings.TrimSpace(visualDescription), sceneDescriptionLimit)
	if desc == "" {
		desc = "atmospheric cinematic moment, moody lighting"
	}
	return "Create an image with zero readable text. Do not include any writing of any kind. " +
		desc + sceneStyleSuffix
}

// CoverPrompt builds the background-image prompt for a whole script.
func CoverPrompt(scriptText string) string {
	text := strings.TrimSpace(scriptText)
	if text == "" {
		return "Photorealistic cinematic scene: soft gradient sky and distant mountains, " +
			"professional color grading, shallow depth of field, vertical composition, no text."
	}
	snippet := strings.TrimSpace(truncateRunes(text, coverSnippetLimit))
	if len([]rune(text)) > coverSnippetLimit {
		snippet += "..."
	}
	return "Photorealistic, cinematic photograph suitable as the background for a short vertical video. " +
		"Theme or mood of the video: " + snippet + ". " +
		"Style: realistic photography, film look, professional color grading, shallow depth of field, " +
		"high quality, no text or logos, no cartoon or illustration. Portrait orientation, 9:16 aspect. " +
		"Family-friendly, PG-13 tone, no gore, no graphic violence, no explicit injuries or disturbing content."
}
