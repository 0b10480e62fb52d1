package store

import "strings"

// The payload types below are stored as JSON columns. Their tags keep the
// camelCase key casing that API clients already use, so rows written by the
// HTTP surface and rows written by the pipeline stay interchangeable.

// CustomTopic describes a user-defined topic for content type "custom".
type CustomTopic struct {
	TopicTitle     string   `json:"topicTitle,omitempty"`
	TargetAudience string   `json:"targetAudience,omitempty"`
	Tone           string   `json:"tone,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	CTAStyle       string   `json:"ctaStyle,omitempty"`
}

// ScriptPreferences tunes script generation for a series.
type ScriptPreferences struct {
	StoryLength  string `json:"storyLength,omitempty"`
	Tone         string `json:"tone,omitempty"`
	HookStrength string `json:"hookStrength,omitempty"`
	IncludeCTA   bool   `json:"includeCta,omitempty"`
	CTAText      string `json:"ctaText,omitempty"`
}

// VoiceLanguage selects narration language and voice characteristics.
type VoiceLanguage struct {
	LanguageCode string  `json:"languageCode,omitempty"`
	Gender       string  `json:"gender,omitempty"`
	Style        string  `json:"style,omitempty"`
	Speed        float64 `json:"speed,omitempty"`
	Pitch        float64 `json:"pitch,omitempty"`
}

// MusicSettings selects background music for rendered videos.
type MusicSettings struct {
	Mode                string `json:"mode,omitempty"`
	PresetMood          string `json:"presetMood,omitempty"`
	LibraryTrackID      string `json:"libraryTrackId,omitempty"`
	CustomUploadAssetID string `json:"customUploadAssetId,omitempty"`
	TikTokURL           string `json:"tiktokUrl,omitempty"`
}

// ArtStyle selects the illustration style for scene images.
type ArtStyle struct {
	Style      string `json:"style,omitempty"`
	Intensity  string `json:"intensity,omitempty"`
	ColorTheme string `json:"colorTheme,omitempty"`
}

// CaptionStyle tunes caption rendering.
type CaptionStyle struct {
	Style             string `json:"style,omitempty"`
	FontFamily        string `json:"fontFamily,omitempty"`
	FontColor         string `json:"fontColor,omitempty"`
	HighlightColor    string `json:"highlightColor,omitempty"`
	Position          string `json:"position,omitempty"`
	BackgroundEnabled bool   `json:"backgroundEnabled,omitempty"`
}

// VisualEffect is one toggleable effect applied during rendering.
type VisualEffect struct {
	Type      string         `json:"type"`
	Enabled   bool           `json:"enabled"`
	IsPremium bool           `json:"isPremium"`
	Params    map[string]any `json:"params,omitempty"`
}

// Schedule describes when episodes of a series should publish.
// CustomDays uses Monday=0 through Sunday=6.
type Schedule struct {
	VideoDuration string `json:"videoDuration,omitempty"`
	Frequency     string `json:"frequency,omitempty"`
	CustomDays    []int  `json:"customDays,omitempty"`
	PublishTime   string `json:"publishTime,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
	StartDate     string `json:"startDate,omitempty"`
	Active        *bool  `json:"active,omitempty"`
}

// IsActive reports whether the schedule should keep producing episodes.
// An unset flag counts as active.
func (s *Schedule) IsActive() bool {
	if s == nil || s.Active == nil {
		return true
	}
	return *s.Active
}

// IsDaily reports whether the schedule produces an episode every day. Weekly
// schedules without explicit custom days degrade to daily.
func (s *Schedule) IsDaily() bool {
	if s == nil {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(s.Frequency), "weekly") {
		return len(s.CustomDays) == 0
	}
	return true
}

// ManifestScene is one rendered scene: an optional illustration, the
// narration clip, and how long the scene should hold on screen.
type ManifestScene struct {
	ImageAssetID    string  `json:"image_asset_id"`
	VoiceAssetID    string  `json:"voice_asset_id"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Manifest is the media-generation handoff consumed by the render stage.
// Scene-mode manifests fill Scenes; legacy single-clip manifests fill the
// top-level voice and image fields instead.
type Manifest struct {
	Scenes         []ManifestScene `json:"scenes,omitempty"`
	VoiceAssetID   string          `json:"voice_asset_id,omitempty"`
	ImageAssetID   string          `json:"image_asset_id,omitempty"`
	CaptionAssetID string          `json:"caption_asset_id,omitempty"`
	MusicAssetID   string          `json:"music_asset_id,omitempty"`
}

// SceneMode reports whether the manifest carries per-scene media.
func (m *Manifest) SceneMode() bool {
	return m != nil && len(m.Scenes) > 0
}

// ErrorPayload is the structured diagnostic recorded on episodes and posts
// when a stage fails. Step names the pipeline stage that failed.
type ErrorPayload struct {
	Step    string `json:"step,omitempty"`
	Message string `json:"message,omitempty"`
}

// AssetMetadata links an asset back to the pipeline that produced it.
// Role is one of scene_voice, scene_cover, voice, video_cover, or empty for
// uploads; SceneIndex is set only for per-scene media.
type AssetMetadata struct {
	EpisodeID  string `json:"episode_id,omitempty"`
	Role       string `json:"role,omitempty"`
	SceneIndex *int   `json:"scene_index,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Asset metadata roles.
const (
	RoleSceneVoice = "scene_voice"
	RoleSceneCover = "scene_cover"
	RoleVoice      = "voice"
	RoleVideoCover = "video_cover"
)
