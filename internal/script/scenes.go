package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Scene is one narration beat with its visual direction. Index is 1-based to
// match the order the narrator reads them in.
type Scene struct {
	Index             int    `json:"scene"`
	Text              string `json:"text"`
	VisualDescription string `json:"visual_description"`
}

const visualFallbackLimit = 500

// ValidateScenes normalizes a decoded scene payload. The payload must be a
// non-empty array of objects, each with non-blank narration text. A missing
// visual description falls back to a prefix of the narration, and a missing
// index falls back to the position in the array.
func ValidateScenes(raw any) ([]Scene, error) {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, errors.New("scenes must be a non-empty list")
	}
	out := make([]Scene, 0, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("scene %d must be an object", i)
		}
		text := strings.TrimSpace(stringField(entry, "text"))
		if text == "" {
			return nil, fmt.Errorf("scene %d missing 'text'", i)
		}
		visual := strings.TrimSpace(stringField(entry, "visual_description"))
		if visual == "" {
			visual = truncateRunes(text, visualFallbackLimit)
		}
		out = append(out, Scene{
			Index:             intField(entry, "scene", i+1),
			Text:              text,
			VisualDescription: visual,
		})
	}
	return out, nil
}

// ParseScenes decodes and validates a raw JSON scene array, capping the
// result at maxScenes when positive.
func ParseScenes(payload string, maxScenes int) ([]Scene, error) {
	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode scenes: %w", err)
	}
	scenes, err := ValidateScenes(raw)
	if err != nil {
		return nil, err
	}
	if maxScenes > 0 && len(scenes) > maxScenes {
		scenes = scenes[:maxScenes]
	}
	return scenes, nil
}

// EncodeScenes renders scenes back to the JSON form stored on script rows.
func EncodeScenes(scenes []Scene) (string, error) {
	encoded, err := json.Marshal(scenes)
	if err != nil {
		return "", fmt.Errorf("encode scenes: %w", err)
	}
	return string(encoded), nil
}

// JoinNarration concatenates the scene narration into a single script text,
// one paragraph per scene.
func JoinNarration(scenes []Scene) string {
	parts := make([]string, 0, len(scenes))
	for _, scene := range scenes {
		if text := strings.TrimSpace(scene.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func stringField(entry map[string]any, key string) string {
	if value, ok := entry[key].(string); ok {
		return value
	}
	return ""
}

func intField(entry map[string]any, key string, fallback int) int {
	switch value := entry[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return fallback
		}
		var parsed int
		if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
