package script

import (
	"strings"
	"testing"
)

func TestParseScenesNormalizesPayload(t *testing.T) {
	payload := `[
        {"scene": 1, "text": "  Opening line.  ", "visual_description": "A dark alley"},
        {"text": "Second beat."},
        {"scene": "3", "text": "Closing.", "visual_description": "  "}
    ]`
	scenes, err := ParseScenes(payload, 0)
	if err != nil {
		t.Fatalf("ParseScenes returned error: %v", err)
	}
	if len(scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(scenes))
	}
	if scenes[0].Text != "Opening line." {
		t.Fatalf("expected trimmed text, got %q", scenes[0].Text)
	}
	if scenes[1].Index != 2 {
		t.Fatalf("expected positional index 2, got %d", scenes[1].Index)
	}
	if scenes[1].VisualDescription != "Second beat." {
		t.Fatalf("expected narration fallback visual, got %q", scenes[1].VisualDescription)
	}
	if scenes[2].Index != 3 {
		t.Fatalf("expected parsed string index 3, got %d", scenes[2].Index)
	}
	if scenes[2].VisualDescription != "Closing." {
		t.Fatalf("expected blank visual to fall back, got %q", scenes[2].VisualDescription)
	}
}

func TestParseScenesCapsAtMax(t *testing.T) {
	payload := `[
        {"text": "one"}, {"text": "two"}, {"text": "three"}, {"text": "four"}
    ]`
	scenes, err := ParseScenes(payload, 2)
	if err != nil {
		t.Fatalf("ParseScenes returned error: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("expected 2 scenes after cap, got %d", len(scenes))
	}
}

func TestParseScenesRejectsEmptyList(t *testing.T) {
	if _, err := ParseScenes(`[]`, 0); err == nil {
		t.Fatal("expected empty list to fail")
	}
}

func TestParseScenesRejectsNonObjectItem(t *testing.T) {
	_, err := ParseScenes(`["just a string"]`, 0)
	if err == nil {
		t.Fatal("expected non-object scene to fail")
	}
	if !strings.Contains(err.Error(), "must be an object") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseScenesRejectsBlankText(t *testing.T) {
	_, err := ParseScenes(`[{"scene":1,"text":"   "}]`, 0)
	if err == nil {
		t.Fatal("expected blank text to fail")
	}
	if !strings.Contains(err.Error(), "missing 'text'") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateScenesVisualFallbackTruncates(t *testing.T) {
	long := strings.Repeat("x", 600)
	raw := []any{map[string]any{"text": long}}
	scenes, err := ValidateScenes(raw)
	if err != nil {
		t.Fatalf("ValidateScenes returned error: %v", err)
	}
	if got := len([]rune(scenes[0].VisualDescription)); got != 500 {
		t.Fatalf("expected 500-rune fallback visual, got %d", got)
	}
}

func TestJoinNarration(t *testing.T) {
	scenes := []Scene{
		{Index: 1, Text: "First."},
		{Index: 2, Text: "  "},
		{Index: 3, Text: "Third."},
	}
	if got := JoinNarration(scenes); got != "First.\n\nThird." {
		t.Fatalf("unexpected narration %q", got)
	}
}

func TestEncodeScenesRoundTrip(t *testing.T) {
	scenes := []Scene{{Index: 1, Text: "Hello.", VisualDescription: "A beach"}}
	encoded, err := EncodeScenes(scenes)
	if err != nil {
		t.Fatalf("EncodeScenes returned error: %v", err)
	}
	decoded, err := ParseScenes(encoded, 0)
	if err != nil {
		t.Fatalf("ParseScenes returned error: %v", err)
	}
	if decoded[0] != scenes[0] {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded[0], scenes[0])
	}
}
