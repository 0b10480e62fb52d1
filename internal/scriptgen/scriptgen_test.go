package scriptgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/services"
	"showrunner/internal/services/llm"
	"showrunner/internal/store"
	"showrunner/internal/testsupport"
)

func newChatServer(t *testing.T, content string, capture *[]map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if capture != nil {
			var decoded map[string]any
			if err := json.Unmarshal(body, &decoded); err != nil {
				t.Errorf("decode chat request: %v", err)
			}
			*capture = append(*capture, decoded)
		}
		w.Header().Set("Content-Type", "application/json")
		response := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			t.Errorf("encode chat response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newGenerator(t *testing.T, cfg *config.Config, st *store.Store, baseURL string) *Generator {
	t.Helper()
	client := llm.NewClient(llm.Config{APIKey: "test", BaseURL: baseURL, Model: "gpt-test"})
	return NewWithClient(cfg, st, logging.NewNop(), client)
}

func enqueueScriptJob(t *testing.T, st *store.Store, episodeID string) *store.Job {
	t.Helper()
	job, err := st.EnqueueJob(context.Background(), store.KindScriptGeneration, episodeID, "", time.Now(), 3)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	claimed, err := st.ClaimNextJob(context.Background(), store.KindScriptGeneration)
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("claimed unexpected job %v", claimed)
	}
	return claimed
}

func TestSceneModeGeneratesScriptAndScenes(t *testing.T) {
	scenes := `[
		{"scene":1,"text":"Stars do not rush.","visual_description":"Night sky over a quiet ridge"},
		{"scene":2,"text":"Neither should you."}
	]`
	var requests []map[string]any
	server := newChatServer(t, scenes, &requests)

	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.SceneMode = true
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Night Wisdom")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	generator := newGenerator(t, cfg, st, server.URL)
	job := enqueueScriptJob(t, st, episode.ID)

	if err := generator.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	mid, err := st.GetEpisode(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if mid.Status != store.EpisodeGenerating {
		t.Fatalf("status after Prepare = %q, want generating", mid.Status)
	}

	if err := generator.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	final, err := st.GetEpisode(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if final.Status != store.EpisodeReadyForReview {
		t.Fatalf("status after Execute = %q, want ready_for_review", final.Status)
	}
	if final.ScriptID == "" {
		t.Fatal("episode script id not set")
	}
	if final.ErrorInfo != nil {
		t.Fatalf("error payload not cleared: %+v", final.ErrorInfo)
	}

	persisted, err := st.GetScript(context.Background(), final.ScriptID)
	if err != nil {
		t.Fatalf("GetScript: %v", err)
	}
	if persisted.Text != "Stars do not rush.\n\nNeither should you." {
		t.Fatalf("unexpected script text %q", persisted.Text)
	}
	if !strings.Contains(persisted.ScenesJSON, "visual_description") {
		t.Fatalf("scenes json missing visuals: %s", persisted.ScenesJSON)
	}
	if persisted.PromptMetadata["content_type"] != "motivation" {
		t.Fatalf("prompt metadata missing content type: %v", persisted.PromptMetadata)
	}

	if len(requests) != 1 {
		t.Fatalf("expected one chat request, got %d", len(requests))
	}
	if got := requests[0]["temperature"].(float64); got != 0.6 {
		t.Fatalf("scene temperature = %v, want 0.6", got)
	}
	if got := requests[0]["max_tokens"].(float64); got != 2000 {
		t.Fatalf("scene max_tokens = %v, want 2000", got)
	}
}

func TestTextModeGeneratesMonolithicScript(t *testing.T) {
	var requests []map[string]any
	server := newChatServer(t, "Keep moving. The summit is closer than it looks.", &requests)

	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.SceneMode = false
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Climb")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	generator := newGenerator(t, cfg, st, server.URL)
	job := enqueueScriptJob(t, st, episode.ID)

	if err := generator.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := generator.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	final, err := st.GetEpisode(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	persisted, err := st.GetScript(context.Background(), final.ScriptID)
	if err != nil {
		t.Fatalf("GetScript: %v", err)
	}
	if persisted.ScenesJSON != "" {
		t.Fatalf("text mode should not persist scenes, got %s", persisted.ScenesJSON)
	}
	if got := requests[0]["temperature"].(float64); got != 0.7 {
		t.Fatalf("text temperature = %v, want 0.7", got)
	}
	if got := requests[0]["max_tokens"].(float64); got != 1000 {
		t.Fatalf("text max_tokens = %v, want 1000", got)
	}
}

func TestPrepareRejectsEpisodePastGeneration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Done")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	episode.Status = store.EpisodeReadyForReview
	if err := st.UpdateEpisode(context.Background(), episode); err != nil {
		t.Fatalf("UpdateEpisode: %v", err)
	}

	generator := newGenerator(t, cfg, st, "http://127.0.0.1:1")
	job := enqueueScriptJob(t, st, episode.ID)

	err := generator.Prepare(context.Background(), job)
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("stale-state conflict should not be retryable")
	}

	unchanged, err := st.GetEpisode(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if unchanged.Status != store.EpisodeReadyForReview {
		t.Fatalf("conflicting Prepare mutated episode to %q", unchanged.Status)
	}
}

func TestExecuteEmptySceneListFails(t *testing.T) {
	server := newChatServer(t, "[]", nil)

	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.SceneMode = true
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Empty")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	generator := newGenerator(t, cfg, st, server.URL)
	job := enqueueScriptJob(t, st, episode.ID)

	if err := generator.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := generator.Execute(context.Background(), job)
	if err == nil {
		t.Fatal("expected scene validation failure")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("model output failures should retry, got %v", err)
	}
	details := services.Details(err)
	if !strings.Contains(details.Message, "scenes") {
		t.Fatalf("unexpected failure message %q", details.Message)
	}
}

func TestExecuteCapsOverLongSceneLists(t *testing.T) {
	var entries []string
	for i := 1; i <= 15; i++ {
		entries = append(entries, fmt.Sprintf(`{"scene":%d,"text":"Scene text."}`, i))
	}
	server := newChatServer(t, "["+strings.Join(entries, ",")+"]", nil)

	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.SceneMode = true
	cfg.Pipeline.ScenesMax = 12
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Long")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	generator := newGenerator(t, cfg, st, server.URL)
	job := enqueueScriptJob(t, st, episode.ID)

	if err := generator.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := generator.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	final, _ := st.GetEpisode(context.Background(), episode.ID)
	persisted, err := st.GetScript(context.Background(), final.ScriptID)
	if err != nil {
		t.Fatalf("GetScript: %v", err)
	}
	var scenes []map[string]any
	if err := json.Unmarshal([]byte(persisted.ScenesJSON), &scenes); err != nil {
		t.Fatalf("decode persisted scenes: %v", err)
	}
	if len(scenes) != 12 {
		t.Fatalf("expected 12 persisted scenes, got %d", len(scenes))
	}
}

func TestTextPromptsCustomTopic(t *testing.T) {
	series := &store.Series{
		ContentType: "custom",
		CustomTopic: &store.CustomTopic{
			TopicTitle:     "Deep sea creatures",
			TargetAudience: "curious teens",
			Tone:           "playful",
			Keywords:       []string{"anglerfish", "pressure"},
			CTAStyle:       "follow for more",
		},
		ScriptPreferences: &store.ScriptPreferences{
			StoryLength:  "45_60",
			Tone:         "wondrous",
			HookStrength: "strong",
			IncludeCTA:   true,
			CTAText:      "Follow for part two",
		},
	}

	system, user := textPrompts(series, "en-US")
	if !strings.Contains(system, "professional scriptwriter") {
		t.Fatalf("unexpected system prompt %q", system)
	}
	for _, want := range []string{
		"Create a custom content script about: Deep sea creatures",
		"Target audience: curious teens",
		"Keywords to include: anglerfish, pressure",
		"Call-to-action style: follow for more",
		"Length: 45-60 seconds of spoken content",
		"Hook strength: strong",
		"Include call-to-action: Follow for part two",
		"Write only the script text",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
	if strings.Contains(user, "Language:") {
		t.Error("default language should not add a language directive")
	}
}

func TestScenePromptsLanguageDirective(t *testing.T) {
	series := &store.Series{ContentType: "horror"}

	_, user := scenePrompts(series, "pt-BR", 5, 12)
	if !strings.Contains(user, "Create a suspenseful horror story script") {
		t.Fatalf("scene prompt missing theme: %s", user)
	}
	if !strings.Contains(user, "exactly 5 to 12 short scenes") {
		t.Fatalf("scene prompt missing bounds: %s", user)
	}
	if !strings.Contains(user, "Language for narration: pt-BR.") {
		t.Fatalf("scene prompt missing language directive: %s", user)
	}

	_, english := scenePrompts(series, "en-US", 5, 12)
	if strings.Contains(english, "Language for narration") {
		t.Fatal("default language should not add a narration directive")
	}
}
