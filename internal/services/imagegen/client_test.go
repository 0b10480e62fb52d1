package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateDecodesImage(t *testing.T) {
	raw := []byte("png-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model          string `json:"model"`
			Prompt         string `json:"prompt"`
			Size           string `json:"size"`
			N              int    `json:"n"`
			ResponseFormat string `json:"response_format"`
			Quality        string `json:"quality"`
			Style          string `json:"style"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "dall-e-3" || body.Size != "1024x1792" || body.N != 1 {
			t.Fatalf("unexpected request fields: %+v", body)
		}
		if body.ResponseFormat != "b64_json" || body.Quality != "standard" {
			t.Fatalf("unexpected format fields: %+v", body)
		}
		if body.Style != "natural" {
			t.Fatalf("expected natural style for dall-e-3, got %q", body.Style)
		}
		payload := map[string]any{
			"data": []any{map[string]any{"b64_json": base64.StdEncoding.EncodeToString(raw)}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Enabled: true})
	image, err := client.Generate(context.Background(), "a quiet forest")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if string(image) != string(raw) {
		t.Fatalf("unexpected image bytes %q", image)
	}
}

func TestGenerateOmitsStyleForOtherModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, ok := body["style"]; ok {
			t.Fatalf("expected no style field, got %v", body["style"])
		}
		payload := map[string]any{
			"data": []any{map[string]any{"b64_json": base64.StdEncoding.EncodeToString([]byte("x"))}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "gpt-image-1"})
	if _, err := client.Generate(context.Background(), "prompt"); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
}

func TestGenerateSceneFallsBackOnPolicyRejection(t *testing.T) {
	var calls int
	var prompts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		prompts = append(prompts, body.Prompt)
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"content_policy_violation","message":"rejected"}}`))
			return
		}
		payload := map[string]any{
			"data": []any{map[string]any{"b64_json": base64.StdEncoding.EncodeToString([]byte("safe"))}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Enabled: true})
	image, err := client.GenerateScene(context.Background(), "a grisly battlefield")
	if err != nil {
		t.Fatalf("GenerateScene returned error: %v", err)
	}
	if string(image) != "safe" {
		t.Fatalf("unexpected image bytes %q", image)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if !strings.Contains(prompts[1], "abstract atmospheric background") {
		t.Fatalf("expected safe fallback prompt, got %q", prompts[1])
	}
}

func TestGenerateSceneDoesNotRetryTransportErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	if _, err := client.GenerateScene(context.Background(), "desc"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestScenePromptDefaultsAndLimits(t *testing.T) {
	prompt := ScenePrompt("")
	if !strings.Contains(prompt, "atmospheric cinematic moment") {
		t.Fatalf("expected default description, got %q", prompt)
	}
	if !strings.HasPrefix(prompt, "Create an image with zero readable text.") {
		t.Fatalf("expected zero-text preamble, got %q", prompt)
	}
	long := strings.Repeat("d", 500)
	prompt = ScenePrompt(long)
	if strings.Contains(prompt, strings.Repeat("d", 401)) {
		t.Fatal("expected description capped at 400 runes")
	}
}

func TestCoverPromptSnippets(t *testing.T) {
	if !strings.Contains(CoverPrompt(""), "soft gradient sky") {
		t.Fatal("expected default cover prompt for empty script")
	}
	long := strings.Repeat("s", 900)
	prompt := CoverPrompt(long)
	if !strings.Contains(prompt, "...") {
		t.Fatal("expected truncated snippet to end with ellipsis")
	}
}

func TestIsContentPolicyRejection(t *testing.T) {
	if IsContentPolicyRejection(nil) {
		t.Fatal("nil error should not be a rejection")
	}
	err := &testError{"image generate: http 400: content_policy_violation"}
	if !IsContentPolicyRejection(err) {
		t.Fatal("expected policy marker to match")
	}
	err = &testError{"blocked by our safety system"}
	if !IsContentPolicyRejection(err) {
		t.Fatal("expected safety marker to match")
	}
	err = &testError{"connection refused"}
	if IsContentPolicyRejection(err) {
		t.Fatal("transport error should not be a rejection")
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
