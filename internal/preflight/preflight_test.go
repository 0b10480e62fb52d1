package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"showrunner/internal/testsupport"
)

func TestCheckDirectoryAccessOK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccessNotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccessNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": `{"ok":true}`},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithOpenAIBaseURL(srv.URL))
	result := CheckOpenAI(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	cfg.OpenAI.APIKey = ""
	result = CheckOpenAI(context.Background(), cfg)
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("expected missing-key failure, got %+v", result)
	}
}

func TestCheckTokenKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	cfg.Platforms.TokenKey = ""
	result := CheckTokenKey(cfg)
	if result.Passed {
		t.Fatal("expected failure without a token key")
	}
	if !strings.Contains(result.Detail, "token_key") {
		t.Fatalf("detail should name the setting, got %q", result.Detail)
	}

	cfg.Platforms.TokenKey = "0123456789abcdef0123456789abcdef"
	result = CheckTokenKey(cfg)
	if !result.Passed {
		t.Fatalf("expected pass with a key, got: %s", result.Detail)
	}
}

func TestCheckNtfyDisabledPasses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	result := CheckNtfy(cfg)
	if !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunAllCoversConfiguredPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": `{"ok":true}`},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithOpenAIBaseURL(srv.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Data directory", "Work directory", "Log directory", "Storage directory", "OpenAI API"} {
		if !byName[name].Passed {
			t.Fatalf("%s failed: %s", name, byName[name].Detail)
		}
	}
}

func TestCheckSystemDepsNamesBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpeg = "definitely-not-ffmpeg"
	cfg.Tools.FFprobe = "definitely-not-ffprobe"

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	for _, status := range statuses {
		if status.Available {
			t.Fatalf("expected %s to be unavailable", status.Name)
		}
		if status.Detail == "" {
			t.Fatalf("expected detail for %s", status.Name)
		}
	}
}
