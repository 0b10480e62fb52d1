package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalStoreAndOpenWithPublicBase(t *testing.T) {
	dir := t.TempDir()
	backend := NewLocal(dir, "https://media.example.com/")
	if !backend.Configured() {
		t.Fatal("expected configured backend")
	}

	url, err := backend.Store(context.Background(), "workspaces/ws/episodes/ep/voice.mp3", strings.NewReader("audio"), "audio/mpeg")
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if url != "https://media.example.com/workspaces/ws/episodes/ep/voice.mp3" {
		t.Fatalf("unexpected url %q", url)
	}

	onDisk := filepath.Join(dir, "workspaces", "ws", "episodes", "ep", "voice.mp3")
	if _, err := os.Stat(onDisk); err != nil {
		t.Fatalf("expected object on disk: %v", err)
	}

	rc, err := backend.Open(context.Background(), url)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if string(content) != "audio" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestLocalStoreFileURLWithoutPublicBase(t *testing.T) {
	dir := t.TempDir()
	backend := NewLocal(dir, "")

	url, err := backend.Store(context.Background(), "a/b.txt", strings.NewReader("hello"), "text/plain")
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("expected file url, got %q", url)
	}

	rc, err := backend.Open(context.Background(), url)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer rc.Close()
	content, _ := io.ReadAll(rc)
	if string(content) != "hello" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestLocalOpenFetchesRemoteURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote-bytes"))
	}))
	defer server.Close()

	backend := NewLocal(t.TempDir(), "")
	rc, err := backend.Open(context.Background(), server.URL+"/object")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer rc.Close()
	content, _ := io.ReadAll(rc)
	if string(content) != "remote-bytes" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestLocalOpenRejectsPlaceholder(t *testing.T) {
	backend := NewLocal(t.TempDir(), "")
	if _, err := backend.Open(context.Background(), PlaceholderPrefix+"a/b"); err == nil {
		t.Fatal("expected placeholder open to fail")
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	backend := NewLocal(t.TempDir(), "")
	if _, err := backend.Store(context.Background(), "../escape.txt", strings.NewReader("x"), "text/plain"); err == nil {
		t.Fatal("expected traversal key to fail")
	}
}

func TestPlaceholderBackend(t *testing.T) {
	backend := NewBackend("", "")
	if backend.Configured() {
		t.Fatal("expected unconfigured backend")
	}
	url, err := backend.Store(context.Background(), "workspaces/ws/episodes/ep/video.mp4", strings.NewReader("data"), "video/mp4")
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if !IsPlaceholderURL(url) {
		t.Fatalf("expected placeholder url, got %q", url)
	}
	if _, err := backend.Open(context.Background(), url); err == nil {
		t.Fatal("expected placeholder open to fail")
	}
	resolved, err := backend.ResolveURL(url, time.Hour)
	if err != nil {
		t.Fatalf("ResolveURL returned error: %v", err)
	}
	if resolved != url {
		t.Fatalf("expected pass-through, got %q", resolved)
	}
}

func TestObjectKeys(t *testing.T) {
	if got := VoiceKey("ws", "ep", 2); got != "workspaces/ws/episodes/ep/scene_2_voice.mp3" {
		t.Fatalf("unexpected scene voice key %q", got)
	}
	if got := VoiceKey("ws", "ep", -1); got != "workspaces/ws/episodes/ep/voice.mp3" {
		t.Fatalf("unexpected voice key %q", got)
	}
	if got := ImageKey("ws", "ep", 0); got != "workspaces/ws/episodes/ep/scene_0.png" {
		t.Fatalf("unexpected scene image key %q", got)
	}
	if got := ImageKey("ws", "ep", -1); got != "workspaces/ws/episodes/ep/cover.png" {
		t.Fatalf("unexpected cover key %q", got)
	}
	if got := VideoKey("ws", "ep"); got != "workspaces/ws/episodes/ep/video.mp4" {
		t.Fatalf("unexpected video key %q", got)
	}
}

func TestIsPlaceholderURL(t *testing.T) {
	if !IsPlaceholderURL(" https://storage.example.invalid/a/b ") {
		t.Fatal("expected trimmed placeholder to match")
	}
	if IsPlaceholderURL("https://media.example.com/a/b") {
		t.Fatal("real url should not match")
	}
}
