// Package storage persists generated media objects and resolves the URLs
// recorded on asset rows back to fetchable content.
//
// The local backend writes under a configured directory and imprints either
// the configured public base URL or a file:// URL onto stored objects. When
// no directory is configured a placeholder backend records
// https://storage.example.invalid/ URLs so the pipeline can proceed through
// review while publishing fails fast with a configuration hint.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// PlaceholderPrefix marks URLs recorded while object storage was not
// configured. Publishing refuses these outright.
const PlaceholderPrefix = "https://storage.example.invalid/"

const fetchTimeout = 60 * time.Second

// Backend stores media objects and resolves stored URLs.
type Backend interface {
	// Configured reports whether stores will persist bytes.
	Configured() bool
	// Store persists an object under key and returns its canonical URL.
	Store(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// ResolveURL maps a stored URL to one that can be fetched for at least
	// ttl. Unrecognized URLs pass through unchanged.
	ResolveURL(url string, ttl time.Duration) (string, error)
	// Open returns the content behind a stored URL.
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// IsPlaceholderURL reports whether a URL was recorded without backing bytes.
func IsPlaceholderURL(url string) bool {
	return strings.HasPrefix(strings.TrimSpace(url), PlaceholderPrefix)
}

// VoiceKey returns the object key for an episode's narration clip. A scene
// index >= 0 selects the per-scene variant.
func VoiceKey(workspaceID, episodeID string, sceneIndex int) string {
	if sceneIndex >= 0 {
		return fmt.Sprintf("workspaces/%s/episodes/%s/scene_%d_voice.mp3", workspaceID, episodeID, sceneIndex)
	}
	return fmt.Sprintf("workspaces/%s/episodes/%s/voice.mp3", workspaceID, episodeID)
}

// ImageKey returns the object key for an episode illustration. A scene index
// >= 0 selects the per-scene variant; otherwise the single cover image.
func ImageKey(workspaceID, episodeID string, sceneIndex int) string {
	if sceneIndex >= 0 {
		return fmt.Sprintf("workspaces/%s/episodes/%s/scene_%d.png", workspaceID, episodeID, sceneIndex)
	}
	return fmt.Sprintf("workspaces/%s/episodes/%s/cover.png", workspaceID, episodeID)
}

// VideoKey returns the object key for an episode's assembled video.
func VideoKey(workspaceID, episodeID string) string {
	return fmt.Sprintf("workspaces/%s/episodes/%s/video.mp4", workspaceID, episodeID)
}

// Local is a filesystem-backed Backend rooted at a directory.
type Local struct {
	dir           string
	publicBaseURL string
	client        *http.Client
}

// NewLocal builds a filesystem backend. publicBaseURL, when set, becomes the
// URL prefix recorded on stored objects; otherwise file:// URLs are recorded.
func NewLocal(dir, publicBaseURL string) *Local {
	return &Local{
		dir:           strings.TrimSpace(dir),
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		client:        &http.Client{Timeout: fetchTimeout},
	}
}

// Configured reports whether the backend has a root directory.
func (l *Local) Configured() bool {
	return l != nil && l.dir != ""
}

// Store writes the object under dir/key and returns its canonical URL.
func (l *Local) Store(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if !l.Configured() {
		return "", errors.New("storage: directory not configured")
	}
	key = cleanKey(key)
	if key == "" {
		return "", errors.New("storage: key required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("storage: create directories: %w", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("storage: create object: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("storage: write object: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: close object: %w", err)
	}
	return l.urlForKey(key), nil
}

// ResolveURL passes URLs through unchanged; local objects and http URLs are
// already fetchable.
func (l *Local) ResolveURL(url string, _ time.Duration) (string, error) {
	return url, nil
}

// Open returns the content behind a stored URL. URLs under the public base
// are served straight from disk; other http(s) URLs are fetched remotely.
func (l *Local) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	rawURL = strings.TrimSpace(rawURL)
	switch {
	case rawURL == "":
		return nil, errors.New("storage: empty url")
	case IsPlaceholderURL(rawURL):
		return nil, fmt.Errorf("storage: %q is a placeholder; object storage was not configured when it was recorded", rawURL)
	case strings.HasPrefix(rawURL, "file://"):
		return os.Open(strings.TrimPrefix(rawURL, "file://"))
	case l.publicBaseURL != "" && strings.HasPrefix(rawURL, l.publicBaseURL+"/"):
		key := cleanKey(strings.TrimPrefix(rawURL, l.publicBaseURL+"/"))
		return os.Open(filepath.Join(l.dir, filepath.FromSlash(key)))
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		return l.fetch(ctx, rawURL)
	default:
		return nil, fmt.Errorf("storage: unsupported url %q", rawURL)
	}
}

func (l *Local) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: build fetch request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, fmt.Errorf("storage: fetch %s: http %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

func (l *Local) urlForKey(key string) string {
	if l.publicBaseURL != "" {
		return l.publicBaseURL + "/" + key
	}
	return "file://" + filepath.Join(l.dir, filepath.FromSlash(key))
}

// Placeholder is the backend used when no storage directory is configured.
// Stores succeed but record placeholder URLs with no backing bytes.
type Placeholder struct{}

// Configured always reports false.
func (Placeholder) Configured() bool { return false }

// Store records a placeholder URL without persisting anything.
func (Placeholder) Store(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	key = cleanKey(key)
	if key == "" {
		return "", errors.New("storage: key required")
	}
	// Drain so callers can treat all backends alike.
	if r != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	return PlaceholderPrefix + key, nil
}

// ResolveURL passes URLs through unchanged.
func (Placeholder) ResolveURL(url string, _ time.Duration) (string, error) {
	return url, nil
}

// Open always fails; placeholder URLs have no content.
func (Placeholder) Open(_ context.Context, rawURL string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("storage: %q has no backing object; configure a storage directory", rawURL)
}

// NewBackend selects a backend for the configured storage directory.
func NewBackend(dir, publicBaseURL string) Backend {
	if strings.TrimSpace(dir) == "" {
		return Placeholder{}
	}
	return NewLocal(dir, publicBaseURL)
}

func cleanKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "/" || strings.HasPrefix(cleaned, "..") {
		return ""
	}
	return cleaned
}
