package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	defaultModel       = "dall-e-3"
	defaultSize        = "1024x1792"
	maxPromptRunes     = 4000
)

// Config captures the runtime settings required to generate images.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Size           string
	Enabled        bool
	TimeoutSeconds int
}

// Client wraps the OpenAI image generation API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an image client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Size:           strings.TrimSpace(cfg.Size),
			Enabled:        cfg.Enabled,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.openai.com/v1"
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.cfg.Size == "" {
		client.cfg.Size = defaultSize
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Enabled reports whether scene illustration should run at all. Episodes
// render on plain backgrounds when it is off.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Enabled && c.cfg.APIKey != ""
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
	Quality        string `json:"quality"`
	Style          string `json:"style,omitempty"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate renders a single image for the prompt and returns its bytes.
// Prompts beyond the API limit are truncated.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, errors.New("image generate: api key required")
	}
	prompt = truncateRunes(prompt, maxPromptRunes)
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("image generate: prompt required")
	}

	payload := imageRequest{
		Model:          c.cfg.Model,
		Prompt:         prompt,
		Size:           c.cfg.Size,
		N:              1,
		ResponseFormat: "b64_json",
		Quality:        "standard",
	}
	// The natural style knob only exists on dall-e-3; other models reject it.
	if c.cfg.Model == "dall-e-3" {
		payload.Style = "natural"
	}

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "images", "generations")
	if err != nil {
		return nil, fmt.Errorf("image generate: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("image generate: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("image generate: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generate: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("image generate: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("image generate: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded imageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("image generate: decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("image generate: api error: %s %s", decoded.Error.Code, strings.TrimSpace(decoded.Error.Message))
	}
	if len(decoded.Data) == 0 || strings.TrimSpace(decoded.Data[0].B64JSON) == "" {
		return nil, errors.New("image generate: empty image payload")
	}
	image, err := base64.StdEncoding.DecodeString(decoded.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("image generate: decode image: %w", err)
	}
	return image, nil
}

// GenerateScene renders the illustration for one scene. When the first
// attempt is rejected by the provider's safety system it retries once with a
// neutral abstract prompt so the episode never falls back to a black frame.
func (c *Client) GenerateScene(ctx context.Context, visualDescription string) ([]byte, error) {
	image, err := c.Generate(ctx, ScenePrompt(visualDescription))
	if err == nil {
		return image, nil
	}
	if !IsContentPolicyRejection(err) {
		return nil, err
	}
	fallback, fallbackErr := c.Generate(ctx, SafeScenePrompt)
	if fallbackErr != nil {
		return nil, fmt.Errorf("safe fallback after policy rejection: %w", fallbackErr)
	}
	return fallback, nil
}

// GenerateCover renders the single background image used by legacy
// single-clip episodes.
func (c *Client) GenerateCover(ctx context.Context, scriptText string) ([]byte, error) {
	return c.Generate(ctx, CoverPrompt(scriptText))
}

// IsContentPolicyRejection reports whether an error is the provider refusing
// a prompt rather than a transport or server failure.
func IsContentPolicyRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "content_policy_violation") || strings.Contains(msg, "safety system")
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
