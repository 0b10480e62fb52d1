package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/textutil"
)

// instagramCaptionLimit is the Graph API cap on Reels captions.
const instagramCaptionLimit = 2200

// Instagram publishes Reels through the Graph API three-step flow: create a
// media container pointing at the video URL, poll until server-side
// processing finishes, then publish the container.
type Instagram struct {
	cfg    config.Instagram
	client *http.Client
	// sleep is swapped in tests to keep container polling instant.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInstagram constructs the Instagram adapter.
func NewInstagram(cfg config.Instagram, client *http.Client) *Instagram {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Instagram{cfg: cfg, client: client, sleep: sleepContext}
}

// Name returns the platform key accounts are stored under.
func (i *Instagram) Name() string { return "instagram" }

type instagramContainerRequest struct {
	MediaType string `json:"media_type"`
	VideoURL  string `json:"video_url"`
	Caption   string `json:"caption"`
}

type instagramStatusResponse struct {
	StatusCode string `json:"status_code"`
}

// Publish creates, polls, and publishes a Reels container.
func (i *Instagram) Publish(ctx context.Context, req Request) (Result, error) {
	containerID, err := i.createContainer(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if err := i.awaitContainer(ctx, containerID, req.AccessToken); err != nil {
		return Result{}, err
	}
	return i.publishContainer(ctx, containerID, req.AccessToken)
}

func (i *Instagram) createContainer(ctx context.Context, req Request) (string, error) {
	endpoint, err := i.endpoint(req.AccessToken, nil, "me", "media")
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(instagramContainerRequest{
		MediaType: "VIDEO",
		VideoURL:  req.VideoURL,
		Caption:   textutil.TruncateRunes(req.Caption, instagramCaptionLimit),
	})
	if err != nil {
		return "", fmt.Errorf("instagram: encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("instagram: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("instagram: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", httpFailure("instagram", resp)
	}
	var decoded graphIDResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("instagram: decode response: %w", err)
	}
	if decoded.ID == "" {
		return "", errors.New("instagram: no container id in response")
	}
	return decoded.ID, nil
}

// awaitContainer polls the container until Instagram reports FINISHED. An
// exhausted poll budget falls through to the publish attempt; the publish
// call itself fails if the container still is not ready.
func (i *Instagram) awaitContainer(ctx context.Context, containerID, token string) error {
	attempts := i.cfg.PollAttempts
	if attempts <= 0 {
		attempts = 30
	}
	interval := time.Duration(i.cfg.PollInterval) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	endpoint, err := i.endpoint(token, url.Values{"fields": {"status_code"}}, containerID)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < attempts; attempt++ {
		status, err := i.containerStatus(ctx, endpoint)
		if err != nil {
			return err
		}
		switch status {
		case "FINISHED":
			return nil
		case "ERROR":
			return errors.New("instagram: container processing failed")
		}
		if err := i.sleep(ctx, interval); err != nil {
			return fmt.Errorf("instagram: %w", err)
		}
	}
	return nil
}

func (i *Instagram) containerStatus(ctx context.Context, endpoint string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("instagram: new request: %w", err)
	}
	resp, err := i.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("instagram: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", httpFailure("instagram", resp)
	}
	var decoded instagramStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("instagram: decode response: %w", err)
	}
	return decoded.StatusCode, nil
}

func (i *Instagram) publishContainer(ctx context.Context, containerID, token string) (Result, error) {
	endpoint, err := i.endpoint(token, url.Values{"creation_id": {containerID}}, "me", "media_publish")
	if err != nil {
		return Result{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("instagram: new request: %w", err)
	}
	resp, err := i.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("instagram: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Result{}, httpFailure("instagram", resp)
	}
	var decoded graphIDResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("instagram: decode response: %w", err)
	}
	id := decoded.ID
	if id == "" {
		// The media id can lag the publish call; the container id still
		// identifies the post for later reconciliation.
		id = containerID
	}
	return Result{PlatformPostID: id}, nil
}

// endpoint builds a Graph URL with the access token and extra query values.
func (i *Instagram) endpoint(token string, extra url.Values, segments ...string) (string, error) {
	base, err := graphURL(i.cfg.BaseURL, i.cfg.GraphVersion, segments...)
	if err != nil {
		return "", fmt.Errorf("instagram: build url: %w", err)
	}
	query := url.Values{"access_token": {token}}
	for key, values := range extra {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	if strings.Contains(base, "?") {
		return base + "&" + query.Encode(), nil
	}
	return base + "?" + query.Encode(), nil
}
