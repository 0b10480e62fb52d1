package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"showrunner/internal/config"
	"showrunner/internal/textutil"
)

// facebookDescriptionLimit is the Graph API cap on video descriptions.
const facebookDescriptionLimit = 5000

// Facebook publishes page videos through the Graph API file_url upload:
// one form post hands Facebook a URL to pull.
type Facebook struct {
	cfg    config.Facebook
	client *http.Client
}

// NewFacebook constructs the Facebook adapter.
func NewFacebook(cfg config.Facebook, client *http.Client) *Facebook {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Facebook{cfg: cfg, client: client}
}

// Name returns the platform key accounts are stored under.
func (f *Facebook) Name() string { return "facebook" }

// Publish posts the video URL to the page's video edge.
func (f *Facebook) Publish(ctx context.Context, req Request) (Result, error) {
	endpoint, err := graphURL(f.cfg.BaseURL, f.cfg.GraphVersion, "me", "videos")
	if err != nil {
		return Result{}, fmt.Errorf("facebook: build url: %w", err)
	}
	form := url.Values{
		"access_token": {req.AccessToken},
		"file_url":     {req.VideoURL},
		"description":  {textutil.TruncateRunes(req.Caption, facebookDescriptionLimit)},
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("facebook: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("facebook: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Result{}, httpFailure("facebook", resp)
	}

	var decoded graphIDResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("facebook: decode response: %w", err)
	}
	id := decoded.ID
	if id == "" {
		id = "unknown"
	}
	return Result{PlatformPostID: id}, nil
}
