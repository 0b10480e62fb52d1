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

	"showrunner/internal/config"
	"showrunner/internal/textutil"
)

// tikTokTitleLimit is the Content Posting API cap on inbox video titles.
const tikTokTitleLimit = 150

// TikTok publishes through the Content Posting API inbox flow: a single
// init call hands TikTok a URL to pull, and the clip lands in the user's
// inbox for final confirmation in the app.
type TikTok struct {
	cfg    config.TikTok
	client *http.Client
}

// NewTikTok constructs the TikTok adapter.
func NewTikTok(cfg config.TikTok, client *http.Client) *TikTok {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &TikTok{cfg: cfg, client: client}
}

// Name returns the platform key accounts are stored under.
func (t *TikTok) Name() string { return "tiktok" }

type tikTokInitRequest struct {
	PostInfo   tikTokPostInfo   `json:"post_info"`
	SourceInfo tikTokSourceInfo `json:"source_info"`
}

type tikTokPostInfo struct {
	Title          string `json:"title"`
	PrivacyLevel   string `json:"privacy_level"`
	DisableDuet    bool   `json:"disable_duet"`
	DisableComment bool   `json:"disable_comment"`
}

type tikTokSourceInfo struct {
	Source   string `json:"source"`
	VideoURL string `json:"video_url"`
}

type tikTokInitResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Publish starts a PULL_FROM_URL inbox upload.
func (t *TikTok) Publish(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(t.cfg.ClientKey) == "" {
		return Result{}, fmt.Errorf("tiktok: %w", ErrNotConfigured)
	}
	title := textutil.TruncateRunes(strings.TrimSpace(req.Caption), tikTokTitleLimit)
	if title == "" {
		title = "Video"
	}

	endpoint, err := url.JoinPath(t.cfg.BaseURL, "v2", "post", "publish", "inbox", "video", "init")
	if err != nil {
		return Result{}, fmt.Errorf("tiktok: build url: %w", err)
	}
	// The Content Posting API routes require the trailing slash.
	endpoint += "/"

	encoded, err := json.Marshal(tikTokInitRequest{
		PostInfo: tikTokPostInfo{
			Title:        title,
			PrivacyLevel: "PUBLIC_TO_EVERYONE",
		},
		SourceInfo: tikTokSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: req.VideoURL,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("tiktok: encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Result{}, fmt.Errorf("tiktok: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("tiktok: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Result{}, httpFailure("tiktok", resp)
	}

	var decoded tikTokInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("tiktok: decode response: %w", err)
	}
	if code := decoded.Error.Code; code != "" && code != "ok" {
		message := decoded.Error.Message
		if message == "" {
			message = "init call rejected"
		}
		return Result{}, fmt.Errorf("tiktok: %s", message)
	}
	if decoded.Data.PublishID == "" {
		return Result{}, errors.New("tiktok: no publish_id in response")
	}
	return Result{PlatformPostID: decoded.Data.PublishID}, nil
}
