package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"showrunner/internal/config"
	"showrunner/internal/textutil"
)

// Data API limits on video metadata.
const (
	youTubeTitleLimit       = 100
	youTubeDescriptionLimit = 5000
)

// YouTube uploads Shorts through the Data API v3. Unlike the pull-based
// platforms it streams the video bytes itself, so it reads from the
// request's OpenVideo source rather than handing over a URL.
type YouTube struct {
	cfg config.YouTube
	// endpoint overrides the API base URL in tests.
	endpoint string
}

// NewYouTube constructs the YouTube adapter.
func NewYouTube(cfg config.YouTube) *YouTube {
	return &YouTube{cfg: cfg}
}

// Name returns the platform key accounts are stored under.
func (y *YouTube) Name() string { return "youtube" }

// Publish uploads the video with snippet metadata built from the caption.
func (y *YouTube) Publish(ctx context.Context, req Request) (Result, error) {
	if req.OpenVideo == nil {
		return Result{}, errors.New("youtube: no video source")
	}
	video, err := req.OpenVideo(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("youtube: open video: %w", err)
	}
	defer video.Close()

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: req.AccessToken})
	opts := []option.ClientOption{option.WithTokenSource(source)}
	if y.endpoint != "" {
		opts = append(opts, option.WithEndpoint(y.endpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("youtube: build service: %w", err)
	}

	caption := strings.TrimSpace(req.Caption)
	title := textutil.TruncateRunes(caption, youTubeTitleLimit)
	if title == "" {
		title = "Video"
	}
	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: textutil.TruncateRunes(caption, youTubeDescriptionLimit),
			CategoryId:  y.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: y.cfg.PrivacyStatus},
	}
	inserted, err := svc.Videos.Insert([]string{"snippet", "status"}, upload).
		Media(video).
		Context(ctx).
		Do()
	if err != nil {
		return Result{}, fmt.Errorf("youtube: upload: %w", err)
	}
	if inserted.Id == "" {
		return Result{}, errors.New("youtube: upload response missing id")
	}
	return Result{PlatformPostID: inserted.Id}, nil
}
