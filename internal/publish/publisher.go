package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/notifications"
	"showrunner/internal/secrets"
	"showrunner/internal/services"
	"showrunner/internal/stage"
	"showrunner/internal/storage"
	"showrunner/internal/store"
)

const stageName = string(store.KindPublish)

// defaultRequestTimeout bounds a single platform API call when the config
// does not say otherwise.
const defaultRequestTimeout = 120 * time.Second

// resolveTTL is how long the resolved video URL must stay fetchable. Pull
// based platforms download the file on their own schedule, well after the
// API call returns.
const resolveTTL = 2 * time.Hour

// ErrNotConfigured marks a platform adapter that is missing its app-level
// credentials. The poster maps it to a configuration failure so the job
// parks instead of retrying against a platform that can never answer.
var ErrNotConfigured = errors.New("platform not configured")

// Request carries one upload to a platform adapter. VideoURL is always set;
// OpenVideo streams the raw bytes for platforms that take direct uploads
// instead of pulling a URL.
type Request struct {
	VideoURL    string
	Caption     string
	AccessToken string
	OpenVideo   func(ctx context.Context) (io.ReadCloser, error)
}

// Result reports the platform-side identifier of the created post.
type Result struct {
	PlatformPostID string
}

// Publisher delivers one video to a single account on one platform.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, req Request) (Result, error)
}

// Poster is the publish stage handler. It moves the post row to posting,
// drives the platform adapter for the post's account, and records the
// platform post id on success.
type Poster struct {
	store     *store.Store
	cfg       *config.Config
	logger    *slog.Logger
	backend   storage.Backend
	sealer    *secrets.Sealer
	notifier  notifications.Service
	platforms map[string]Publisher
}

// New constructs the publish stage handler with the built-in adapters.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Poster {
	timeout := defaultRequestTimeout
	if cfg.Platforms.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Platforms.RequestTimeout) * time.Second
	}
	client := &http.Client{Timeout: timeout}
	sealer, err := secrets.NewSealer(cfg.Platforms.TokenKey)
	if err != nil {
		// No token key configured. Execute refuses with a configuration
		// error; HealthCheck surfaces the same detail.
		sealer = nil
	}
	backend := storage.NewBackend(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	adapters := []Publisher{
		NewTikTok(cfg.Platforms.TikTok, client),
		NewInstagram(cfg.Platforms.Instagram, client),
		NewYouTube(cfg.Platforms.YouTube),
		NewFacebook(cfg.Platforms.Facebook, client),
	}
	platforms := make(map[string]Publisher, len(adapters))
	for _, adapter := range adapters {
		platforms[adapter.Name()] = adapter
	}
	return NewWithDependencies(cfg, st, logger, backend, sealer, nil, platforms)
}

// NewWithDependencies allows injecting the backend, sealer, notifier, and
// adapter set (used in tests and by the daemon wiring).
func NewWithDependencies(cfg *config.Config, st *store.Store, logger *slog.Logger, backend storage.Backend, sealer *secrets.Sealer, notifier notifications.Service, platforms map[string]Publisher) *Poster {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "publish"))
	}
	return &Poster{store: st, cfg: cfg, logger: stageLogger, backend: backend, sealer: sealer, notifier: notifier, platforms: platforms}
}

// Prepare flips the post to posting. Pending and failed posts may enter,
// and posting itself is allowed back in so a lease takeover can resume;
// posted means a duplicate job raced an earlier success.
func (p *Poster) Prepare(ctx context.Context, job *store.Job) error {
	logger := logging.WithContext(ctx, p.logger)

	post, err := stage.PostForJob(ctx, p.store, job)
	if err != nil {
		return err
	}
	switch post.Status {
	case store.PostPending, store.PostPosting, store.PostFailed:
	default:
		return services.Wrap(
			services.ErrConflict, stageName, "check preconditions",
			fmt.Sprintf("Post cannot start publishing from status %q", post.Status), nil)
	}

	post.Status = store.PostPosting
	post.ErrorInfo = nil
	if err := p.updatePost(ctx, post, "mark posting"); err != nil {
		return err
	}

	logger.Info("publish starting",
		logging.String(logging.FieldEpisodeID, post.EpisodeID),
		logging.String(logging.FieldPostID, post.ID),
	)
	return nil
}

// Execute resolves the rendered video, opens the account token, and drives
// the platform adapter. Platform API failures stay retryable; everything
// the queue cannot fix by waiting parks the job immediately.
func (p *Poster) Execute(ctx context.Context, job *store.Job) error {
	logger := logging.WithContext(ctx, p.logger)

	post, err := stage.PostForJob(ctx, p.store, job)
	if err != nil {
		return err
	}
	episode, err := stage.EpisodeForJob(ctx, p.store, job)
	if err != nil {
		return err
	}
	series, err := stage.SeriesForEpisode(ctx, p.store, episode)
	if err != nil {
		return err
	}
	account, err := p.loadAccount(ctx, post.AccountID)
	if err != nil {
		return err
	}
	publisher, ok := p.platforms[account.Platform]
	if !ok {
		return services.Wrap(
			services.ErrValidation, stageName, "select platform",
			fmt.Sprintf("Unsupported platform: %s", account.Platform), nil)
	}
	logger = logger.With(logging.String(logging.FieldPlatform, account.Platform))

	token, err := p.openToken(account)
	if err != nil {
		return err
	}
	asset, videoURL, err := p.resolveVideo(ctx, episode)
	if err != nil {
		return err
	}

	result, err := publisher.Publish(ctx, Request{
		VideoURL:    videoURL,
		Caption:     p.captionFor(ctx, episode),
		AccessToken: token,
		OpenVideo: func(ctx context.Context) (io.ReadCloser, error) {
			return p.backend.Open(ctx, asset.URL)
		},
	})
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return services.Wrap(
				services.ErrConfiguration, stageName, "deliver upload",
				fmt.Sprintf("%s is not configured; add the platform credentials to the config", publisher.Name()), err)
		}
		return services.Wrap(
			services.ErrTransient, stageName, "deliver upload",
			fmt.Sprintf("Publishing to %s failed", publisher.Name()), err)
	}

	now := time.Now().UTC()
	post.Status = store.PostPosted
	post.PlatformPostID = result.PlatformPostID
	post.PostedAt = &now
	post.ErrorInfo = nil
	if err := p.updatePost(ctx, post, "mark posted"); err != nil {
		return err
	}

	logger.Info("publish completed",
		logging.String(logging.FieldPostID, post.ID),
		logging.String("platform_post_id", result.PlatformPostID),
	)
	p.notify(ctx, notifications.EventPostPublished, notifications.Payload{
		"platform":   account.Platform,
		"seriesName": series.Name,
		"sequence":   episode.Sequence,
	})
	return nil
}

// HealthCheck reports whether publishing has the pieces it needs. Platform
// app credentials are per-adapter concerns checked at publish time; here we
// check the shared ones every post depends on.
func (p *Poster) HealthCheck(context.Context) stage.Health {
	if p.cfg == nil {
		return stage.Unhealthy(stageName, "configuration unavailable")
	}
	if p.sealer == nil {
		return stage.Unhealthy(stageName, "platform token key not configured")
	}
	if p.backend == nil || !p.backend.Configured() {
		return stage.Unhealthy(stageName, "storage backend not configured; platforms cannot fetch videos")
	}
	return stage.Healthy(stageName)
}

func (p *Poster) loadAccount(ctx context.Context, accountID string) (*store.Account, error) {
	account, err := p.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, services.Wrap(
			services.ErrTransient, stageName, "load account",
			"Failed to read social account from the database", err)
	}
	if account == nil {
		return nil, services.Wrap(
			services.ErrNotFound, stageName, "load account",
			fmt.Sprintf("Social account %s not found", accountID), nil)
	}
	return account, nil
}

// openToken unseals the stored access token. Connect-time sealing and
// publish-time opening share the config token key, so a missing key or a
// rotated key both land here as configuration failures.
func (p *Poster) openToken(account *store.Account) (string, error) {
	if p.sealer == nil {
		return "", services.Wrap(
			services.ErrConfiguration, stageName, "open token",
			"Platform token key not configured; set platforms.token_key", nil)
	}
	token, err := p.sealer.Open(account.AccessToken)
	if err != nil || strings.TrimSpace(token) == "" {
		return "", services.Wrap(
			services.ErrConfiguration, stageName, "open token",
			fmt.Sprintf("Missing or invalid access token for %s account %s", account.Platform, account.ID), err)
	}
	return token, nil
}

// resolveVideo loads the episode's rendered video asset and produces a URL
// a platform can fetch. Placeholder URLs mean storage was never configured;
// retrying will not conjure a public object store.
func (p *Poster) resolveVideo(ctx context.Context, episode *store.Episode) (*store.Asset, string, error) {
	if strings.TrimSpace(episode.VideoAssetID) == "" {
		return nil, "", services.Wrap(
			services.ErrValidation, stageName, "resolve video",
			"Episode has no video; run render first", nil)
	}
	asset, err := p.store.GetAsset(ctx, episode.VideoAssetID)
	if err != nil {
		return nil, "", services.Wrap(
			services.ErrTransient, stageName, "resolve video",
			"Failed to read video asset from the database", err)
	}
	if asset == nil {
		return nil, "", services.Wrap(
			services.ErrNotFound, stageName, "resolve video",
			fmt.Sprintf("Video asset %s not found", episode.VideoAssetID), nil)
	}
	resolved, err := p.backend.ResolveURL(asset.URL, resolveTTL)
	if err != nil {
		return nil, "", services.Wrap(
			services.ErrTransient, stageName, "resolve video",
			"Could not resolve a fetchable video URL", err)
	}
	if strings.TrimSpace(resolved) == "" || storage.IsPlaceholderURL(resolved) {
		return nil, "", services.Wrap(
			services.ErrConfiguration, stageName, "resolve video",
			"Video URL not available (storage not configured or placeholder)", nil)
	}
	return asset, resolved, nil
}

// captionFor returns the episode's narration text for use as the post
// caption. Caption problems never block a publish; a missing script just
// means an empty caption and the adapters fall back to their defaults.
func (p *Poster) captionFor(ctx context.Context, episode *store.Episode) string {
	if strings.TrimSpace(episode.ScriptID) == "" {
		return ""
	}
	script, err := p.store.GetScript(ctx, episode.ScriptID)
	if err != nil || script == nil {
		return ""
	}
	return strings.TrimSpace(script.Text)
}

func (p *Poster) updatePost(ctx context.Context, post *store.Post, operation string) error {
	if err := p.store.UpdatePost(ctx, post); err != nil {
		return services.Wrap(
			services.ErrTransient, stageName, operation,
			"Failed to persist post update", err)
	}
	return nil
}

func (p *Poster) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Publish(ctx, event, payload); err != nil {
		logging.WithContext(ctx, p.logger).Warn("notification publish failed",
			logging.String(logging.FieldEventType, string(event)),
			logging.Error(err),
		)
	}
}
