package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"showrunner/internal/config"
)

const userAgent = "Showrunner-Go/0.1.0"

// Event identifies a pipeline milestone worth telling a human about.
type Event string

const (
	// EventEpisodeReady fires when an episode's video is assembled and
	// waiting for review.
	EventEpisodeReady Event = "episode_ready"
	// EventEpisodeFailed fires when a pipeline stage parks an episode.
	EventEpisodeFailed Event = "episode_failed"
	// EventPostPublished fires per platform post that went live.
	EventPostPublished Event = "post_published"
	// EventPostFailed fires per platform post that exhausted its attempts.
	EventPostFailed Event = "post_failed"
	// EventTopUpCompleted fires after the scheduler extends series horizons.
	EventTopUpCompleted Event = "topup_completed"
	// EventTest is the manual connectivity check.
	EventTest Event = "test"
)

// Payload carries the event's display fields. Values are formatted with
// fmt.Sprint, so plain strings and numbers both work.
type Payload map[string]any

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		settings:    cfg.Notifications,
		dedupWindow: time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		lastSent:    make(map[string]time.Time),
		now:         time.Now,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	settings    config.Notifications
	dedupWindow time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// Publish formats and delivers the event. Events disabled in configuration
// and repeats inside the dedup window are dropped silently.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	data, ok := render(event, payload)
	if !ok {
		return nil
	}
	if n.suppressed(event, data.body) {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventEpisodeReady:
		return n.settings.EpisodeReady
	case EventPostPublished:
		return n.settings.EpisodePosted
	case EventTopUpCompleted:
		return n.settings.TopUp
	case EventEpisodeFailed, EventPostFailed:
		return n.settings.Errors
	default:
		return true
	}
}

// suppressed records the delivery and reports whether an identical message
// already went out inside the dedup window. Retried jobs re-fail with the
// same message; one alert per window is enough.
func (n *ntfyService) suppressed(event Event, body string) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	key := string(event) + "\x00" + body
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	n.lastSent[key] = now
	return false
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventEpisodeReady:
		body := fmt.Sprintf("🎬 Ready for review: %s", episodeLabel(payload))
		if preview := field(payload, "previewURL"); preview != "" {
			body = fmt.Sprintf("%s\nPreview: %s", body, preview)
		}
		return message{
			title: "Showrunner - Episode Ready",
			body:  body,
			tags:  []string{"showrunner", "episode", "ready"},
		}, true
	case EventEpisodeFailed:
		step := field(payload, "step")
		if step == "" {
			step = "pipeline"
		}
		detail := field(payload, "message")
		if detail == "" {
			detail = "unknown error"
		}
		return message{
			title:    "Showrunner - Episode Failed",
			body:     fmt.Sprintf("❌ %s failed at %s: %s", episodeLabel(payload), step, detail),
			tags:     []string{"showrunner", "error", "alert"},
			priority: "high",
		}, true
	case EventPostPublished:
		platform := field(payload, "platform")
		if platform == "" {
			platform = "platform"
		}
		return message{
			title: "Showrunner - Posted",
			body:  fmt.Sprintf("📣 Posted to %s: %s", platform, episodeLabel(payload)),
			tags:  []string{"showrunner", "post", "published"},
		}, true
	case EventPostFailed:
		platform := field(payload, "platform")
		if platform == "" {
			platform = "platform"
		}
		detail := field(payload, "error")
		if detail == "" {
			detail = "unknown error"
		}
		return message{
			title:    "Showrunner - Post Failed",
			body:     fmt.Sprintf("❌ %s publish failed for %s: %s", platform, episodeLabel(payload), detail),
			tags:     []string{"showrunner", "post", "failed"},
			priority: "high",
		}, true
	case EventTopUpCompleted:
		return message{
			title: "Showrunner - Schedule Topped Up",
			body: fmt.Sprintf("🗓️ Scheduled %s new episodes across %s series",
				fieldOr(payload, "episodeCount", "0"), fieldOr(payload, "seriesCount", "0")),
			tags: []string{"showrunner", "schedule", "topup"},
		}, true
	case EventTest:
		return message{
			title:    "Showrunner - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"showrunner", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

// episodeLabel renders "Series Name #3", degrading to whichever parts the
// payload carries.
func episodeLabel(payload Payload) string {
	name := field(payload, "seriesName")
	sequence := field(payload, "sequence")
	switch {
	case name != "" && sequence != "":
		return fmt.Sprintf("%s #%s", name, sequence)
	case name != "":
		return name
	case sequence != "":
		return "episode #" + sequence
	default:
		return "episode"
	}
}

func field(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func fieldOr(payload Payload, key, fallback string) string {
	if v := field(payload, key); v != "" {
		return v
	}
	return fallback
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
