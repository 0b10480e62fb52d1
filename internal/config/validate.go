package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOpenAI(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validatePlatforms(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOpenAI() error {
	if c.OpenAI.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/showrunner/config.toml"
		}
		return fmt.Errorf("openai.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'showrunner config init')", defaultPath)
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		return errors.New("openai.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.poll_interval":        c.Queue.PollInterval,
		"queue.error_retry_interval": c.Queue.ErrorRetryInterval,
		"queue.max_attempts":         c.Queue.MaxAttempts,
		"queue.retry_backoff":        c.Queue.RetryBackoff,
		"workers.pipeline":           c.Workers.Pipeline,
		"workers.publish":            c.Workers.Publish,
	}); err != nil {
		return err
	}
	if c.Queue.HeartbeatInterval <= 0 {
		return errors.New("queue.heartbeat_interval must be positive")
	}
	if c.Queue.HeartbeatTimeout <= 0 {
		return errors.New("queue.heartbeat_timeout must be positive")
	}
	if c.Queue.HeartbeatTimeout <= c.Queue.HeartbeatInterval {
		return errors.New("queue.heartbeat_timeout must be greater than queue.heartbeat_interval")
	}
	if c.Queue.RetryBackoffCap < c.Queue.RetryBackoff {
		return errors.New("queue.retry_backoff_cap must be >= queue.retry_backoff")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ScenesMin < 1 {
		return errors.New("pipeline.scenes_min must be >= 1")
	}
	if c.Pipeline.ScenesMax < c.Pipeline.ScenesMin {
		return errors.New("pipeline.scenes_max must be >= pipeline.scenes_min")
	}
	if err := ensurePositiveMap(map[string]int{
		"pipeline.video_width":     c.Pipeline.VideoWidth,
		"pipeline.video_height":    c.Pipeline.VideoHeight,
		"pipeline.frame_rate":      c.Pipeline.FrameRate,
		"pipeline.lead_time_hours": c.Pipeline.LeadTimeHours,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlatforms() error {
	if err := ensurePositiveMap(map[string]int{
		"platforms.request_timeout":         c.Platforms.RequestTimeout,
		"platforms.instagram.poll_attempts": c.Platforms.Instagram.PollAttempts,
		"platforms.instagram.poll_interval": c.Platforms.Instagram.PollInterval,
	}); err != nil {
		return err
	}
	if strings.TrimSpace(c.Platforms.TikTok.BaseURL) == "" {
		return errors.New("platforms.tiktok.base_url must be set")
	}
	if strings.TrimSpace(c.Platforms.Instagram.BaseURL) == "" {
		return errors.New("platforms.instagram.base_url must be set")
	}
	if strings.TrimSpace(c.Platforms.Facebook.BaseURL) == "" {
		return errors.New("platforms.facebook.base_url must be set")
	}
	switch c.Platforms.YouTube.PrivacyStatus {
	case "public", "private", "unlisted":
	default:
		return fmt.Errorf("platforms.youtube.privacy_status must be public, private, or unlisted (got %q)", c.Platforms.YouTube.PrivacyStatus)
	}
	if key := c.Platforms.TokenKey; key != "" && len(key) != 64 {
		return errors.New("platforms.token_key must be 64 hex characters (32 bytes)")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if !c.Scheduler.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Scheduler.TopUpCron) == "" {
		return errors.New("scheduler.topup_cron must be set when scheduler.enabled is true")
	}
	if c.Scheduler.TopUpHorizon < 1 {
		return errors.New("scheduler.topup_horizon must be >= 1")
	}
	if c.Scheduler.LaunchEpisodes < 1 {
		return errors.New("scheduler.launch_episodes must be >= 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
