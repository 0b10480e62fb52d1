package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeWorkers()
	c.normalizePipeline()
	c.normalizeOpenAI()
	c.normalizePlatforms()
	c.normalizeScheduler()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	var err error
	if strings.TrimSpace(c.Storage.Dir) == "" {
		c.Storage.Dir = defaultStorageDir
	}
	if c.Storage.Dir, err = expandPath(c.Storage.Dir); err != nil {
		return fmt.Errorf("storage.dir: %w", err)
	}
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	return nil
}

func (c *Config) normalizeQueue() {
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = defaultQueuePollInterval
	}
	if c.Queue.ErrorRetryInterval <= 0 {
		c.Queue.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Queue.HeartbeatInterval <= 0 {
		c.Queue.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Queue.HeartbeatTimeout <= 0 {
		c.Queue.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = defaultMaxAttempts
	}
	if c.Queue.RetryBackoff <= 0 {
		c.Queue.RetryBackoff = defaultRetryBackoff
	}
	if c.Queue.RetryBackoffCap <= 0 {
		c.Queue.RetryBackoffCap = defaultRetryBackoffCap
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.Pipeline <= 0 {
		c.Workers.Pipeline = defaultPipelineWorkers
	}
	if c.Workers.Publish <= 0 {
		c.Workers.Publish = defaultPublishWorkers
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ScenesMin <= 0 {
		c.Pipeline.ScenesMin = defaultScenesMin
	}
	if c.Pipeline.ScenesMax <= 0 {
		c.Pipeline.ScenesMax = defaultScenesMax
	}
	if c.Pipeline.VideoWidth <= 0 {
		c.Pipeline.VideoWidth = defaultVideoWidth
	}
	if c.Pipeline.VideoHeight <= 0 {
		c.Pipeline.VideoHeight = defaultVideoHeight
	}
	if c.Pipeline.FrameRate <= 0 {
		c.Pipeline.FrameRate = defaultFrameRate
	}
	if c.Pipeline.LeadTimeHours <= 0 {
		c.Pipeline.LeadTimeHours = defaultLeadTimeHours
	}
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = envOverride(c.OpenAI.APIKey, "OPENAI_API_KEY")
	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
	c.OpenAI.ChatModel = strings.TrimSpace(c.OpenAI.ChatModel)
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = defaultChatModel
	}
	c.OpenAI.TTSModel = strings.TrimSpace(c.OpenAI.TTSModel)
	if c.OpenAI.TTSModel == "" {
		c.OpenAI.TTSModel = defaultTTSModel
	}
	c.OpenAI.ImageModel = strings.TrimSpace(c.OpenAI.ImageModel)
	if c.OpenAI.ImageModel == "" {
		c.OpenAI.ImageModel = defaultImageModel
	}
	c.OpenAI.ImageSize = strings.TrimSpace(c.OpenAI.ImageSize)
	if c.OpenAI.ImageSize == "" {
		c.OpenAI.ImageSize = defaultImageSize
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = defaultOpenAITimeout
	}
}

func (c *Config) normalizePlatforms() {
	c.Platforms.TokenKey = envOverride(c.Platforms.TokenKey, "SHOWRUNNER_TOKEN_KEY")
	if c.Platforms.RequestTimeout <= 0 {
		c.Platforms.RequestTimeout = defaultPlatformTimeout
	}

	c.Platforms.TikTok.ClientKey = envOverride(c.Platforms.TikTok.ClientKey, "TIKTOK_CLIENT_KEY")
	c.Platforms.TikTok.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platforms.TikTok.BaseURL), "/")
	if c.Platforms.TikTok.BaseURL == "" {
		c.Platforms.TikTok.BaseURL = defaultTikTokBaseURL
	}

	c.Platforms.Instagram.GraphVersion = strings.TrimSpace(c.Platforms.Instagram.GraphVersion)
	if c.Platforms.Instagram.GraphVersion == "" {
		c.Platforms.Instagram.GraphVersion = defaultGraphVersion
	}
	c.Platforms.Instagram.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platforms.Instagram.BaseURL), "/")
	if c.Platforms.Instagram.BaseURL == "" {
		c.Platforms.Instagram.BaseURL = defaultGraphBaseURL
	}
	if c.Platforms.Instagram.PollAttempts <= 0 {
		c.Platforms.Instagram.PollAttempts = defaultInstagramPollCount
	}
	if c.Platforms.Instagram.PollInterval <= 0 {
		c.Platforms.Instagram.PollInterval = defaultInstagramPollSeconds
	}

	c.Platforms.YouTube.ClientID = envOverride(c.Platforms.YouTube.ClientID, "YOUTUBE_CLIENT_ID")
	c.Platforms.YouTube.ClientSecret = envOverride(c.Platforms.YouTube.ClientSecret, "YOUTUBE_CLIENT_SECRET")
	c.Platforms.YouTube.CategoryID = strings.TrimSpace(c.Platforms.YouTube.CategoryID)
	if c.Platforms.YouTube.CategoryID == "" {
		c.Platforms.YouTube.CategoryID = defaultYouTubeCategoryID
	}
	c.Platforms.YouTube.PrivacyStatus = strings.ToLower(strings.TrimSpace(c.Platforms.YouTube.PrivacyStatus))
	if c.Platforms.YouTube.PrivacyStatus == "" {
		c.Platforms.YouTube.PrivacyStatus = defaultYouTubePrivacy
	}

	c.Platforms.Facebook.GraphVersion = strings.TrimSpace(c.Platforms.Facebook.GraphVersion)
	if c.Platforms.Facebook.GraphVersion == "" {
		c.Platforms.Facebook.GraphVersion = defaultGraphVersion
	}
	c.Platforms.Facebook.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platforms.Facebook.BaseURL), "/")
	if c.Platforms.Facebook.BaseURL == "" {
		c.Platforms.Facebook.BaseURL = defaultGraphBaseURL
	}
}

func (c *Config) normalizeScheduler() {
	c.Scheduler.TopUpCron = strings.TrimSpace(c.Scheduler.TopUpCron)
	if c.Scheduler.TopUpCron == "" {
		c.Scheduler.TopUpCron = defaultTopUpCron
	}
	if c.Scheduler.TopUpHorizon <= 0 {
		c.Scheduler.TopUpHorizon = defaultTopUpHorizon
	}
	if c.Scheduler.LaunchEpisodes <= 0 {
		c.Scheduler.LaunchEpisodes = defaultLaunchEpisodes
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = envOverride(c.Notifications.NtfyTopic, "SHOWRUNNER_NTFY_TOPIC")
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		c.Notifications.DedupWindowSeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console", "text":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// envOverride prefers a non-empty environment value over the file value so
// secrets can stay out of config files.
func envOverride(fileValue, envKey string) string {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(fileValue)
}
