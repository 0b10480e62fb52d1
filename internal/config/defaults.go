package config

const (
	defaultDataDir              = "~/.local/share/showrunner"
	defaultWorkDir              = "~/.local/share/showrunner/work"
	defaultLogDir               = "~/.local/share/showrunner/logs"
	defaultStorageDir           = "~/.local/share/showrunner/media"
	defaultAPIBind              = "127.0.0.1:7590"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 60
	defaultQueuePollInterval    = 5
	defaultErrorRetryInterval   = 10
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
	defaultMaxAttempts          = 5
	defaultRetryBackoff         = 30
	defaultRetryBackoffCap      = 3600
	defaultPipelineWorkers      = 2
	defaultPublishWorkers       = 2
	defaultScenesMin            = 5
	defaultScenesMax            = 12
	defaultVideoWidth           = 1080
	defaultVideoHeight          = 1920
	defaultFrameRate            = 30
	defaultLeadTimeHours        = 6
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultChatModel            = "gpt-4o-mini"
	defaultTTSModel             = "tts-1"
	defaultImageModel           = "dall-e-3"
	defaultImageSize            = "1024x1792"
	defaultOpenAITimeout        = 120
	defaultPlatformTimeout      = 120
	defaultTikTokBaseURL        = "https://open.tiktokapis.com"
	defaultGraphVersion         = "v21.0"
	defaultGraphBaseURL         = "https://graph.facebook.com"
	defaultInstagramPollCount   = 30
	defaultInstagramPollSeconds = 2
	defaultYouTubeCategoryID    = "22"
	defaultYouTubePrivacy       = "public"
	defaultTopUpCron            = "15 0 * * *"
	defaultTopUpHorizon         = 14
	defaultLaunchEpisodes       = 7
	defaultNotifyRequestTimeout = 10
	defaultNotifyDedupSeconds   = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			PollInterval:       defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			MaxAttempts:        defaultMaxAttempts,
			RetryBackoff:       defaultRetryBackoff,
			RetryBackoffCap:    defaultRetryBackoffCap,
		},
		Workers: Workers{
			Pipeline: defaultPipelineWorkers,
			Publish:  defaultPublishWorkers,
		},
		Pipeline: Pipeline{
			SceneMode:     true,
			ScenesMin:     defaultScenesMin,
			ScenesMax:     defaultScenesMax,
			VideoWidth:    defaultVideoWidth,
			VideoHeight:   defaultVideoHeight,
			FrameRate:     defaultFrameRate,
			LeadTimeHours: defaultLeadTimeHours,
		},
		OpenAI: OpenAI{
			BaseURL:         defaultOpenAIBaseURL,
			ChatModel:       defaultChatModel,
			TTSModel:        defaultTTSModel,
			ImageModel:      defaultImageModel,
			ImageSize:       defaultImageSize,
			ImageGeneration: true,
			TimeoutSeconds:  defaultOpenAITimeout,
		},
		Storage: Storage{
			Dir: defaultStorageDir,
		},
		Platforms: Platforms{
			RequestTimeout: defaultPlatformTimeout,
			TikTok: TikTok{
				BaseURL: defaultTikTokBaseURL,
			},
			Instagram: Instagram{
				GraphVersion: defaultGraphVersion,
				BaseURL:      defaultGraphBaseURL,
				PollAttempts: defaultInstagramPollCount,
				PollInterval: defaultInstagramPollSeconds,
			},
			YouTube: YouTube{
				CategoryID:    defaultYouTubeCategoryID,
				PrivacyStatus: defaultYouTubePrivacy,
			},
			Facebook: Facebook{
				GraphVersion: defaultGraphVersion,
				BaseURL:      defaultGraphBaseURL,
			},
		},
		Scheduler: Scheduler{
			Enabled:        true,
			TopUpCron:      defaultTopUpCron,
			TopUpHorizon:   defaultTopUpHorizon,
			LaunchEpisodes: defaultLaunchEpisodes,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			EpisodeReady:       true,
			EpisodePosted:      true,
			TopUp:              true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
