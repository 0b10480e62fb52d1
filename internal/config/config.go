package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Queue contains durable job queue tuning.
type Queue struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	MaxAttempts        int `toml:"max_attempts"`
	RetryBackoff       int `toml:"retry_backoff"`
	RetryBackoffCap    int `toml:"retry_backoff_cap"`
}

// Workers contains per-lane goroutine counts.
type Workers struct {
	Pipeline int `toml:"pipeline"`
	Publish  int `toml:"publish"`
}

// Pipeline contains episode production settings.
type Pipeline struct {
	SceneMode     bool `toml:"scene_mode"`
	ScenesMin     int  `toml:"scenes_min"`
	ScenesMax     int  `toml:"scenes_max"`
	VideoWidth    int  `toml:"video_width"`
	VideoHeight   int  `toml:"video_height"`
	FrameRate     int  `toml:"frame_rate"`
	LeadTimeHours int  `toml:"lead_time_hours"`
	KeepWorkDirs  bool `toml:"keep_work_dirs"`
}

// OpenAI contains connection settings for the script, speech, and image
// providers. All three share one API surface.
type OpenAI struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	ChatModel       string `toml:"chat_model"`
	TTSModel        string `toml:"tts_model"`
	ImageModel      string `toml:"image_model"`
	ImageSize       string `toml:"image_size"`
	ImageGeneration bool   `toml:"image_generation"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Storage contains media object storage settings. An empty public base URL
// puts the backend in placeholder mode: uploads land on disk but resolve to
// non-fetchable URLs, and publishing refuses to run.
type Storage struct {
	Dir           string `toml:"dir"`
	PublicBaseURL string `toml:"public_base_url"`
}

// TikTok contains the Content Posting API settings.
type TikTok struct {
	ClientKey string `toml:"client_key"`
	BaseURL   string `toml:"base_url"`
}

// Instagram contains Graph API settings for Reels publishing.
type Instagram struct {
	GraphVersion string `toml:"graph_version"`
	BaseURL      string `toml:"base_url"`
	PollAttempts int    `toml:"poll_attempts"`
	PollInterval int    `toml:"poll_interval"`
}

// YouTube contains Data API upload settings.
type YouTube struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	CategoryID    string `toml:"category_id"`
	PrivacyStatus string `toml:"privacy_status"`
}

// Facebook contains Graph API settings for page video uploads.
type Facebook struct {
	GraphVersion string `toml:"graph_version"`
	BaseURL      string `toml:"base_url"`
}

// Platforms groups per-platform publishing settings plus the shared token
// encryption key for stored account credentials.
type Platforms struct {
	TokenKey       string    `toml:"token_key"`
	RequestTimeout int       `toml:"request_timeout"`
	TikTok         TikTok    `toml:"tiktok"`
	Instagram      Instagram `toml:"instagram"`
	YouTube        YouTube   `toml:"youtube"`
	Facebook       Facebook  `toml:"facebook"`
}

// Scheduler contains the daemon-side cron settings for the daily episode
// top-up sweep.
type Scheduler struct {
	Enabled        bool   `toml:"enabled"`
	TopUpCron      string `toml:"topup_cron"`
	TopUpHorizon   int    `toml:"topup_horizon"`
	LaunchEpisodes int    `toml:"launch_episodes"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	EpisodeReady       bool   `toml:"episode_ready"`
	EpisodePosted      bool   `toml:"episode_posted"`
	TopUp              bool   `toml:"topup"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Tools contains overrides for external binary paths.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Config encapsulates all configuration values for Showrunner.
//
// Configuration sections by subsystem:
//   - Paths: data/work/log directories and API bind address
//   - Queue: job polling, heartbeats, retry backoff
//   - Workers: per-lane worker counts
//   - Pipeline: scene mode, scene bounds, render geometry, dispatch lead
//   - OpenAI: script, speech, and image provider connection settings
//   - Storage: media object storage directory and public base URL
//   - Platforms: publishing credentials and per-platform API settings
//   - Scheduler: daily top-up cron
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
//   - Tools: ffmpeg/ffprobe binary overrides
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Workers       Workers       `toml:"workers"`
	Pipeline      Pipeline      `toml:"pipeline"`
	OpenAI        OpenAI        `toml:"openai"`
	Storage       Storage       `toml:"storage"`
	Platforms     Platforms     `toml:"platforms"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Tools         Tools         `toml:"tools"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/showrunner/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. An optional .env file
// in the working directory is applied before environment fallbacks resolve.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: unknown keys:\n%s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/showrunner/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("showrunner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The storage directory is created on a best-effort basis so the daemon can
// run when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Storage.Dir) != "" {
		_ = os.MkdirAll(c.Storage.Dir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "showrunner.db")
}

// FFmpegBinary returns the ffmpeg executable used for rendering.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Tools.FFmpeg); v != "" {
		return v
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for duration probes.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.Tools.FFprobe); v != "" {
		return v
	}
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
