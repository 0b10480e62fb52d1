package store

import (
	"strings"
	"time"
)

// SeriesStatus represents the lifecycle of a series.
type SeriesStatus string

const (
	SeriesDraft    SeriesStatus = "draft"
	SeriesActive   SeriesStatus = "active"
	SeriesPaused   SeriesStatus = "paused"
	SeriesArchived SeriesStatus = "archived"
)

// EpisodeStatus represents the lifecycle of an episode. The pipeline itself
// only ever writes scheduled, generating, ready_for_review, and failed;
// approved and posted exist for operator workflows layered on top.
type EpisodeStatus string

const (
	EpisodeScheduled      EpisodeStatus = "scheduled"
	EpisodeGenerating     EpisodeStatus = "generating"
	EpisodeReadyForReview EpisodeStatus = "ready_for_review"
	EpisodeApproved       EpisodeStatus = "approved"
	EpisodePosted         EpisodeStatus = "posted"
	EpisodeFailed         EpisodeStatus = "failed"
)

// PostStatus represents the lifecycle of a per-account publish attempt.
type PostStatus string

const (
	PostPending PostStatus = "pending"
	PostPosting PostStatus = "posting"
	PostPosted  PostStatus = "posted"
	PostFailed  PostStatus = "failed"
)

// AccountStatus represents the connection health of a social account.
type AccountStatus string

const (
	AccountConnected AccountStatus = "connected"
	AccountExpired   AccountStatus = "expired"
	AccountError     AccountStatus = "error"
	AccountLimited   AccountStatus = "limited"
)

// JobStatus represents the lifecycle of a queue job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobKind identifies which pipeline stage a queue job drives.
type JobKind string

const (
	KindScriptGeneration JobKind = "script_generation"
	KindMediaGeneration  JobKind = "media_generation"
	KindRender           JobKind = "render"
	KindPublish          JobKind = "publish"
)

// AssetType classifies stored media assets.
type AssetType string

const (
	AssetVideo       AssetType = "video"
	AssetAudio       AssetType = "audio"
	AssetImage       AssetType = "image"
	AssetMusic       AssetType = "music"
	AssetCaptionFile AssetType = "caption_file"
)

// Asset source values.
const (
	SourceGenerated   = "generated"
	SourceUploaded    = "uploaded"
	SourceExternalURL = "external_url"
)

var allEpisodeStatuses = []EpisodeStatus{
	EpisodeScheduled,
	EpisodeGenerating,
	EpisodeReadyForReview,
	EpisodeApproved,
	EpisodePosted,
	EpisodeFailed,
}

var episodeStatusSet = func() map[EpisodeStatus]struct{} {
	set := make(map[EpisodeStatus]struct{}, len(allEpisodeStatuses))
	for _, status := range allEpisodeStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var allJobKinds = []JobKind{
	KindScriptGeneration,
	KindMediaGeneration,
	KindRender,
	KindPublish,
}

var jobKindSet = func() map[JobKind]struct{} {
	set := make(map[JobKind]struct{}, len(allJobKinds))
	for _, kind := range allJobKinds {
		set[kind] = struct{}{}
	}
	return set
}()

var allJobStatuses = []JobStatus{
	JobPending,
	JobRunning,
	JobCompleted,
	JobFailed,
}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllEpisodeStatuses returns the ordered list of known episode statuses.
func AllEpisodeStatuses() []EpisodeStatus {
	cp := make([]EpisodeStatus, len(allEpisodeStatuses))
	copy(cp, allEpisodeStatuses)
	return cp
}

// ParseEpisodeStatus converts a string into a known EpisodeStatus.
func ParseEpisodeStatus(value string) (EpisodeStatus, bool) {
	normalized := EpisodeStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := episodeStatusSet[normalized]
	return normalized, ok
}

// ParseJobKind converts a string into a known JobKind.
func ParseJobKind(value string) (JobKind, bool) {
	normalized := JobKind(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobKindSet[normalized]
	return normalized, ok
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobStatusSet[normalized]
	return normalized, ok
}

// Series is a recurring show definition owned by a workspace. The nested
// preference payloads keep the JSON key casing used by API clients.
type Series struct {
	ID                string
	WorkspaceID       string
	Name              string
	ContentType       string
	CustomTopic       *CustomTopic
	ScriptPreferences *ScriptPreferences
	VoiceLanguage     *VoiceLanguage
	MusicSettings     *MusicSettings
	ArtStyle          *ArtStyle
	CaptionStyle      *CaptionStyle
	VisualEffects     []VisualEffect
	Schedule          *Schedule
	AccountIDs        []string
	Status            SeriesStatus
	EstimatedCredits  float64
	AutoPostEnabled   bool
	Revision          int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Episode is one scheduled production unit of a series.
type Episode struct {
	ID           string
	SeriesID     string
	Sequence     int
	ScheduledAt  *time.Time
	Status       EpisodeStatus
	ScriptID     string
	VideoAssetID string
	PreviewURL   string
	Manifest     *Manifest
	ErrorInfo    *ErrorPayload
	CreditsUsed  float64
	Revision     int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Script is a generated narration script. Scenes are stored as the raw JSON
// array produced by the model so the script package can validate and reparse
// them without a round trip through typed structs.
type Script struct {
	ID             string
	SeriesID       string
	LanguageCode   string
	Text           string
	ScenesJSON     string
	PromptMetadata map[string]string
	CreatedAt      time.Time
}

// Asset is a stored media object. Pipeline linkage (owning episode, role,
// scene index) lives in Metadata rather than foreign keys so uploaded and
// external assets share the same table.
type Asset struct {
	ID              string
	WorkspaceID     string
	Type            AssetType
	Source          string
	URL             string
	Format          string
	DurationSeconds float64
	Metadata        AssetMetadata
	CreatedAt       time.Time
}

// Post is one publish attempt of an episode's video to one social account.
type Post struct {
	ID             string
	EpisodeID      string
	AccountID      string
	PlatformPostID string
	Status         PostStatus
	ErrorInfo      *ErrorPayload
	PostedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Account is a connected social platform account. Tokens are stored
// encrypted; the secrets package handles sealing and opening them.
type Account struct {
	ID           string
	WorkspaceID  string
	Platform     string
	DisplayName  string
	Username     string
	AvatarURL    string
	Status       AccountStatus
	AccessToken  string
	RefreshToken string
	Scopes       string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Job is a durable queue entry. EpisodeID identifies the work unit for
// pipeline kinds; publish jobs additionally carry the PostID they deliver.
type Job struct {
	ID            int64
	Kind          JobKind
	EpisodeID     string
	PostID        string
	Status        JobStatus
	Attempt       int
	MaxAttempts   int
	RunAt         time.Time
	LeaseToken    string
	LastHeartbeat *time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ScheduleActive reports whether the series schedule should keep producing
// episodes. A missing schedule or a missing active flag counts as active.
func (s *Series) ScheduleActive() bool {
	if s == nil || s.Schedule == nil {
		return true
	}
	return s.Schedule.IsActive()
}

// IsTerminal reports whether a job has finished for good.
func (j *Job) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// DatabaseHealth captures diagnostic information about the database file.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Failed    int
	Completed int
}
