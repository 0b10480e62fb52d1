package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a queue job in a transport-friendly format.
type JobView struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	EpisodeID   string `json:"episodeId,omitempty"`
	PostID      string `json:"postId,omitempty"`
	Status      string `json:"status"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
	RunAt       string `json:"runAt,omitempty"`
	LastError   string `json:"lastError,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// SeriesView describes a series definition for API consumers. Schedule
// fields are flattened so table renderers do not reparse nested payloads.
type SeriesView struct {
	ID               string  `json:"id"`
	WorkspaceID      string  `json:"workspaceId"`
	Name             string  `json:"name"`
	ContentType      string  `json:"contentType,omitempty"`
	Status           string  `json:"status"`
	Frequency        string  `json:"frequency,omitempty"`
	PublishTime      string  `json:"publishTime,omitempty"`
	Timezone         string  `json:"timezone,omitempty"`
	AccountCount     int     `json:"accountCount"`
	AutoPostEnabled  bool    `json:"autoPostEnabled"`
	EstimatedCredits float64 `json:"estimatedCredits,omitempty"`
	CreatedAt        string  `json:"createdAt,omitempty"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
}

// EpisodeView describes one production unit of a series.
type EpisodeView struct {
	ID           string  `json:"id"`
	SeriesID     string  `json:"seriesId"`
	Sequence     int     `json:"sequence"`
	Status       string  `json:"status"`
	ScheduledAt  string  `json:"scheduledAt,omitempty"`
	ScriptID     string  `json:"scriptId,omitempty"`
	VideoAssetID string  `json:"videoAssetId,omitempty"`
	PreviewURL   string  `json:"previewUrl,omitempty"`
	ErrorStep    string  `json:"errorStep,omitempty"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	CreditsUsed  float64 `json:"creditsUsed,omitempty"`
	CreatedAt    string  `json:"createdAt,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

// PostView describes one per-account publish attempt. Platform is resolved
// from the owning account when the caller has it loaded.
type PostView struct {
	ID             string `json:"id"`
	EpisodeID      string `json:"episodeId"`
	AccountID      string `json:"accountId"`
	Platform       string `json:"platform,omitempty"`
	Status         string `json:"status"`
	PlatformPostID string `json:"platformPostId,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	PostedAt       string `json:"postedAt,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *JobView       `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// DependencySummary aggregates dependency readiness for status output.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missingRequired"`
	MissingOptional int    `json:"missingOptional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// StatusLine is a labeled severity/detail pair rendered on status screens.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueHealthView reports aggregate job counts per lifecycle state.
type QueueHealthView struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// DatabaseHealthView reports database file diagnostics.
type DatabaseHealthView struct {
	DBPath           string `json:"dbPath"`
	DatabaseExists   bool   `json:"databaseExists"`
	DatabaseReadable bool   `json:"databaseReadable"`
	SchemaVersion    string `json:"schemaVersion,omitempty"`
	TableExists      bool   `json:"tableExists"`
	IntegrityCheck   bool   `json:"integrityCheck"`
	TotalJobs        int    `json:"totalJobs"`
	Error            string `json:"error,omitempty"`
}

// HealthResponse combines queue and database diagnostics.
type HealthResponse struct {
	Queue    QueueHealthView    `json:"queue"`
	Database DatabaseHealthView `json:"database"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// JobListResponse wraps a collection of queue jobs for API responses.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// JobResponse wraps a single queue job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// SeriesListResponse wraps a collection of series.
type SeriesListResponse struct {
	Series []SeriesView `json:"series"`
}

// EpisodeListResponse wraps a collection of episodes.
type EpisodeListResponse struct {
	Episodes []EpisodeView `json:"episodes"`
}

// PostListResponse wraps a collection of posts.
type PostListResponse struct {
	Posts []PostView `json:"posts"`
}
