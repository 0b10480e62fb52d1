package ipc

import "showrunner/internal/api"

// JobView mirrors the HTTP API queue DTO for IPC callers.
type JobView = api.JobView

// StageHealth describes readiness of a workflow stage.
type StageHealth = api.StageHealth

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// StatusLine is a labeled severity/detail pair for status screens.
type StatusLine = api.StatusLine

// DependencySummary aggregates dependency readiness.
type DependencySummary = api.DependencySummary

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information. The
// daemon fills the runtime fields; CLI-side snapshot helpers may add system
// checks and summaries before rendering.
type StatusResponse struct {
	Running      bool               `json:"running"`
	QueueStats   map[string]int     `json:"queue_stats"`
	LastError    string             `json:"last_error"`
	LastJob      *JobView           `json:"last_job"`
	LockPath     string             `json:"lock_path"`
	DatabasePath string             `json:"database_path"`
	StageHealth  []StageHealth      `json:"stage_health"`
	Dependencies []DependencyStatus `json:"dependencies"`
	PID          int                `json:"pid"`

	SystemChecks      []StatusLine      `json:"system_checks,omitempty"`
	StoragePaths      []StatusLine      `json:"storage_paths,omitempty"`
	DependencySummary DependencySummary `json:"dependency_summary"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue jobs.
type QueueListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// QueueDescribeRequest fetches a single queue job by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single queue job.
type QueueDescribeResponse struct {
	Job JobView `json:"job"`
}

// QueueRetryRequest retries failed jobs. Empty list means all failed jobs.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of retried jobs.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueReclaimRequest releases leases whose workers stopped heartbeating.
type QueueReclaimRequest struct{}

// QueueReclaimResponse reports number of reclaimed jobs.
type QueueReclaimResponse struct {
	Updated int64 `json:"updated"`
}

// QueuePruneRequest removes terminal jobs older than the given age.
type QueuePruneRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// QueuePruneResponse reports number of removed jobs.
type QueuePruneResponse struct {
	Removed int64 `json:"removed"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    string `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalJobs        int    `json:"total_jobs"`
	Error            string `json:"error"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
