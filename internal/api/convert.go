package api

import (
	"sort"
	"time"

	"showrunner/internal/store"
	"showrunner/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromJob converts a queue job into its transport representation.
func FromJob(job *store.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:          job.ID,
		Kind:        string(job.Kind),
		EpisodeID:   job.EpisodeID,
		PostID:      job.PostID,
		Status:      string(job.Status),
		Attempt:     job.Attempt,
		MaxAttempts: job.MaxAttempts,
		RunAt:       formatTime(job.RunAt),
		LastError:   job.LastError,
		CreatedAt:   formatTime(job.CreatedAt),
		UpdatedAt:   formatTime(job.UpdatedAt),
	}
	return view
}

// FromJobs converts a slice of queue jobs.
func FromJobs(jobs []*store.Job) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		views = append(views, FromJob(job))
	}
	return views
}

// FromSeries converts a series record into its transport representation.
func FromSeries(series *store.Series) SeriesView {
	if series == nil {
		return SeriesView{}
	}
	view := SeriesView{
		ID:               series.ID,
		WorkspaceID:      series.WorkspaceID,
		Name:             series.Name,
		ContentType:      series.ContentType,
		Status:           string(series.Status),
		AccountCount:     len(series.AccountIDs),
		AutoPostEnabled:  series.AutoPostEnabled,
		EstimatedCredits: series.EstimatedCredits,
		CreatedAt:        formatTime(series.CreatedAt),
		UpdatedAt:        formatTime(series.UpdatedAt),
	}
	if series.Schedule != nil {
		view.Frequency = series.Schedule.Frequency
		view.PublishTime = series.Schedule.PublishTime
		view.Timezone = series.Schedule.Timezone
	}
	return view
}

// FromSeriesList converts a slice of series records.
func FromSeriesList(list []*store.Series) []SeriesView {
	if len(list) == 0 {
		return nil
	}
	views := make([]SeriesView, 0, len(list))
	for _, series := range list {
		if series == nil {
			continue
		}
		views = append(views, FromSeries(series))
	}
	return views
}

// FromEpisode converts an episode record into its transport representation.
func FromEpisode(episode *store.Episode) EpisodeView {
	if episode == nil {
		return EpisodeView{}
	}
	view := EpisodeView{
		ID:           episode.ID,
		SeriesID:     episode.SeriesID,
		Sequence:     episode.Sequence,
		Status:       string(episode.Status),
		ScheduledAt:  formatTimePtr(episode.ScheduledAt),
		ScriptID:     episode.ScriptID,
		VideoAssetID: episode.VideoAssetID,
		PreviewURL:   episode.PreviewURL,
		CreditsUsed:  episode.CreditsUsed,
		CreatedAt:    formatTime(episode.CreatedAt),
		UpdatedAt:    formatTime(episode.UpdatedAt),
	}
	if episode.ErrorInfo != nil {
		view.ErrorStep = episode.ErrorInfo.Step
		view.ErrorMessage = episode.ErrorInfo.Message
	}
	return view
}

// FromEpisodes converts a slice of episode records.
func FromEpisodes(episodes []*store.Episode) []EpisodeView {
	if len(episodes) == 0 {
		return nil
	}
	views := make([]EpisodeView, 0, len(episodes))
	for _, episode := range episodes {
		if episode == nil {
			continue
		}
		views = append(views, FromEpisode(episode))
	}
	return views
}

// FromPost converts a post record. The platform name is looked up from
// platforms keyed by account ID when provided.
func FromPost(post *store.Post, platforms map[string]string) PostView {
	if post == nil {
		return PostView{}
	}
	view := PostView{
		ID:             post.ID,
		EpisodeID:      post.EpisodeID,
		AccountID:      post.AccountID,
		Status:         string(post.Status),
		PlatformPostID: post.PlatformPostID,
		PostedAt:       formatTimePtr(post.PostedAt),
		CreatedAt:      formatTime(post.CreatedAt),
	}
	if platforms != nil {
		view.Platform = platforms[post.AccountID]
	}
	if post.ErrorInfo != nil {
		view.ErrorMessage = post.ErrorInfo.Message
	}
	return view
}

// FromPosts converts a slice of post records.
func FromPosts(posts []*store.Post, platforms map[string]string) []PostView {
	if len(posts) == 0 {
		return nil
	}
	views := make([]PostView, 0, len(posts))
	for _, post := range posts {
		if post == nil {
			continue
		}
		views = append(views, FromPost(post, platforms))
	}
	return views
}

// FromStatusSummary converts workflow status into its transport form.
// Stage health is sorted by name so output ordering is stable.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:    summary.Running,
		QueueStats: MergeJobStats(summary.QueueStats),
		LastError:  summary.LastError,
	}
	if summary.LastJob != nil {
		view := FromJob(summary.LastJob)
		status.LastJob = &view
	}
	if len(summary.StageHealth) > 0 {
		names := make([]string, 0, len(summary.StageHealth))
		for name := range summary.StageHealth {
			names = append(names, name)
		}
		sort.Strings(names)
		status.StageHealth = make([]StageHealth, 0, len(names))
		for _, name := range names {
			health := summary.StageHealth[name]
			status.StageHealth = append(status.StageHealth, StageHealth{
				Name:   health.Name,
				Ready:  health.Ready,
				Detail: health.Detail,
			})
		}
	}
	return status
}

// MergeJobStats normalizes queue stats into a string-keyed map with every
// known status present, so consumers render zero counts instead of gaps.
func MergeJobStats(stats map[store.JobStatus]int) map[string]int {
	merged := map[string]int{
		string(store.JobPending):   0,
		string(store.JobRunning):   0,
		string(store.JobCompleted): 0,
		string(store.JobFailed):    0,
	}
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

// FromQueueHealth converts aggregate queue diagnostics.
func FromQueueHealth(health store.HealthSummary) QueueHealthView {
	return QueueHealthView{
		Total:     health.Total,
		Pending:   health.Pending,
		Running:   health.Running,
		Failed:    health.Failed,
		Completed: health.Completed,
	}
}

// FromDatabaseHealth converts database file diagnostics.
func FromDatabaseHealth(health store.DatabaseHealth) DatabaseHealthView {
	return DatabaseHealthView{
		DBPath:           health.DBPath,
		DatabaseExists:   health.DatabaseExists,
		DatabaseReadable: health.DatabaseReadable,
		SchemaVersion:    health.SchemaVersion,
		TableExists:      health.TableExists,
		IntegrityCheck:   health.IntegrityCheck,
		TotalJobs:        health.TotalJobs,
		Error:            health.Error,
	}
}
