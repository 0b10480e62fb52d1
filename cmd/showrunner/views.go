package main

import (
	"fmt"
	"sort"
	"strings"

	"showrunner/internal/api"
)

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildJobRows(jobs []api.JobView) [][]string {
	if len(jobs) == 0 {
		return nil
	}
	sorted := api.SortJobsNewestFirst(jobs)

	rows := make([][]string, 0, len(sorted))
	for _, job := range sorted {
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			formatStatusLabel(job.Kind),
			shortID(job.EpisodeID),
			formatStatusLabel(job.Status),
			fmt.Sprintf("%d/%d", job.Attempt, job.MaxAttempts),
			formatDisplayTime(job.RunAt),
		})
	}
	return rows
}

func buildSeriesRows(list []api.SeriesView) [][]string {
	if len(list) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, series := range list {
		schedule := series.Frequency
		if series.PublishTime != "" {
			schedule = strings.TrimSpace(schedule + " " + series.PublishTime)
		}
		rows = append(rows, []string{
			shortID(series.ID),
			series.Name,
			formatStatusLabel(series.Status),
			schedule,
			series.Timezone,
			yesNo(series.AutoPostEnabled),
			fmt.Sprintf("%.1f", series.EstimatedCredits),
		})
	}
	return rows
}

func buildEpisodeRows(episodes []api.EpisodeView) [][]string {
	if len(episodes) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(episodes))
	for _, episode := range episodes {
		rows = append(rows, []string{
			shortID(episode.ID),
			fmt.Sprintf("%d", episode.Sequence),
			formatStatusLabel(episode.Status),
			formatDisplayTime(episode.ScheduledAt),
			yesNo(episode.VideoAssetID != ""),
			episode.ErrorMessage,
		})
	}
	return rows
}

func buildPostRows(posts []api.PostView) [][]string {
	if len(posts) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(posts))
	for _, post := range posts {
		platform := post.Platform
		if platform == "" {
			platform = "-"
		}
		rows = append(rows, []string{
			shortID(post.ID),
			platform,
			formatStatusLabel(post.Status),
			formatDisplayTime(post.PostedAt),
			post.ErrorMessage,
		})
	}
	return rows
}

// formatStatusLabel turns a snake_case status or kind into a display label.
func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t := api.ParseAPITime(value); !t.IsZero() {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

// shortID truncates UUID-shaped identifiers for table display. Full IDs
// stay available through the JSON output flags.
func shortID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if len(value) > 8 {
		return value[:8]
	}
	return value
}
