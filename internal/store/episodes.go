package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const episodeColumns = "id, series_id, sequence, scheduled_at, status, script_id, video_asset_id, preview_url, manifest_json, error_json, credits_used, revision, created_at, updated_at"

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		id           string
		seriesID     string
		sequence     int
		scheduledRaw sql.NullString
		statusStr    string
		scriptID     sql.NullString
		videoAssetID sql.NullString
		previewURL   sql.NullString
		manifest     sql.NullString
		errorInfo    sql.NullString
		creditsUsed  sql.NullFloat64
		revision     int64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&seriesID,
		&sequence,
		&scheduledRaw,
		&statusStr,
		&scriptID,
		&videoAssetID,
		&previewURL,
		&manifest,
		&errorInfo,
		&creditsUsed,
		&revision,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	episode := &Episode{
		ID:           id,
		SeriesID:     seriesID,
		Sequence:     sequence,
		Status:       EpisodeStatus(statusStr),
		ScriptID:     scriptID.String,
		VideoAssetID: videoAssetID.String,
		PreviewURL:   previewURL.String,
		CreditsUsed:  creditsUsed.Float64,
		Revision:     revision,
	}

	var err error
	if episode.Manifest, err = decodeJSON[Manifest](manifest, "manifest"); err != nil {
		return nil, err
	}
	if episode.ErrorInfo, err = decodeJSON[ErrorPayload](errorInfo, "error payload"); err != nil {
		return nil, err
	}

	if scheduledRaw.Valid {
		if scheduled, err := parseTimeString(scheduledRaw.String); err == nil {
			episode.ScheduledAt = &scheduled
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		episode.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		episode.UpdatedAt = updated
	}
	return episode, nil
}

// CreateEpisode inserts a new episode. A missing ID is assigned, the status
// defaults to scheduled, and the revision starts at 1.
func (s *Store) CreateEpisode(ctx context.Context, episode *Episode) error {
	if episode == nil {
		return errors.New("episode is nil")
	}
	if episode.ID == "" {
		episode.ID = newID()
	}
	if episode.Status == "" {
		episode.Status = EpisodeScheduled
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	manifest, err := encodeJSON(episode.Manifest)
	if err != nil {
		return err
	}
	errorInfo, err := encodeJSON(episode.ErrorInfo)
	if err != nil {
		return err
	}

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO episodes (
            id, series_id, sequence, scheduled_at, status, script_id,
            video_asset_id, preview_url, manifest_json, error_json,
            credits_used, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		episode.ID,
		episode.SeriesID,
		episode.Sequence,
		nullableTime(episode.ScheduledAt),
		string(episode.Status),
		nullableString(episode.ScriptID),
		nullableString(episode.VideoAssetID),
		episode.PreviewURL,
		manifest,
		errorInfo,
		episode.CreditsUsed,
		timestamp,
		timestamp,
	); err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}

	episode.Revision = 1
	episode.CreatedAt = now
	episode.UpdatedAt = now
	return nil
}

// GetEpisode fetches an episode by identifier. Missing rows return nil, nil.
func (s *Store) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return episode, nil
}

// ListEpisodes returns episodes ordered by scheduled time then sequence,
// optionally filtered by series and status.
func (s *Store) ListEpisodes(ctx context.Context, seriesID string, statuses ...EpisodeStatus) ([]*Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes`
	var (
		clauses []string
		args    []any
	)
	if seriesID != "" {
		clauses = append(clauses, "series_id = ?")
		args = append(args, seriesID)
	}
	if len(statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(statuses))+")")
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY scheduled_at, sequence, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var result []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, episode)
	}
	return result, rows.Err()
}

// UpdateEpisode persists changes to an existing episode. The write succeeds
// only when the in-memory revision still matches the stored row; a mismatch
// returns ErrRevisionConflict so the caller can reload and reapply.
func (s *Store) UpdateEpisode(ctx context.Context, episode *Episode) error {
	if episode == nil {
		return errors.New("episode is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	manifest, err := encodeJSON(episode.Manifest)
	if err != nil {
		return err
	}
	errorInfo, err := encodeJSON(episode.ErrorInfo)
	if err != nil {
		return err
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE episodes SET
            series_id = ?, sequence = ?, scheduled_at = ?, status = ?,
            script_id = ?, video_asset_id = ?, preview_url = ?,
            manifest_json = ?, error_json = ?, credits_used = ?,
            revision = revision + 1, updated_at = ?
        WHERE id = ? AND revision = ?`,
		episode.SeriesID,
		episode.Sequence,
		nullableTime(episode.ScheduledAt),
		string(episode.Status),
		nullableString(episode.ScriptID),
		nullableString(episode.VideoAssetID),
		episode.PreviewURL,
		manifest,
		errorInfo,
		episode.CreditsUsed,
		timestamp,
		episode.ID,
		episode.Revision,
	)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update episode rows: %w", err)
	}
	if affected == 0 {
		existing, err := s.GetEpisode(ctx, episode.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("episode %s not found", episode.ID)
		}
		return ErrRevisionConflict
	}

	episode.Revision++
	episode.UpdatedAt = now
	return nil
}

// NextSequence returns the sequence number the next episode of a series
// should take.
func (s *Store) NextSequence(ctx context.Context, seriesID string) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM episodes WHERE series_id = ?`, seriesID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count episodes: %w", err)
	}
	return count + 1, nil
}

// ScheduledDates returns the set of UTC calendar dates (YYYY-MM-DD) that
// already have an episode scheduled for the series. Top-up planning uses it
// to avoid double-booking a slot.
func (s *Store) ScheduledDates(ctx context.Context, seriesID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT scheduled_at FROM episodes WHERE series_id = ? AND scheduled_at IS NOT NULL`,
		seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scheduled dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		scheduled, err := parseTimeString(raw)
		if err != nil {
			continue
		}
		dates[scheduled.UTC().Format("2006-01-02")] = struct{}{}
	}
	return dates, rows.Err()
}

// EpisodeStats returns a count of episodes grouped by status.
func (s *Store) EpisodeStats(ctx context.Context) (map[EpisodeStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM episodes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("episode stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[EpisodeStatus]int)
	for rows.Next() {
		var status EpisodeStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
