package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const seriesColumns = "id, workspace_id, name, content_type, custom_topic_json, script_preferences_json, voice_language_json, music_settings_json, art_style_json, caption_style_json, visual_effects_json, schedule_json, account_ids_json, status, estimated_credits, auto_post_enabled, revision, created_at, updated_at"

func scanSeries(scanner interface{ Scan(dest ...any) error }) (*Series, error) {
	var (
		id               string
		workspaceID      string
		name             string
		contentType      string
		customTopic      sql.NullString
		scriptPrefs      sql.NullString
		voiceLanguage    sql.NullString
		musicSettings    sql.NullString
		artStyle         sql.NullString
		captionStyle     sql.NullString
		visualEffects    sql.NullString
		schedule         sql.NullString
		accountIDs       sql.NullString
		statusStr        string
		estimatedCredits sql.NullFloat64
		autoPost         sql.NullInt64
		revision         int64
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&workspaceID,
		&name,
		&contentType,
		&customTopic,
		&scriptPrefs,
		&voiceLanguage,
		&musicSettings,
		&artStyle,
		&captionStyle,
		&visualEffects,
		&schedule,
		&accountIDs,
		&statusStr,
		&estimatedCredits,
		&autoPost,
		&revision,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	series := &Series{
		ID:               id,
		WorkspaceID:      workspaceID,
		Name:             name,
		ContentType:      contentType,
		Status:           SeriesStatus(statusStr),
		EstimatedCredits: estimatedCredits.Float64,
		Revision:         revision,
	}
	if autoPost.Valid {
		series.AutoPostEnabled = autoPost.Int64 != 0
	}

	var err error
	if series.CustomTopic, err = decodeJSON[CustomTopic](customTopic, "custom topic"); err != nil {
		return nil, err
	}
	if series.ScriptPreferences, err = decodeJSON[ScriptPreferences](scriptPrefs, "script preferences"); err != nil {
		return nil, err
	}
	if series.VoiceLanguage, err = decodeJSON[VoiceLanguage](voiceLanguage, "voice language"); err != nil {
		return nil, err
	}
	if series.MusicSettings, err = decodeJSON[MusicSettings](musicSettings, "music settings"); err != nil {
		return nil, err
	}
	if series.ArtStyle, err = decodeJSON[ArtStyle](artStyle, "art style"); err != nil {
		return nil, err
	}
	if series.CaptionStyle, err = decodeJSON[CaptionStyle](captionStyle, "caption style"); err != nil {
		return nil, err
	}
	if series.VisualEffects, err = decodeJSONSlice[VisualEffect](visualEffects, "visual effects"); err != nil {
		return nil, err
	}
	if series.Schedule, err = decodeJSON[Schedule](schedule, "schedule"); err != nil {
		return nil, err
	}
	if series.AccountIDs, err = decodeJSONSlice[string](accountIDs, "account ids"); err != nil {
		return nil, err
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		series.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		series.UpdatedAt = updated
	}
	return series, nil
}

func seriesWriteArgs(series *Series) ([]any, error) {
	customTopic, err := encodeJSON(series.CustomTopic)
	if err != nil {
		return nil, err
	}
	scriptPrefs, err := encodeJSON(series.ScriptPreferences)
	if err != nil {
		return nil, err
	}
	voiceLanguage, err := encodeJSON(series.VoiceLanguage)
	if err != nil {
		return nil, err
	}
	musicSettings, err := encodeJSON(series.MusicSettings)
	if err != nil {
		return nil, err
	}
	artStyle, err := encodeJSON(series.ArtStyle)
	if err != nil {
		return nil, err
	}
	captionStyle, err := encodeJSON(series.CaptionStyle)
	if err != nil {
		return nil, err
	}
	visualEffects, err := encodeJSONSlice(series.VisualEffects)
	if err != nil {
		return nil, err
	}
	schedule, err := encodeJSON(series.Schedule)
	if err != nil {
		return nil, err
	}
	accountIDs, err := encodeJSONSlice(series.AccountIDs)
	if err != nil {
		return nil, err
	}
	return []any{
		series.WorkspaceID,
		series.Name,
		series.ContentType,
		customTopic,
		scriptPrefs,
		voiceLanguage,
		musicSettings,
		artStyle,
		captionStyle,
		visualEffects,
		schedule,
		accountIDs,
		string(series.Status),
		series.EstimatedCredits,
		boolToInt(series.AutoPostEnabled),
	}, nil
}

// CreateSeries inserts a new series. A missing ID is assigned, the status
// defaults to draft, and the revision starts at 1.
func (s *Store) CreateSeries(ctx context.Context, series *Series) error {
	if series == nil {
		return errors.New("series is nil")
	}
	if series.ID == "" {
		series.ID = newID()
	}
	if series.Status == "" {
		series.Status = SeriesDraft
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	args, err := seriesWriteArgs(series)
	if err != nil {
		return err
	}
	args = append([]any{series.ID}, args...)
	args = append(args, timestamp, timestamp)

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO series (
            id, workspace_id, name, content_type, custom_topic_json,
            script_preferences_json, voice_language_json, music_settings_json,
            art_style_json, caption_style_json, visual_effects_json,
            schedule_json, account_ids_json, status, estimated_credits,
            auto_post_enabled, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	); err != nil {
		return fmt.Errorf("insert series: %w", err)
	}

	series.Revision = 1
	series.CreatedAt = now
	series.UpdatedAt = now
	return nil
}

// GetSeries fetches a series by identifier. Missing rows return nil, nil.
func (s *Store) GetSeries(ctx context.Context, id string) (*Series, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE id = ?`, id)
	series, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	return series, nil
}

// ListSeries returns series ordered by creation time, optionally filtered by
// workspace and status.
func (s *Store) ListSeries(ctx context.Context, workspaceID string, statuses ...SeriesStatus) ([]*Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM series`
	var (
		clauses []string
		args    []any
	)
	if workspaceID != "" {
		clauses = append(clauses, "workspace_id = ?")
		args = append(args, workspaceID)
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
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var result []*Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, series)
	}
	return result, rows.Err()
}

// UpdateSeries persists changes to an existing series. The write succeeds
// only when the in-memory revision still matches the stored row; a mismatch
// returns ErrRevisionConflict and leaves the row untouched.
func (s *Store) UpdateSeries(ctx context.Context, series *Series) error {
	if series == nil {
		return errors.New("series is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	args, err := seriesWriteArgs(series)
	if err != nil {
		return err
	}
	args = append(args, timestamp, series.ID, series.Revision)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE series SET
            workspace_id = ?, name = ?, content_type = ?, custom_topic_json = ?,
            script_preferences_json = ?, voice_language_json = ?,
            music_settings_json = ?, art_style_json = ?, caption_style_json = ?,
            visual_effects_json = ?, schedule_json = ?, account_ids_json = ?,
            status = ?, estimated_credits = ?, auto_post_enabled = ?,
            revision = revision + 1, updated_at = ?
        WHERE id = ? AND revision = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update series: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update series rows: %w", err)
	}
	if affected == 0 {
		existing, err := s.GetSeries(ctx, series.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("series %s not found", series.ID)
		}
		return ErrRevisionConflict
	}

	series.Revision++
	series.UpdatedAt = now
	return nil
}

// DeleteSeries removes a series and, through foreign keys, its episodes and
// scripts.
func (s *Store) DeleteSeries(ctx context.Context, id string) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM series WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	return nil
}
