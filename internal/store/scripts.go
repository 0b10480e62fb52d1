package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const scriptColumns = "id, series_id, language_code, text, scenes_json, prompt_metadata_json, created_at"

func scanScript(scanner interface{ Scan(dest ...any) error }) (*Script, error) {
	var (
		id           string
		seriesID     string
		languageCode string
		text         string
		scenes       sql.NullString
		promptMeta   sql.NullString
		createdRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&seriesID,
		&languageCode,
		&text,
		&scenes,
		&promptMeta,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	script := &Script{
		ID:           id,
		SeriesID:     seriesID,
		LanguageCode: languageCode,
		Text:         text,
		ScenesJSON:   scenes.String,
	}

	var err error
	if script.PromptMetadata, err = decodeJSONMap[string](promptMeta, "prompt metadata"); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		script.CreatedAt = created
	}
	return script, nil
}

// CreateScript inserts a new script. A missing ID is assigned.
func (s *Store) CreateScript(ctx context.Context, script *Script) error {
	if script == nil {
		return errors.New("script is nil")
	}
	if script.ID == "" {
		script.ID = newID()
	}
	if script.LanguageCode == "" {
		script.LanguageCode = "en"
	}
	now := time.Now().UTC()

	promptMeta, err := encodeJSONMap(script.PromptMetadata)
	if err != nil {
		return err
	}

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO scripts (
            id, series_id, language_code, text, scenes_json,
            prompt_metadata_json, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		script.ID,
		script.SeriesID,
		script.LanguageCode,
		script.Text,
		nullableString(script.ScenesJSON),
		promptMeta,
		now.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert script: %w", err)
	}

	script.CreatedAt = now
	return nil
}

// GetScript fetches a script by identifier. Missing rows return nil, nil.
func (s *Store) GetScript(ctx context.Context, id string) (*Script, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE id = ?`, id)
	script, err := scanScript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get script: %w", err)
	}
	return script, nil
}
