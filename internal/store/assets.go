package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const assetColumns = "id, workspace_id, type, source, url, format, duration_seconds, metadata_json, created_at"

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		id          string
		workspaceID string
		typeStr     string
		source      string
		url         sql.NullString
		format      sql.NullString
		duration    sql.NullFloat64
		metadata    sql.NullString
		createdRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&workspaceID,
		&typeStr,
		&source,
		&url,
		&format,
		&duration,
		&metadata,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:              id,
		WorkspaceID:     workspaceID,
		Type:            AssetType(typeStr),
		Source:          source,
		URL:             url.String,
		Format:          format.String,
		DurationSeconds: duration.Float64,
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &asset.Metadata); err != nil {
			return nil, fmt.Errorf("decode asset metadata: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		asset.CreatedAt = created
	}
	return asset, nil
}

// CreateAsset inserts a new asset. A missing ID is assigned and the source
// defaults to generated.
func (s *Store) CreateAsset(ctx context.Context, asset *Asset) error {
	if asset == nil {
		return errors.New("asset is nil")
	}
	if asset.ID == "" {
		asset.ID = newID()
	}
	if asset.Source == "" {
		asset.Source = SourceGenerated
	}
	now := time.Now().UTC()

	metadata, err := json.Marshal(asset.Metadata)
	if err != nil {
		return fmt.Errorf("marshal asset metadata: %w", err)
	}

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO assets (
            id, workspace_id, type, source, url, format, duration_seconds,
            metadata_json, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ID,
		asset.WorkspaceID,
		string(asset.Type),
		asset.Source,
		asset.URL,
		asset.Format,
		asset.DurationSeconds,
		string(metadata),
		now.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}

	asset.CreatedAt = now
	return nil
}

// GetAsset fetches an asset by identifier. Missing rows return nil, nil.
func (s *Store) GetAsset(ctx context.Context, id string) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// GetWorkspaceAsset fetches an asset only if it belongs to the given
// workspace and matches the expected type. Missing rows return nil, nil.
func (s *Store) GetWorkspaceAsset(ctx context.Context, id, workspaceID string, assetType AssetType) (*Asset, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = ? AND workspace_id = ? AND type = ?`,
		id,
		workspaceID,
		string(assetType),
	)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace asset: %w", err)
	}
	return asset, nil
}

// ListAssetsForEpisode returns the assets whose metadata links them to an
// episode, ordered by creation time.
func (s *Store) ListAssetsForEpisode(ctx context.Context, episodeID string) ([]*Asset, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+assetColumns+` FROM assets
         WHERE json_extract(metadata_json, '$.episode_id') = ?
         ORDER BY created_at, id`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list episode assets: %w", err)
	}
	defer rows.Close()

	var result []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, asset)
	}
	return result, rows.Err()
}
