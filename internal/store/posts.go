package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const postColumns = "id, episode_id, account_id, platform_post_id, status, error_json, posted_at, created_at, updated_at"

func scanPost(scanner interface{ Scan(dest ...any) error }) (*Post, error) {
	var (
		id             string
		episodeID      string
		accountID      string
		platformPostID sql.NullString
		statusStr      string
		errorInfo      sql.NullString
		postedRaw      sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&episodeID,
		&accountID,
		&platformPostID,
		&statusStr,
		&errorInfo,
		&postedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	post := &Post{
		ID:             id,
		EpisodeID:      episodeID,
		AccountID:      accountID,
		PlatformPostID: platformPostID.String,
		Status:         PostStatus(statusStr),
	}

	var err error
	if post.ErrorInfo, err = decodeJSON[ErrorPayload](errorInfo, "error payload"); err != nil {
		return nil, err
	}

	if postedRaw.Valid {
		if posted, err := parseTimeString(postedRaw.String); err == nil {
			post.PostedAt = &posted
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		post.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		post.UpdatedAt = updated
	}
	return post, nil
}

// CreatePost inserts a new publish record. A missing ID is assigned and the
// status defaults to pending.
func (s *Store) CreatePost(ctx context.Context, post *Post) error {
	if post == nil {
		return errors.New("post is nil")
	}
	if post.ID == "" {
		post.ID = newID()
	}
	if post.Status == "" {
		post.Status = PostPending
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	errorInfo, err := encodeJSON(post.ErrorInfo)
	if err != nil {
		return err
	}

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO posts (
            id, episode_id, account_id, platform_post_id, status, error_json,
            posted_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.EpisodeID,
		post.AccountID,
		post.PlatformPostID,
		string(post.Status),
		errorInfo,
		nullableTime(post.PostedAt),
		timestamp,
		timestamp,
	); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	post.CreatedAt = now
	post.UpdatedAt = now
	return nil
}

// GetPost fetches a post by identifier. Missing rows return nil, nil.
func (s *Store) GetPost(ctx context.Context, id string) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// UpdatePost persists changes to an existing post.
func (s *Store) UpdatePost(ctx context.Context, post *Post) error {
	if post == nil {
		return errors.New("post is nil")
	}
	now := time.Now().UTC()

	errorInfo, err := encodeJSON(post.ErrorInfo)
	if err != nil {
		return err
	}

	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE posts SET
            platform_post_id = ?, status = ?, error_json = ?, posted_at = ?,
            updated_at = ?
        WHERE id = ?`,
		post.PlatformPostID,
		string(post.Status),
		errorInfo,
		nullableTime(post.PostedAt),
		now.Format(time.RFC3339Nano),
		post.ID,
	); err != nil {
		return fmt.Errorf("update post: %w", err)
	}

	post.UpdatedAt = now
	return nil
}

// ListPostsForEpisode returns the publish records of an episode ordered by
// creation time.
func (s *Store) ListPostsForEpisode(ctx context.Context, episodeID string) ([]*Post, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM posts WHERE episode_id = ? ORDER BY created_at, id`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list episode posts: %w", err)
	}
	defer rows.Close()

	var result []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, post)
	}
	return result, rows.Err()
}
