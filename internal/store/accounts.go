package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const accountColumns = "id, workspace_id, platform, display_name, username, avatar_url, status, access_token, refresh_token, scopes, expires_at, created_at, updated_at"

func scanAccount(scanner interface{ Scan(dest ...any) error }) (*Account, error) {
	var (
		id           string
		workspaceID  string
		platform     string
		displayName  sql.NullString
		username     sql.NullString
		avatarURL    sql.NullString
		statusStr    string
		accessToken  sql.NullString
		refreshToken sql.NullString
		scopes       sql.NullString
		expiresRaw   sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&workspaceID,
		&platform,
		&displayName,
		&username,
		&avatarURL,
		&statusStr,
		&accessToken,
		&refreshToken,
		&scopes,
		&expiresRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	account := &Account{
		ID:           id,
		WorkspaceID:  workspaceID,
		Platform:     platform,
		DisplayName:  displayName.String,
		Username:     username.String,
		AvatarURL:    avatarURL.String,
		Status:       AccountStatus(statusStr),
		AccessToken:  accessToken.String,
		RefreshToken: refreshToken.String,
		Scopes:       scopes.String,
	}

	if expiresRaw.Valid {
		if expires, err := parseTimeString(expiresRaw.String); err == nil {
			account.ExpiresAt = &expires
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		account.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		account.UpdatedAt = updated
	}
	return account, nil
}

// CreateAccount inserts a new social account. A missing ID is assigned and
// the status defaults to connected.
func (s *Store) CreateAccount(ctx context.Context, account *Account) error {
	if account == nil {
		return errors.New("account is nil")
	}
	if account.ID == "" {
		account.ID = newID()
	}
	if account.Status == "" {
		account.Status = AccountConnected
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO accounts (
            id, workspace_id, platform, display_name, username, avatar_url,
            status, access_token, refresh_token, scopes, expires_at,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.WorkspaceID,
		account.Platform,
		account.DisplayName,
		account.Username,
		account.AvatarURL,
		string(account.Status),
		account.AccessToken,
		account.RefreshToken,
		account.Scopes,
		nullableTime(account.ExpiresAt),
		timestamp,
		timestamp,
	); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// GetAccount fetches an account by identifier. Missing rows return nil, nil.
func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns accounts ordered by creation time, optionally
// filtered by workspace.
func (s *Store) ListAccounts(ctx context.Context, workspaceID string) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	if workspaceID != "" {
		query += " WHERE workspace_id = ?"
		args = append(args, workspaceID)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var result []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	return result, rows.Err()
}

// ConnectedAccounts returns the workspace accounts whose status is
// connected, ordered by creation time.
func (s *Store) ConnectedAccounts(ctx context.Context, workspaceID string) ([]*Account, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+accountColumns+` FROM accounts
         WHERE workspace_id = ? AND status = ?
         ORDER BY created_at, id`,
		workspaceID,
		string(AccountConnected),
	)
	if err != nil {
		return nil, fmt.Errorf("list connected accounts: %w", err)
	}
	defer rows.Close()

	var result []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	return result, rows.Err()
}

// AccountsByIDs fetches the accounts matching the given identifiers.
// Unknown identifiers are skipped silently.
func (s *Store) AccountsByIDs(ctx context.Context, ids []string) ([]*Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+accountColumns+` FROM accounts
         WHERE id IN (`+makePlaceholders(len(ids))+`)
         ORDER BY created_at, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list accounts by id: %w", err)
	}
	defer rows.Close()

	var result []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	return result, rows.Err()
}

// UpdateAccount persists changes to an existing account.
func (s *Store) UpdateAccount(ctx context.Context, account *Account) error {
	if account == nil {
		return errors.New("account is nil")
	}
	now := time.Now().UTC()

	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE accounts SET
            workspace_id = ?, platform = ?, display_name = ?, username = ?,
            avatar_url = ?, status = ?, access_token = ?, refresh_token = ?,
            scopes = ?, expires_at = ?, updated_at = ?
        WHERE id = ?`,
		account.WorkspaceID,
		account.Platform,
		account.DisplayName,
		account.Username,
		account.AvatarURL,
		string(account.Status),
		account.AccessToken,
		account.RefreshToken,
		account.Scopes,
		nullableTime(account.ExpiresAt),
		now.Format(time.RFC3339Nano),
		account.ID,
	); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	account.UpdatedAt = now
	return nil
}

// DeleteAccount removes an account and, through foreign keys, its posts.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
