// ABOUTME: User repository for OAuth credentials, study preferences, and OAuth state nonces
// ABOUTME: Refreshed tokens are persisted with a conditional update keyed on the prior refresh token
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/studypilot/models"
)

var ErrStateNotFound = errors.New("oauth state not found or expired")

// UsersRepository persists per-user credential and preference columns.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// EnsureUser creates the user row when missing.
func (r *UsersRepository) EnsureUser(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, userID, now, now)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// GetCredential returns the stored credential, or nil when the user has none.
func (r *UsersRepository) GetCredential(ctx context.Context, userID string) (*models.Credential, error) {
	var accessToken, refreshToken sql.NullString
	var expiry sql.NullTime
	var updatedAt time.Time

	err := r.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, token_expiry, updated_at
		FROM users WHERE id = ?
	`, userID).Scan(&accessToken, &refreshToken, &expiry, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if accessToken.String == "" && refreshToken.String == "" {
		return nil, nil
	}

	cred := &models.Credential{
		UserID:       userID,
		AccessToken:  accessToken.String,
		RefreshToken: refreshToken.String,
		UpdatedAt:    updatedAt,
	}
	if expiry.Valid {
		cred.Expiry = expiry.Time
	}

	return cred, nil
}

// SaveCredential stores a freshly issued credential, creating the user when needed.
func (r *UsersRepository) SaveCredential(ctx context.Context, cred *models.Credential) error {
	now := time.Now().UTC()
	cred.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, access_token, refresh_token, token_expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = COALESCE(excluded.refresh_token, users.refresh_token),
			token_expiry = excluded.token_expiry,
			updated_at = excluded.updated_at
	`, cred.UserID, cred.AccessToken, nullString(cred.RefreshToken), nullTime(cred.Expiry), now, now)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// ReplaceRefreshedCredential writes a refreshed token only if the stored refresh token
// still equals previousRefreshToken. It reports whether the row was updated.
func (r *UsersRepository) ReplaceRefreshedCredential(ctx context.Context, previousRefreshToken string, cred *models.Credential) (bool, error) {
	now := time.Now().UTC()

	refreshToken := cred.RefreshToken
	if refreshToken == "" {
		refreshToken = previousRefreshToken
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			access_token = ?,
			refresh_token = ?,
			token_expiry = ?,
			updated_at = ?
		WHERE id = ? AND refresh_token = ?
	`, cred.AccessToken, refreshToken, nullTime(cred.Expiry), now, cred.UserID, previousRefreshToken)
	if err != nil {
		return false, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	cred.RefreshToken = refreshToken
	cred.UpdatedAt = now
	return true, nil
}

// ClearCredential removes all token fields and pending OAuth states in one transaction.
func (r *UsersRepository) ClearCredential(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET access_token = NULL, refresh_token = NULL, token_expiry = NULL, updated_at = ?
		WHERE id = ?
	`, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM oauth_states WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear oauth states: %w", err)
	}

	return tx.Commit()
}

// GetPreferences returns the raw YAML preferences, or nil when unset.
func (r *UsersRepository) GetPreferences(ctx context.Context, userID string) ([]byte, error) {
	var prefs sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT preferences FROM users WHERE id = ?`, userID).Scan(&prefs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	if !prefs.Valid {
		return nil, nil
	}
	return []byte(prefs.String), nil
}

// SavePreferences stores raw YAML preferences.
func (r *UsersRepository) SavePreferences(ctx context.Context, userID string, data []byte) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, preferences, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			preferences = excluded.preferences,
			updated_at = excluded.updated_at
	`, userID, string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// CreateOAuthState records a pending OAuth authorization for userID.
func (r *UsersRepository) CreateOAuthState(ctx context.Context, state, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_states (state, user_id, created_at) VALUES (?, ?, ?)
	`, state, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState deletes the state and returns its user when younger than maxAge.
func (r *UsersRepository) ConsumeOAuthState(ctx context.Context, state string, maxAge time.Duration) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	var createdAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, created_at FROM oauth_states WHERE state = ?
	`, state).Scan(&userID, &createdAt)
	if err == sql.ErrNoRows {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read oauth state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM oauth_states WHERE state = ?`, state); err != nil {
		return "", fmt.Errorf("failed to delete oauth state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	if time.Since(createdAt) > maxAge {
		return "", ErrStateNotFound
	}

	return userID, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
