// ABOUTME: Database operations for the sync_state table
// ABOUTME: Tracks per-user reconciliation status, last run, and errors for external services
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Sync states.
const (
	SyncIdle    = "idle"
	SyncSyncing = "syncing"
	SyncError   = "error"
)

// SyncState represents the sync state for a user's service.
type SyncState struct {
	UserID       string
	Service      string
	LastSyncTime *time.Time
	LastRunID    *string
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetSyncState retrieves the sync state for a user's service.
func GetSyncState(ctx context.Context, db *sql.DB, userID, service string) (*SyncState, error) {
	var state SyncState
	var lastSyncTime sql.NullTime
	var lastRunID sql.NullString
	var status sql.NullString
	var errorMessage sql.NullString

	err := db.QueryRowContext(ctx, `
		SELECT user_id, service, last_sync_time, last_run_id, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE user_id = ? AND service = ?
	`, userID, service).Scan(
		&state.UserID,
		&state.Service,
		&lastSyncTime,
		&lastRunID,
		&status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	state.Status = status.String
	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if lastRunID.Valid {
		state.LastRunID = &lastRunID.String
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// UpdateSyncStatus updates the sync status for a user's service.
func UpdateSyncStatus(ctx context.Context, db *sql.DB, userID, service, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (user_id, service, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, service) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`, userID, service, status, errorMsgVal, now, now)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

// MarkSynced records a completed run and returns the state to idle.
func MarkSynced(ctx context.Context, db *sql.DB, userID, service, runID string) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (user_id, service, last_sync_time, last_run_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'idle', ?, ?)
		ON CONFLICT(user_id, service) DO UPDATE SET
			last_sync_time = excluded.last_sync_time,
			last_run_id = excluded.last_run_id,
			status = 'idle',
			error_message = NULL,
			updated_at = excluded.updated_at
	`, userID, service, now, runID, now, now)

	if err != nil {
		return fmt.Errorf("failed to mark sync complete: %w", err)
	}

	return nil
}

// GetAllSyncStates retrieves every service state for a user.
func GetAllSyncStates(ctx context.Context, db *sql.DB, userID string) ([]SyncState, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, service, last_sync_time, last_run_id, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE user_id = ?
		ORDER BY service
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []SyncState
	for rows.Next() {
		var state SyncState
		var lastSyncTime sql.NullTime
		var lastRunID sql.NullString
		var status sql.NullString
		var errorMessage sql.NullString

		err := rows.Scan(
			&state.UserID,
			&state.Service,
			&lastSyncTime,
			&lastRunID,
			&status,
			&errorMessage,
			&state.CreatedAt,
			&state.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}

		state.Status = status.String
		if lastSyncTime.Valid {
			state.LastSyncTime = &lastSyncTime.Time
		}
		if lastRunID.Valid {
			state.LastRunID = &lastRunID.String
		}
		if errorMessage.Valid {
			state.ErrorMessage = &errorMessage.String
		}

		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync states: %w", err)
	}

	return states, nil
}
