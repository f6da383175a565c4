package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncStateTransitions(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	state, err := GetSyncState(ctx, database, "alice", "calendar")
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, UpdateSyncStatus(ctx, database, "alice", "calendar", SyncSyncing, nil))
	state, err = GetSyncState(ctx, database, "alice", "calendar")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, SyncSyncing, state.Status)
	assert.Nil(t, state.LastSyncTime)

	msg := "calendar unavailable"
	require.NoError(t, UpdateSyncStatus(ctx, database, "alice", "calendar", SyncError, &msg))
	state, err = GetSyncState(ctx, database, "alice", "calendar")
	require.NoError(t, err)
	assert.Equal(t, SyncError, state.Status)
	require.NotNil(t, state.ErrorMessage)
	assert.Equal(t, msg, *state.ErrorMessage)

	require.NoError(t, MarkSynced(ctx, database, "alice", "calendar", "01JRUNID"))
	state, err = GetSyncState(ctx, database, "alice", "calendar")
	require.NoError(t, err)
	assert.Equal(t, SyncIdle, state.Status)
	assert.Nil(t, state.ErrorMessage)
	require.NotNil(t, state.LastSyncTime)
	require.NotNil(t, state.LastRunID)
	assert.Equal(t, "01JRUNID", *state.LastRunID)

	require.NoError(t, UpdateSyncStatus(ctx, database, "bob", "calendar", SyncIdle, nil))
	states, err := GetAllSyncStates(ctx, database, "alice")
	require.NoError(t, err)
	assert.Len(t, states, 1)
}
