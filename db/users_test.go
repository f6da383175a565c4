package db

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/studypilot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewUsersRepository(setupTestDB(t))

	cred, err := repo.GetCredential(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, cred)

	expiry := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveCredential(ctx, &models.Credential{
		UserID:       "alice",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       expiry,
	}))

	cred, err = repo.GetCredential(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.True(t, expiry.Equal(cred.Expiry))

	// A reconnect without a refresh token keeps the stored one
	require.NoError(t, repo.SaveCredential(ctx, &models.Credential{
		UserID:      "alice",
		AccessToken: "access-2",
		Expiry:      expiry.Add(time.Hour),
	}))
	cred, err = repo.GetCredential(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "access-2", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)

	require.NoError(t, repo.CreateOAuthState(ctx, "state-1", "alice"))
	require.NoError(t, repo.ClearCredential(ctx, "alice"))

	cred, err = repo.GetCredential(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, cred)

	_, err = repo.ConsumeOAuthState(ctx, "state-1", time.Hour)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestReplaceRefreshedCredential(t *testing.T) {
	ctx := context.Background()
	repo := NewUsersRepository(setupTestDB(t))

	require.NoError(t, repo.SaveCredential(ctx, &models.Credential{
		UserID:       "alice",
		AccessToken:  "old",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	before, err := repo.GetCredential(ctx, "alice")
	require.NoError(t, err)

	newExpiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	refreshed := &models.Credential{UserID: "alice", AccessToken: "new", Expiry: newExpiry}
	ok, err := repo.ReplaceRefreshedCredential(ctx, "refresh-1", refreshed)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "refresh-1", refreshed.RefreshToken)

	after, err := repo.GetCredential(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new", after.AccessToken)
	assert.Equal(t, "refresh-1", after.RefreshToken)
	assert.True(t, newExpiry.Equal(after.Expiry))
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))

	// Stale writer loses
	ok, err = repo.ReplaceRefreshedCredential(ctx, "refresh-0", &models.Credential{UserID: "alice", AccessToken: "stale"})
	require.NoError(t, err)
	assert.False(t, ok)

	after, err = repo.GetCredential(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new", after.AccessToken)
}

func TestReplaceRefreshedCredentialRotatesRefreshToken(t *testing.T) {
	ctx := context.Background()
	repo := NewUsersRepository(setupTestDB(t))

	require.NoError(t, repo.SaveCredential(ctx, &models.Credential{UserID: "bob", AccessToken: "a", RefreshToken: "r1"}))

	ok, err := repo.ReplaceRefreshedCredential(ctx, "r1", &models.Credential{UserID: "bob", AccessToken: "b", RefreshToken: "r2"})
	require.NoError(t, err)
	require.True(t, ok)

	cred, err := repo.GetCredential(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "r2", cred.RefreshToken)
}

func TestPreferencesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewUsersRepository(setupTestDB(t))

	data, err := repo.GetPreferences(ctx, "carol")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, repo.SavePreferences(ctx, "carol", []byte("productivity_pattern: morning\n")))

	data, err = repo.GetPreferences(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "productivity_pattern: morning\n", string(data))

	// Preferences survive a credential save
	require.NoError(t, repo.SaveCredential(ctx, &models.Credential{UserID: "carol", AccessToken: "x"}))
	data, err = repo.GetPreferences(ctx, "carol")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestConsumeOAuthState(t *testing.T) {
	ctx := context.Background()
	repo := NewUsersRepository(setupTestDB(t))

	require.NoError(t, repo.CreateOAuthState(ctx, "nonce", "dave"))

	userID, err := repo.ConsumeOAuthState(ctx, "nonce", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "dave", userID)

	// Single use
	_, err = repo.ConsumeOAuthState(ctx, "nonce", time.Hour)
	assert.ErrorIs(t, err, ErrStateNotFound)

	require.NoError(t, repo.CreateOAuthState(ctx, "old", "dave"))
	_, err = repo.ConsumeOAuthState(ctx, "old", -time.Second)
	assert.ErrorIs(t, err, ErrStateNotFound)
}
