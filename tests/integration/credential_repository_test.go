package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/infrastructure/persistence"
)

// TestTrackerCredentialRepository_Integration tests the credential repository
// against a real PostgreSQL database
func TestTrackerCredentialRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	repo := persistence.NewGormTrackerCredentialRepository(testDB.DB)
	ctx := context.Background()

	t.Run("Upsert and Get", func(t *testing.T) {
		userID := uuid.New()
		expiresAt := time.Now().Add(time.Hour).UTC()
		credential, err := integration.NewTrackerCredential(
			userID, "acct-100", "Acme Title Plant", "access-secret", "cipher:refresh", &expiresAt)
		require.NoError(t, err)

		err = repo.Upsert(ctx, credential)
		require.NoError(t, err)

		found, err := repo.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, credential.ID, found.ID)
		assert.Equal(t, userID, found.UserID)
		assert.Equal(t, "acct-100", found.ExternalAccountID)
		assert.Equal(t, "Acme Title Plant", found.ExternalAccountName)
		assert.Equal(t, "access-secret", found.AccessSecret)
		assert.Equal(t, "cipher:refresh", found.RefreshSecretCiphertext)
		require.NotNil(t, found.ExpiresAt)
		assert.WithinDuration(t, expiresAt, *found.ExpiresAt, time.Second)
	})

	t.Run("Get returns not found for unknown user", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrCredentialNotFound)
	})

	t.Run("Upsert replaces the credential in place on reconnect", func(t *testing.T) {
		userID := uuid.New()
		first, err := integration.NewTrackerCredential(
			userID, "acct-200", "First Account", "access-1", "cipher:refresh-1", nil)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, first))

		second, err := integration.NewTrackerCredential(
			userID, "acct-201", "Second Account", "access-2", "cipher:refresh-2", nil)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, second))

		found, err := repo.Get(ctx, userID)
		require.NoError(t, err)
		// The row survives, only its contents change
		assert.Equal(t, first.ID, found.ID)
		assert.Equal(t, "acct-201", found.ExternalAccountID)
		assert.Equal(t, "Second Account", found.ExternalAccountName)
		assert.Equal(t, "access-2", found.AccessSecret)
		assert.Equal(t, "cipher:refresh-2", found.RefreshSecretCiphertext)
		assert.Nil(t, found.ExpiresAt)
	})

	t.Run("Upsert rejects an account already linked to another user", func(t *testing.T) {
		owner := uuid.New()
		ownerCredential, err := integration.NewTrackerCredential(
			owner, "acct-300", "Owner", "access-owner", "cipher:owner", nil)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, ownerCredential))

		intruder := uuid.New()
		intruderCredential, err := integration.NewTrackerCredential(
			intruder, "acct-300", "Intruder", "access-intruder", "cipher:intruder", nil)
		require.NoError(t, err)

		err = repo.Upsert(ctx, intruderCredential)
		assert.ErrorIs(t, err, integration.ErrAccountAlreadyLinked)

		// The owner's credential is untouched and the intruder has none
		found, err := repo.Get(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, "access-owner", found.AccessSecret)

		_, err = repo.Get(ctx, intruder)
		assert.ErrorIs(t, err, integration.ErrCredentialNotFound)
	})

	t.Run("Delete removes the credential and tolerates absence", func(t *testing.T) {
		userID := uuid.New()
		credential, err := integration.NewTrackerCredential(
			userID, "acct-400", "Short Lived", "access-400", "cipher:400", nil)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, credential))

		require.NoError(t, repo.Delete(ctx, userID))

		_, err = repo.Get(ctx, userID)
		assert.ErrorIs(t, err, integration.ErrCredentialNotFound)

		// Deleting again is not an error
		require.NoError(t, repo.Delete(ctx, userID))
	})

	t.Run("RecordRefresh persists rotated secrets through Upsert", func(t *testing.T) {
		userID := uuid.New()
		expiresAt := time.Now().Add(30 * time.Minute).UTC()
		credential, err := integration.NewTrackerCredential(
			userID, "acct-500", "Refresh Target", "access-old", "cipher:old", &expiresAt)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, credential))

		newExpiry := time.Now().Add(2 * time.Hour).UTC()
		credential.RecordRefresh("access-new", "cipher:new", &newExpiry)
		require.NoError(t, repo.Upsert(ctx, credential))

		found, err := repo.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "access-new", found.AccessSecret)
		assert.Equal(t, "cipher:new", found.RefreshSecretCiphertext)
		require.NotNil(t, found.ExpiresAt)
		assert.WithinDuration(t, newExpiry, *found.ExpiresAt, time.Second)
	})
}
