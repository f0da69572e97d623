package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/titledesk/backend/internal/domain/integration"
)

// newMockTrackerCredentialRepository creates a GormTrackerCredentialRepository with a mocked SQL connection
func newMockTrackerCredentialRepository(t *testing.T) (*GormTrackerCredentialRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormTrackerCredentialRepository(gormDB), mock, mockDB
}

func testCredential(t *testing.T, userID uuid.UUID) *integration.TrackerCredential {
	expiry := time.Now().Add(time.Hour)
	credential, err := integration.NewTrackerCredential(
		userID,
		"9001",
		"Basin Title LLC",
		"access-secret",
		"refresh-ciphertext",
		&expiry,
	)
	require.NoError(t, err)
	return credential
}

func TestNewGormTrackerCredentialRepository(t *testing.T) {
	t.Run("creates repository with valid DB", func(t *testing.T) {
		repo, _, mockDB := newMockTrackerCredentialRepository(t)
		defer mockDB.Close()

		assert.NotNil(t, repo)
		assert.NotNil(t, repo.db)
	})
}

func TestGormTrackerCredentialRepository_Get(t *testing.T) {
	t.Run("finds existing credential", func(t *testing.T) {
		repo, mock, mockDB := newMockTrackerCredentialRepository(t)
		defer mockDB.Close()

		credentialID := uuid.New()
		userID := uuid.New()
		now := time.Now()

		rows := sqlmock.NewRows([]string{
			"id", "user_id", "external_account_id", "external_account_name",
			"access_secret", "refresh_secret_ciphertext", "expires_at", "created_at", "updated_at",
		}).AddRow(credentialID, userID, "9001", "Basin Title LLC", "access-secret", "refresh-ciphertext", nil, now, now)

		mock.ExpectQuery(`SELECT \* FROM "tracker_credentials" WHERE user_id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(userID, 1).
			WillReturnRows(rows)

		credential, err := repo.Get(context.Background(), userID)

		assert.NoError(t, err)
		assert.NotNil(t, credential)
		assert.Equal(t, credentialID, credential.ID)
		assert.Equal(t, userID, credential.UserID)
		assert.Equal(t, "9001", credential.ExternalAccountID)
		assert.Equal(t, "access-secret", credential.AccessSecret)
		assert.Nil(t, credential.ExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns sentinel for missing credential", func(t *testing.T) {
		repo, mock, mockDB := newMockTrackerCredentialRepository(t)
		defer mockDB.Close()

		userID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "tracker_credentials" WHERE user_id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(userID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		credential, err := repo.Get(context.Background(), userID)

		assert.ErrorIs(t, err, integration.ErrCredentialNotFound)
		assert.Nil(t, credential)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTrackerCredentialRepository_Upsert(t *testing.T) {
	t.Run("inserts with conflict handling on user id", func(t *testing.T) {
		repo, mock, mockDB := newMockTrackerCredentialRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "tracker_credentials" .* ON CONFLICT \("user_id"\) DO UPDATE SET .*`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.Upsert(context.Background(), testCredential(t, uuid.New()))

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("translates account conflict", func(t *testing.T) {
		repo, mock, mockDB := newMockTrackerCredentialRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "tracker_credentials" .* ON CONFLICT \("user_id"\) DO UPDATE SET .*`).
			WillReturnError(gorm.ErrDuplicatedKey)

		err := repo.Upsert(context.Background(), testCredential(t, uuid.New()))

		assert.ErrorIs(t, err, integration.ErrAccountAlreadyLinked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTrackerCredentialRepository_Delete(t *testing.T) {
	t.Run("deletes existing credential", func(t *testing.T) {
		repo, mock, mockDB := newMockTrackerCredentialRepository(t)
		defer mockDB.Close()

		userID := uuid.New()

		mock.ExpectExec(`DELETE FROM "tracker_credentials" WHERE user_id = \$1`).
			WithArgs(userID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Delete(context.Background(), userID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deleting absent credential is not an error", func(t *testing.T) {
		repo, mock, mockDB := newMockTrackerCredentialRepository(t)
		defer mockDB.Close()

		userID := uuid.New()

		mock.ExpectExec(`DELETE FROM "tracker_credentials" WHERE user_id = \$1`).
			WithArgs(userID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.Background(), userID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
