package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/infrastructure/persistence/models"
)

// GormTrackerCredentialRepository implements TrackerCredentialRepository using GORM
type GormTrackerCredentialRepository struct {
	db *gorm.DB
}

// NewGormTrackerCredentialRepository creates a new GormTrackerCredentialRepository
func NewGormTrackerCredentialRepository(db *gorm.DB) *GormTrackerCredentialRepository {
	return &GormTrackerCredentialRepository{db: db}
}

// ---------------------------------------------------------------------------
// TrackerCredentialReader implementation
// ---------------------------------------------------------------------------

// Get returns the user's credential
func (r *GormTrackerCredentialRepository) Get(ctx context.Context, userID uuid.UUID) (*integration.TrackerCredential, error) {
	var model models.TrackerCredentialModel
	if err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrCredentialNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ---------------------------------------------------------------------------
// TrackerCredentialWriter implementation
// ---------------------------------------------------------------------------

// Upsert creates the user's credential or replaces it in place. The user_id
// conflict is absorbed by the upsert clause, so a remaining duplicate-key
// error can only come from the external account index.
func (r *GormTrackerCredentialRepository) Upsert(ctx context.Context, credential *integration.TrackerCredential) error {
	model := models.TrackerCredentialModelFromDomain(credential)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"external_account_id",
				"external_account_name",
				"access_secret",
				"refresh_secret_ciphertext",
				"expires_at",
				"updated_at",
			}),
		}).
		Create(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return integration.ErrAccountAlreadyLinked
	}
	return err
}

// Delete removes the user's credential. Deleting an absent credential is a no-op.
func (r *GormTrackerCredentialRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.TrackerCredentialModel{}, "user_id = ?", userID).Error
}

// Ensure GormTrackerCredentialRepository implements TrackerCredentialRepository
var _ integration.TrackerCredentialRepository = (*GormTrackerCredentialRepository)(nil)
