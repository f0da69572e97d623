package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/titledesk/backend/internal/domain/integration"
)

// TrackerCredentialModel is the persistence model for the TrackerCredential
// domain entity. Both unique indexes back the one-credential-per-user and
// one-user-per-external-account invariants.
type TrackerCredentialModel struct {
	ID                      uuid.UUID  `gorm:"type:uuid;primary_key"`
	UserID                  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_tracker_credentials_user"`
	ExternalAccountID       string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_tracker_credentials_account"`
	ExternalAccountName     string     `gorm:"type:varchar(255)"`
	AccessSecret            string     `gorm:"type:text;not null"`
	RefreshSecretCiphertext string     `gorm:"type:text;not null"`
	ExpiresAt               *time.Time `gorm:"index"`
	CreatedAt               time.Time  `gorm:"not null"`
	UpdatedAt               time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TrackerCredentialModel) TableName() string {
	return "tracker_credentials"
}

// ToDomain converts the persistence model to a domain TrackerCredential entity.
func (m *TrackerCredentialModel) ToDomain() *integration.TrackerCredential {
	return &integration.TrackerCredential{
		ID:                      m.ID,
		UserID:                  m.UserID,
		ExternalAccountID:       m.ExternalAccountID,
		ExternalAccountName:     m.ExternalAccountName,
		AccessSecret:            m.AccessSecret,
		RefreshSecretCiphertext: m.RefreshSecretCiphertext,
		ExpiresAt:               m.ExpiresAt,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain TrackerCredential entity.
func (m *TrackerCredentialModel) FromDomain(c *integration.TrackerCredential) {
	m.ID = c.ID
	m.UserID = c.UserID
	m.ExternalAccountID = c.ExternalAccountID
	m.ExternalAccountName = c.ExternalAccountName
	m.AccessSecret = c.AccessSecret
	m.RefreshSecretCiphertext = c.RefreshSecretCiphertext
	m.ExpiresAt = c.ExpiresAt
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// TrackerCredentialModelFromDomain creates a new persistence model from a domain TrackerCredential entity.
func TrackerCredentialModelFromDomain(c *integration.TrackerCredential) *TrackerCredentialModel {
	m := &TrackerCredentialModel{}
	m.FromDomain(c)
	return m
}
