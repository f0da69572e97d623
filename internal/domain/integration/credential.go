package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// Credential errors
var (
	// ErrCredentialNotFound indicates the user has no connected tracker account
	ErrCredentialNotFound = errors.New("integration: tracker credential not found")
	// ErrAccountAlreadyLinked indicates the external account is already
	// connected by a different internal user
	ErrAccountAlreadyLinked = errors.New("integration: external account already linked to another user")
	// ErrCredentialInvalidUserID indicates a missing owner
	ErrCredentialInvalidUserID = errors.New("integration: invalid credential user ID")
	// ErrCredentialInvalidAccount indicates a missing external account id
	ErrCredentialInvalidAccount = errors.New("integration: invalid credential external account")
	// ErrCredentialMissingSecrets indicates access or refresh secret is missing
	ErrCredentialMissingSecrets = errors.New("integration: credential secrets are incomplete")
)

// ---------------------------------------------------------------------------
// TrackerCredential Entity
// ---------------------------------------------------------------------------

// TrackerCredential links one internal user to one external tracker account.
// At most one credential exists per user and per external account; both are
// enforced by storage constraints. The refresh secret is held only as
// ciphertext; plaintext exists transiently inside the token service.
type TrackerCredential struct {
	// ID is the unique identifier of this credential
	ID uuid.UUID
	// UserID is the owning internal user (unique)
	UserID uuid.UUID
	// ExternalAccountID is the tracker account identifier (unique)
	ExternalAccountID string
	// ExternalAccountName is the tracker account display name
	ExternalAccountName string
	// AccessSecret is the current short-lived access secret
	AccessSecret string
	// RefreshSecretCiphertext is the encrypted long-lived refresh secret
	RefreshSecretCiphertext string
	// ExpiresAt is when the access secret expires, nil when the provider did
	// not report one
	ExpiresAt *time.Time
	// CreatedAt is when this credential was created
	CreatedAt time.Time
	// UpdatedAt is when this credential was last updated
	UpdatedAt time.Time
}

// NewTrackerCredential creates a credential for a freshly authorized account
func NewTrackerCredential(
	userID uuid.UUID,
	externalAccountID string,
	externalAccountName string,
	accessSecret string,
	refreshSecretCiphertext string,
	expiresAt *time.Time,
) (*TrackerCredential, error) {
	if userID == uuid.Nil {
		return nil, ErrCredentialInvalidUserID
	}
	if externalAccountID == "" {
		return nil, ErrCredentialInvalidAccount
	}
	if accessSecret == "" || refreshSecretCiphertext == "" {
		return nil, ErrCredentialMissingSecrets
	}

	now := time.Now()
	return &TrackerCredential{
		ID:                      uuid.New(),
		UserID:                  userID,
		ExternalAccountID:       externalAccountID,
		ExternalAccountName:     externalAccountName,
		AccessSecret:            accessSecret,
		RefreshSecretCiphertext: refreshSecretCiphertext,
		ExpiresAt:               expiresAt,
		CreatedAt:               now,
		UpdatedAt:               now,
	}, nil
}

// RecordRefresh replaces the access secret after a successful refresh
// exchange. A rotated refresh secret, when the provider returned one, is
// stored as the new ciphertext; an empty value keeps the previous one.
func (c *TrackerCredential) RecordRefresh(accessSecret, refreshSecretCiphertext string, expiresAt *time.Time) {
	c.AccessSecret = accessSecret
	if refreshSecretCiphertext != "" {
		c.RefreshSecretCiphertext = refreshSecretCiphertext
	}
	c.ExpiresAt = expiresAt
	c.UpdatedAt = time.Now()
}

// IsExpired reports whether the access secret is past its expiry, allowing
// for the given clock skew. Credentials without a reported expiry are never
// considered expired; a stale secret then surfaces as a 401 and goes through
// the refresh-and-retry protocol instead.
func (c *TrackerCredential) IsExpired(skew time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(skew).After(*c.ExpiresAt)
}

// ---------------------------------------------------------------------------
// TrackerCredentialRepository Interface
// ---------------------------------------------------------------------------

// TrackerCredentialReader defines read access to credentials
type TrackerCredentialReader interface {
	// Get returns the user's credential or ErrCredentialNotFound
	Get(ctx context.Context, userID uuid.UUID) (*TrackerCredential, error)
}

// TrackerCredentialWriter defines write access to credentials
type TrackerCredentialWriter interface {
	// Upsert creates the user's credential or updates it in place. Returns
	// ErrAccountAlreadyLinked when the external account id belongs to a
	// different user's credential.
	Upsert(ctx context.Context, credential *TrackerCredential) error

	// Delete removes the user's credential. Deleting an absent credential is
	// not an error.
	Delete(ctx context.Context, userID uuid.UUID) error
}

// TrackerCredentialRepository defines the full credential persistence interface
type TrackerCredentialRepository interface {
	TrackerCredentialReader
	TrackerCredentialWriter
}
