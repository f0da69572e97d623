package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/infrastructure/security"
)

// TokenConfig contains configuration for access secret management
type TokenConfig struct {
	// ExpirySkew is the clock allowance applied when deciding whether a
	// stored access secret is still usable
	ExpirySkew time.Duration
}

// DefaultTokenConfig returns default configuration
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		ExpirySkew: 30 * time.Second,
	}
}

// TokenService supplies tracker access secrets on top of the credential
// store and the identity provider. Stored refresh secrets are decrypted only
// for the duration of a refresh exchange; rotated ones are re-encrypted
// before the credential is written back.
type TokenService struct {
	credentials integration.TrackerCredentialRepository
	provider    integration.IdentityProvider
	cipher      security.SecretCipher
	logger      *zap.Logger
	config      TokenConfig
}

// NewTokenService creates a new token service
func NewTokenService(
	credentials integration.TrackerCredentialRepository,
	provider integration.IdentityProvider,
	cipher security.SecretCipher,
	logger *zap.Logger,
	config TokenConfig,
) *TokenService {
	return &TokenService{
		credentials: credentials,
		provider:    provider,
		cipher:      cipher,
		logger:      logger,
		config:      config,
	}
}

// AccessSecret returns the user's stored access secret, refreshing it first
// when the stored expiry (less the configured skew) has passed. Users
// without a credential surface ErrCredentialNotFound.
func (s *TokenService) AccessSecret(ctx context.Context, userID uuid.UUID) (string, error) {
	credential, err := s.credentials.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	if !credential.IsExpired(s.config.ExpirySkew) {
		return credential.AccessSecret, nil
	}

	s.logger.Debug("Access secret expired, refreshing proactively",
		zap.String("user_id", userID.String()))

	return s.refresh(ctx, credential)
}

// RefreshAccessSecret forces a refresh exchange regardless of the stored
// expiry and returns the new access secret
func (s *TokenService) RefreshAccessSecret(ctx context.Context, userID uuid.UUID) (string, error) {
	credential, err := s.credentials.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.refresh(ctx, credential)
}

// refresh runs one refresh exchange and persists the outcome. The credential
// is never deleted here: a rejected refresh secret surfaces ErrReauthRequired
// and the user reconnects on their own schedule.
func (s *TokenService) refresh(ctx context.Context, credential *integration.TrackerCredential) (string, error) {
	refreshSecret, err := s.cipher.Decrypt(credential.RefreshSecretCiphertext)
	if err != nil {
		s.logger.Error("Stored refresh secret is unreadable",
			zap.String("user_id", credential.UserID.String()),
			zap.Error(err))
		return "", fmt.Errorf("%w: stored refresh secret is unreadable", integration.ErrReauthRequired)
	}

	grant, err := s.provider.Refresh(ctx, refreshSecret)
	if err != nil {
		s.logger.Warn("Refresh exchange failed",
			zap.String("user_id", credential.UserID.String()),
			zap.Error(err))
		return "", err
	}

	rotatedCiphertext := ""
	if grant.RefreshSecret != "" {
		rotatedCiphertext, err = s.cipher.Encrypt(grant.RefreshSecret)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt rotated refresh secret: %w", err)
		}
	}

	credential.RecordRefresh(grant.AccessSecret, rotatedCiphertext, grant.ExpiresAt)
	if err := s.credentials.Upsert(ctx, credential); err != nil {
		return "", fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	s.logger.Info("Refreshed tracker access secret",
		zap.String("user_id", credential.UserID.String()),
		zap.Bool("refresh_secret_rotated", grant.RefreshSecret != ""))

	return grant.AccessSecret, nil
}

var _ integration.TokenProvider = (*TokenService)(nil)
