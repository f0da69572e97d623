package integration

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/infrastructure/security"
)

// ConnectConfig contains configuration for the authorization flow
type ConnectConfig struct {
	// StateTTL bounds the window between issuing the authorization redirect
	// and the provider calling back
	StateTTL time.Duration
}

// DefaultConnectConfig returns default configuration
func DefaultConnectConfig() ConnectConfig {
	return ConnectConfig{
		StateTTL: 10 * time.Minute,
	}
}

// ConnectedAccount identifies the external account a credential points at.
// It carries no secrets and is safe to return to clients.
type ConnectedAccount struct {
	AccountID   string
	AccountName string
}

// ConnectResult is the outcome of a completed authorization callback. Either
// the account was linked directly (single candidate) or the user still has
// to choose one.
type ConnectResult struct {
	// SelectionRequired reports whether an account choice is still pending
	SelectionRequired bool
	// Account is the linked account, set when SelectionRequired is false
	Account *ConnectedAccount
	// Candidates are the selectable accounts, set when SelectionRequired is true
	Candidates []integration.CandidateAccount
}

// ConnectionStatus reports whether and where a user is connected
type ConnectionStatus struct {
	Connected   bool
	AccountID   string
	AccountName string
}

// ConnectService runs the tracker authorization flow: state-protected
// redirect, code exchange, destination account selection, and credential
// linking. Refresh secrets are encrypted the moment the exchange returns;
// nothing downstream of this service ever sees them in plaintext.
type ConnectService struct {
	credentials integration.TrackerCredentialRepository
	provider    integration.IdentityProvider
	selections  integration.SelectionStore
	states      integration.StateStore
	cipher      security.SecretCipher
	logger      *zap.Logger
	config      ConnectConfig
}

// NewConnectService creates a new connect service
func NewConnectService(
	credentials integration.TrackerCredentialRepository,
	provider integration.IdentityProvider,
	selections integration.SelectionStore,
	states integration.StateStore,
	cipher security.SecretCipher,
	logger *zap.Logger,
	config ConnectConfig,
) *ConnectService {
	return &ConnectService{
		credentials: credentials,
		provider:    provider,
		selections:  selections,
		states:      states,
		cipher:      cipher,
		logger:      logger,
		config:      config,
	}
}

// BeginConnect issues a one-shot CSRF state nonce and returns the provider
// authorization URL to redirect the user to
func (s *ConnectService) BeginConnect(ctx context.Context, userID uuid.UUID) (string, error) {
	state, err := newStateNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	if err := s.states.PutState(ctx, userID, state, s.config.StateTTL); err != nil {
		return "", fmt.Errorf("failed to store state nonce: %w", err)
	}

	s.logger.Info("Started tracker authorization",
		zap.String("user_id", userID.String()))

	return s.provider.AuthorizationURL(state), nil
}

// CompleteConnect handles the provider callback: verifies and consumes the
// state nonce, exchanges the code, encrypts the refresh secret, and either
// links the single candidate account directly or stores a pending selection
// for the user to resolve.
func (s *ConnectService) CompleteConnect(ctx context.Context, userID uuid.UUID, state, code string) (*ConnectResult, error) {
	stored, err := s.states.TakeState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == "" || state != stored {
		return nil, fmt.Errorf("%w: state mismatch", integration.ErrAuthorizationFailed)
	}

	grant, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if grant.RefreshSecret == "" {
		return nil, fmt.Errorf("%w: provider returned no refresh secret", integration.ErrAuthorizationFailed)
	}
	refreshCiphertext, err := s.cipher.Encrypt(grant.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh secret: %w", err)
	}

	identity, err := s.provider.AuthorizedAccounts(ctx, grant.AccessSecret)
	if err != nil {
		return nil, err
	}

	if len(identity.Accounts) == 0 {
		return nil, fmt.Errorf("%w: authorization offered no destination accounts", integration.ErrAuthorizationFailed)
	}

	if len(identity.Accounts) == 1 {
		account := identity.Accounts[0]
		if err := s.link(ctx, userID, account, grant.AccessSecret, refreshCiphertext, grant.ExpiresAt); err != nil {
			return nil, err
		}
		s.logger.Info("Auto-selected single destination account",
			zap.String("user_id", userID.String()),
			zap.String("account_id", account.ID))
		return &ConnectResult{
			Account: &ConnectedAccount{AccountID: account.ID, AccountName: account.Name},
		}, nil
	}

	selection, truncated, err := integration.NewPendingSelection(
		userID, identity.Accounts, grant.AccessSecret, refreshCiphertext, grant.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if truncated {
		s.logger.Warn("Candidate account list truncated",
			zap.String("user_id", userID.String()),
			zap.Int("offered", len(identity.Accounts)),
			zap.Int("kept", integration.MaxCandidateAccounts))
	}
	if err := s.selections.Begin(ctx, selection); err != nil {
		return nil, fmt.Errorf("failed to store pending selection: %w", err)
	}

	s.logger.Info("Authorization pending account selection",
		zap.String("user_id", userID.String()),
		zap.Int("candidates", len(selection.Candidates)))

	return &ConnectResult{
		SelectionRequired: true,
		Candidates:        selection.Candidates,
	}, nil
}

// PendingCandidates returns the user's selectable accounts, or
// ErrSelectionExpired when no selection is pending
func (s *ConnectService) PendingCandidates(ctx context.Context, userID uuid.UUID) ([]integration.CandidateAccount, error) {
	selection, err := s.selections.Peek(ctx, userID)
	if err != nil {
		return nil, err
	}
	return selection.Candidates, nil
}

// CommitSelection links the chosen candidate account and clears the pending
// selection. An id outside the stored candidates fails with
// ErrInvalidSelection and leaves the selection intact for another attempt.
func (s *ConnectService) CommitSelection(ctx context.Context, userID uuid.UUID, accountID string) (*ConnectedAccount, error) {
	selection, err := s.selections.Peek(ctx, userID)
	if err != nil {
		return nil, err
	}

	account, ok := selection.Candidate(accountID)
	if !ok {
		return nil, fmt.Errorf("%w: account %q", integration.ErrInvalidSelection, accountID)
	}

	if err := s.link(ctx, userID, account, selection.AccessSecret, selection.RefreshSecretCiphertext, selection.ExpiresAt); err != nil {
		return nil, err
	}
	if err := s.selections.Clear(ctx, userID); err != nil {
		s.logger.Warn("Failed to clear committed selection",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}

	s.logger.Info("Committed destination account selection",
		zap.String("user_id", userID.String()),
		zap.String("account_id", account.ID))

	return &ConnectedAccount{AccountID: account.ID, AccountName: account.Name}, nil
}

// Status reports the user's connection state without exposing secrets
func (s *ConnectService) Status(ctx context.Context, userID uuid.UUID) (*ConnectionStatus, error) {
	credential, err := s.credentials.Get(ctx, userID)
	if errors.Is(err, integration.ErrCredentialNotFound) {
		return &ConnectionStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ConnectionStatus{
		Connected:   true,
		AccountID:   credential.ExternalAccountID,
		AccountName: credential.ExternalAccountName,
	}, nil
}

// Disconnect removes the user's credential. Disconnecting when not connected
// is not an error.
func (s *ConnectService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	if err := s.credentials.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	s.logger.Info("Disconnected tracker account",
		zap.String("user_id", userID.String()))
	return nil
}

func (s *ConnectService) link(ctx context.Context, userID uuid.UUID, account integration.CandidateAccount, accessSecret, refreshCiphertext string, expiresAt *time.Time) error {
	credential, err := integration.NewTrackerCredential(
		userID, account.ID, account.Name, accessSecret, refreshCiphertext, expiresAt)
	if err != nil {
		return err
	}
	return s.credentials.Upsert(ctx, credential)
}

func newStateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
