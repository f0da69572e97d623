package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/infrastructure/security"
)

// MockTrackerCredentialRepository is a mock implementation of TrackerCredentialRepository
type MockTrackerCredentialRepository struct {
	mock.Mock
}

func (m *MockTrackerCredentialRepository) Get(ctx context.Context, userID uuid.UUID) (*integration.TrackerCredential, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TrackerCredential), args.Error(1)
}

func (m *MockTrackerCredentialRepository) Upsert(ctx context.Context, credential *integration.TrackerCredential) error {
	args := m.Called(ctx, credential)
	return args.Error(0)
}

func (m *MockTrackerCredentialRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

var _ integration.TrackerCredentialRepository = (*MockTrackerCredentialRepository)(nil)

// MockIdentityProvider is a mock implementation of IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) AuthorizationURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code string) (*integration.TokenGrant, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenGrant), args.Error(1)
}

func (m *MockIdentityProvider) Refresh(ctx context.Context, refreshSecret string) (*integration.TokenGrant, error) {
	args := m.Called(ctx, refreshSecret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenGrant), args.Error(1)
}

func (m *MockIdentityProvider) AuthorizedAccounts(ctx context.Context, accessSecret string) (*integration.AuthorizedIdentity, error) {
	args := m.Called(ctx, accessSecret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.AuthorizedIdentity), args.Error(1)
}

var _ integration.IdentityProvider = (*MockIdentityProvider)(nil)

// MockSecretCipher is a mock implementation of SecretCipher
type MockSecretCipher struct {
	mock.Mock
}

func (m *MockSecretCipher) Encrypt(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *MockSecretCipher) Decrypt(ciphertext string) (string, error) {
	args := m.Called(ciphertext)
	return args.String(0), args.Error(1)
}

var _ security.SecretCipher = (*MockSecretCipher)(nil)

// Test fixtures
var testUserID = uuid.New()

func createTestCredential(t *testing.T, expiresAt *time.Time) *integration.TrackerCredential {
	t.Helper()
	credential, err := integration.NewTrackerCredential(
		testUserID, "9001", "Basin Title LLC", "access-secret", "refresh-ciphertext", expiresAt)
	if err != nil {
		t.Fatalf("failed to create test credential: %v", err)
	}
	return credential
}

func newTokenService(credentials *MockTrackerCredentialRepository, provider *MockIdentityProvider, cipher *MockSecretCipher) *TokenService {
	return NewTokenService(credentials, provider, cipher, zap.NewNop(), DefaultTokenConfig())
}

// ---------------------------------------------------------------------------
// AccessSecret Tests
// ---------------------------------------------------------------------------

func TestAccessSecret_Fresh(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	mockRepo.On("Get", ctx, testUserID).Return(createTestCredential(t, &future), nil)

	secret, err := service.AccessSecret(ctx, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, "access-secret", secret)
	mockRepo.AssertExpectations(t)
	mockProvider.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestAccessSecret_NoExpiryNeverRefreshes(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	mockRepo.On("Get", ctx, testUserID).Return(createTestCredential(t, nil), nil)

	secret, err := service.AccessSecret(ctx, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, "access-secret", secret)
	mockProvider.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestAccessSecret_ExpiredRefreshesProactively(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	credential := createTestCredential(t, &past)
	newExpiry := time.Now().Add(time.Hour)

	mockRepo.On("Get", ctx, testUserID).Return(credential, nil)
	mockCipher.On("Decrypt", "refresh-ciphertext").Return("refresh-plain", nil)
	mockProvider.On("Refresh", ctx, "refresh-plain").Return(&integration.TokenGrant{
		AccessSecret:  "new-access",
		RefreshSecret: "new-refresh",
		ExpiresAt:     &newExpiry,
	}, nil)
	mockCipher.On("Encrypt", "new-refresh").Return("new-ciphertext", nil)
	mockRepo.On("Upsert", ctx, credential).Return(nil)

	secret, err := service.AccessSecret(ctx, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, "new-access", secret)
	assert.Equal(t, "new-access", credential.AccessSecret)
	assert.Equal(t, "new-ciphertext", credential.RefreshSecretCiphertext)
	mockRepo.AssertExpectations(t)
	mockProvider.AssertExpectations(t)
	mockCipher.AssertExpectations(t)
}

func TestAccessSecret_SkewTriggersEarlyRefresh(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	// inside the 30s skew window, so still treated as expired
	almostExpired := time.Now().Add(10 * time.Second)
	credential := createTestCredential(t, &almostExpired)

	mockRepo.On("Get", ctx, testUserID).Return(credential, nil)
	mockCipher.On("Decrypt", "refresh-ciphertext").Return("refresh-plain", nil)
	mockProvider.On("Refresh", ctx, "refresh-plain").Return(&integration.TokenGrant{AccessSecret: "new-access"}, nil)
	mockRepo.On("Upsert", ctx, credential).Return(nil)

	secret, err := service.AccessSecret(ctx, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, "new-access", secret)
	mockProvider.AssertExpectations(t)
}

func TestAccessSecret_NotConnected(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	mockRepo.On("Get", ctx, testUserID).Return(nil, integration.ErrCredentialNotFound)

	secret, err := service.AccessSecret(ctx, testUserID)

	assert.Error(t, err)
	assert.Empty(t, secret)
	assert.ErrorIs(t, err, integration.ErrCredentialNotFound)
}

// ---------------------------------------------------------------------------
// RefreshAccessSecret Tests
// ---------------------------------------------------------------------------

func TestRefreshAccessSecret_Success(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	// not expired, the refresh still runs because the caller saw a 401
	future := time.Now().Add(time.Hour)
	credential := createTestCredential(t, &future)
	newExpiry := time.Now().Add(2 * time.Hour)

	mockRepo.On("Get", ctx, testUserID).Return(credential, nil)
	mockCipher.On("Decrypt", "refresh-ciphertext").Return("refresh-plain", nil)
	mockProvider.On("Refresh", ctx, "refresh-plain").Return(&integration.TokenGrant{
		AccessSecret:  "new-access",
		RefreshSecret: "new-refresh",
		ExpiresAt:     &newExpiry,
	}, nil)
	mockCipher.On("Encrypt", "new-refresh").Return("new-ciphertext", nil)
	mockRepo.On("Upsert", ctx, credential).Return(nil)

	secret, err := service.RefreshAccessSecret(ctx, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, "new-access", secret)
	mockRepo.AssertExpectations(t)
	mockProvider.AssertExpectations(t)
}

func TestRefreshAccessSecret_NonRotatingProvider(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	credential := createTestCredential(t, nil)

	mockRepo.On("Get", ctx, testUserID).Return(credential, nil)
	mockCipher.On("Decrypt", "refresh-ciphertext").Return("refresh-plain", nil)
	mockProvider.On("Refresh", ctx, "refresh-plain").Return(&integration.TokenGrant{AccessSecret: "new-access"}, nil)
	mockRepo.On("Upsert", ctx, credential).Return(nil)

	secret, err := service.RefreshAccessSecret(ctx, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, "new-access", secret)
	// empty rotation keeps the previous ciphertext
	assert.Equal(t, "refresh-ciphertext", credential.RefreshSecretCiphertext)
	mockCipher.AssertNotCalled(t, "Encrypt", mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestRefreshAccessSecret_ProviderRejects(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	credential := createTestCredential(t, nil)

	mockRepo.On("Get", ctx, testUserID).Return(credential, nil)
	mockCipher.On("Decrypt", "refresh-ciphertext").Return("refresh-plain", nil)
	mockProvider.On("Refresh", ctx, "refresh-plain").Return(nil, integration.ErrReauthRequired)

	secret, err := service.RefreshAccessSecret(ctx, testUserID)

	assert.Error(t, err)
	assert.Empty(t, secret)
	assert.ErrorIs(t, err, integration.ErrReauthRequired)
	// the credential survives a rejected refresh
	mockRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRefreshAccessSecret_ProviderOutage(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	mockRepo.On("Get", ctx, testUserID).Return(createTestCredential(t, nil), nil)
	mockCipher.On("Decrypt", "refresh-ciphertext").Return("refresh-plain", nil)
	mockProvider.On("Refresh", ctx, "refresh-plain").Return(nil, integration.ErrTrackerTransient)

	_, err := service.RefreshAccessSecret(ctx, testUserID)

	assert.ErrorIs(t, err, integration.ErrTrackerTransient)
	mockRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestRefreshAccessSecret_UnreadableCiphertext(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	mockRepo.On("Get", ctx, testUserID).Return(createTestCredential(t, nil), nil)
	mockCipher.On("Decrypt", "refresh-ciphertext").Return("", errors.New("cipher: message authentication failed"))

	_, err := service.RefreshAccessSecret(ctx, testUserID)

	assert.ErrorIs(t, err, integration.ErrReauthRequired)
	mockProvider.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestRefreshAccessSecret_PersistFailure(t *testing.T) {
	mockRepo := new(MockTrackerCredentialRepository)
	mockProvider := new(MockIdentityProvider)
	mockCipher := new(MockSecretCipher)
	service := newTokenService(mockRepo, mockProvider, mockCipher)
	ctx := context.Background()

	credential := createTestCredential(t, nil)

	mockRepo.On("Get", ctx, testUserID).Return(credential, nil)
	mockCipher.On("Decrypt", "refresh-ciphertext").Return("refresh-plain", nil)
	mockProvider.On("Refresh", ctx, "refresh-plain").Return(&integration.TokenGrant{AccessSecret: "new-access"}, nil)
	mockRepo.On("Upsert", ctx, credential).Return(errors.New("connection reset"))

	secret, err := service.RefreshAccessSecret(ctx, testUserID)

	assert.Error(t, err)
	assert.Empty(t, secret)
	assert.Contains(t, err.Error(), "failed to persist refreshed credential")
}
