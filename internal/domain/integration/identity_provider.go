package integration

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Identity Provider Values
// ---------------------------------------------------------------------------

// TokenGrant is the result of a code or refresh exchange at the provider's
// token endpoint. Secrets are plaintext here; encryption happens before
// anything is stored.
type TokenGrant struct {
	// AccessSecret is the short-lived access secret
	AccessSecret string
	// RefreshSecret is the long-lived refresh secret. Refresh exchanges may
	// leave it empty when the provider does not rotate.
	RefreshSecret string
	// ExpiresAt is when the access secret expires, nil when unreported
	ExpiresAt *time.Time
}

// AuthorizedIdentity is the provider's answer to "who authorized, and which
// destination accounts can they use"
type AuthorizedIdentity struct {
	// ProviderUserID is the provider-side identifier of the authorizing user
	ProviderUserID string
	// Accounts are the candidate destination accounts, in provider order
	Accounts []CandidateAccount
}

// ---------------------------------------------------------------------------
// IdentityProvider Interface
// ---------------------------------------------------------------------------

// IdentityProvider defines the port interface for the tracker's OAuth 2.0
// identity provider (authorization-code flow).
type IdentityProvider interface {
	// AuthorizationURL builds the provider authorization redirect for the
	// given CSRF state token
	AuthorizationURL(state string) string

	// Exchange trades an authorization code for a token grant. Provider
	// rejections surface as ErrAuthorizationFailed.
	Exchange(ctx context.Context, code string) (*TokenGrant, error)

	// Refresh trades a refresh secret for a fresh token grant. Provider
	// rejections (revoked or invalid refresh secret) surface as
	// ErrReauthRequired; transport failures as ErrTrackerTransient.
	Refresh(ctx context.Context, refreshSecret string) (*TokenGrant, error)

	// AuthorizedAccounts introspects an access secret and returns the
	// authorized identity with its candidate destination accounts
	AuthorizedAccounts(ctx context.Context, accessSecret string) (*AuthorizedIdentity, error)
}
