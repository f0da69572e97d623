package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/titledesk/backend/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from the provider (1MB)
const maxResponseSize = 1 * 1024 * 1024

// Provider implements the IdentityProvider interface against the tracker's
// OAuth 2.0 authorization-code endpoints.
type Provider struct {
	config     *ProviderConfig
	oauth      *oauth2.Config
	httpClient *http.Client
}

// NewProvider creates a new identity provider client with the given configuration
func NewProvider(config *ProviderConfig) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Provider{
		config: config,
		oauth:  config.oauthConfig(),
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// AuthorizationURL builds the provider authorization redirect carrying the
// CSRF state token. Offline access is requested so the grant includes a
// refresh secret.
func (p *Provider) AuthorizationURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token grant
func (p *Provider) Exchange(ctx context.Context, code string) (*integration.TokenGrant, error) {
	token, err := p.oauth.Exchange(p.withHTTPClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAuthorizationFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: provider returned an empty access secret", integration.ErrAuthorizationFailed)
	}
	return grantFromToken(token), nil
}

// Refresh trades a refresh secret for a fresh token grant. A provider
// rejection of the secret means the connection must be re-established;
// transport and server failures stay transient.
func (p *Provider) Refresh(ctx context.Context, refreshSecret string) (*integration.TokenGrant, error) {
	source := p.oauth.TokenSource(p.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshSecret})

	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %v", integration.ErrReauthRequired, err)
		}
		return nil, fmt.Errorf("%w: %v", integration.ErrTrackerTransient, err)
	}
	return grantFromToken(token), nil
}

// AuthorizedAccounts introspects an access secret and returns the authorized
// identity with its candidate destination accounts
func (p *Provider) AuthorizedAccounts(ctx context.Context, accessSecret string) (*integration.AuthorizedIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.AccountsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrTrackerTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrTrackerTransient, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrTrackerTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrAuthorizationFailed, resp.StatusCode)
	}

	var payload authorizedAccountsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrTrackerTransient, err)
	}
	if payload.User == nil || payload.User.ID == 0 {
		return nil, fmt.Errorf("%w: provider returned no user identity", integration.ErrAuthorizationFailed)
	}

	identity := &integration.AuthorizedIdentity{
		ProviderUserID: strconv.FormatInt(payload.User.ID, 10),
		Accounts:       make([]integration.CandidateAccount, 0, len(payload.Accounts)),
	}
	for _, account := range payload.Accounts {
		identity.Accounts = append(identity.Accounts, integration.CandidateAccount{
			ID:   strconv.FormatInt(account.ID, 10),
			Name: account.Name,
		})
	}
	return identity, nil
}

// withHTTPClient pins the provider's timeout-bounded client into the context
// used by the x/oauth2 transport
func (p *Provider) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// grantFromToken converts an x/oauth2 token into a domain grant
func grantFromToken(token *oauth2.Token) *integration.TokenGrant {
	grant := &integration.TokenGrant{
		AccessSecret:  token.AccessToken,
		RefreshSecret: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		grant.ExpiresAt = &expiry
	}
	return grant
}

// ---------------------------------------------------------------------------
// Wire Types
// ---------------------------------------------------------------------------

type authorizedAccountsResponse struct {
	User     *userPayload     `json:"user"`
	Accounts []accountPayload `json:"accounts"`
}

type userPayload struct {
	ID int64 `json:"id"`
}

type accountPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Ensure Provider implements IdentityProvider interface
var _ integration.IdentityProvider = (*Provider)(nil)
