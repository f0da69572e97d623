package oauth

import (
	"errors"

	"golang.org/x/oauth2"
)

// Default configuration values
const (
	DefaultTimeoutSeconds = 30
)

// Provider configuration errors
var (
	ErrConfigMissingClientID     = errors.New("oauth: client id is required")
	ErrConfigMissingClientSecret = errors.New("oauth: client secret is required")
	ErrConfigMissingEndpoints    = errors.New("oauth: auth, token and accounts urls are required")
	ErrConfigMissingRedirectURI  = errors.New("oauth: redirect uri is required")
)

// ProviderConfig holds the tracker identity provider's OAuth 2.0 settings
type ProviderConfig struct {
	// ClientID is the registered application client id
	ClientID string
	// ClientSecret is the registered application client secret
	ClientSecret string
	// AuthURL is the provider's authorization endpoint
	AuthURL string
	// TokenURL is the provider's token endpoint
	TokenURL string
	// AccountsURL is the provider's authorization-introspection endpoint
	AccountsURL string
	// RedirectURI is where the provider sends the user back after consent
	RedirectURI string
	// Scopes are the requested authorization scopes
	Scopes []string
	// TimeoutSeconds is the HTTP timeout for provider calls
	TimeoutSeconds int
}

// Validate checks the configuration and applies defaults
func (c *ProviderConfig) Validate() error {
	if c.ClientID == "" {
		return ErrConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrConfigMissingClientSecret
	}
	if c.AuthURL == "" || c.TokenURL == "" || c.AccountsURL == "" {
		return ErrConfigMissingEndpoints
	}
	if c.RedirectURI == "" {
		return ErrConfigMissingRedirectURI
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	return nil
}

// oauthConfig builds the x/oauth2 configuration for this provider
func (c *ProviderConfig) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.AuthURL,
			TokenURL: c.TokenURL,
		},
	}
}
