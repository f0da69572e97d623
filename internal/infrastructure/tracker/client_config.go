package tracker

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ClientConfig holds configuration for the task tracker API client
type ClientConfig struct {
	// APIBaseURL is the base URL for the tracker API
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// RateLimit is the retry policy applied to 429 responses
	RateLimit BackoffPolicy
	// ServerError is the retry policy applied to 5xx responses and
	// transport failures
	ServerError BackoffPolicy
}

// Errors for tracker client configuration
var (
	ErrConfigMissingBaseURL = errors.New("tracker: api base url is required")
	ErrConfigInvalidBackoff = errors.New("tracker: invalid backoff policy")
)

// NewClientConfig creates a tracker client configuration with the default
// retry schedule (429: 3 retries, 5xx: 2 retries, both at 1s/2s/4s)
func NewClientConfig(apiBaseURL string) *ClientConfig {
	return &ClientConfig{
		APIBaseURL:     apiBaseURL,
		TimeoutSeconds: 30,
		RateLimit: BackoffPolicy{
			MaxRetries:      3,
			InitialInterval: time.Second,
			Multiplier:      2.0,
		},
		ServerError: BackoffPolicy{
			MaxRetries:      2,
			InitialInterval: time.Second,
			Multiplier:      2.0,
		},
	}
}

// Validate validates the tracker client configuration
func (c *ClientConfig) Validate() error {
	if c.APIBaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if err := c.RateLimit.validate(); err != nil {
		return err
	}
	return c.ServerError.validate()
}

// BackoffPolicy bounds the retry loop for one failure class. The schedule is
// exponential without jitter so the worst-case stall stays predictable.
type BackoffPolicy struct {
	// MaxRetries is the number of retries after the initial attempt
	MaxRetries int
	// InitialInterval is the delay before the first retry
	InitialInterval time.Duration
	// Multiplier scales the delay after every retry
	Multiplier float64
}

func (p BackoffPolicy) validate() error {
	if p.MaxRetries < 0 || p.InitialInterval <= 0 || p.Multiplier < 1 {
		return ErrConfigInvalidBackoff
	}
	return nil
}

// NewBackOff builds the schedule for one request's retry loop
func (p BackoffPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
