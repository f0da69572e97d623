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

// Pending selection errors
var (
	// ErrSelectionExpired indicates no pending selection exists for the user.
	// A never-created selection and an expired one are indistinguishable;
	// both mean the authorization flow has to be restarted.
	ErrSelectionExpired = errors.New("integration: pending selection expired or not found")
	// ErrInvalidSelection indicates the chosen account is not among the
	// stored candidates
	ErrInvalidSelection = errors.New("integration: chosen account is not a selection candidate")
)

const (
	// PendingSelectionTTL is the absolute lifetime of a pending selection
	PendingSelectionTTL = 15 * time.Minute
	// MaxCandidateAccounts caps the stored candidate list; authorizations
	// offering more are truncated and the truncation is logged
	MaxCandidateAccounts = 20
)

// ---------------------------------------------------------------------------
// PendingSelection Value Object
// ---------------------------------------------------------------------------

// CandidateAccount is one destination account offered by an authorization
type CandidateAccount struct {
	// ID is the tracker account identifier
	ID string `json:"id"`
	// Name is the account display name
	Name string `json:"name"`
}

// PendingSelection holds an authorization result that offered more than one
// destination account, between the OAuth callback and the user's choice. It
// lives only in the session store, never in durable storage, and expires
// 15 minutes after creation. Expiry is checked lazily on read; there is no
// background sweeper.
type PendingSelection struct {
	// UserID is the internal user the selection belongs to
	UserID uuid.UUID `json:"user_id"`
	// Candidates are the selectable accounts, in provider order, capped at
	// MaxCandidateAccounts
	Candidates []CandidateAccount `json:"candidates"`
	// AccessSecret is the not-yet-committed access secret
	AccessSecret string `json:"access_secret"`
	// RefreshSecretCiphertext is the not-yet-committed refresh secret,
	// already encrypted
	RefreshSecretCiphertext string `json:"refresh_secret_ciphertext"`
	// ExpiresAt is when the access secret expires, nil when unreported
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// CreatedAt is when the selection was stored
	CreatedAt time.Time `json:"created_at"`
}

// NewPendingSelection creates a pending selection. Candidate lists longer
// than MaxCandidateAccounts are truncated; the caller is expected to log the
// truncation. Fewer than two candidates is a caller bug: zero and one are
// handled at the authorization boundary without a selection.
func NewPendingSelection(
	userID uuid.UUID,
	candidates []CandidateAccount,
	accessSecret string,
	refreshSecretCiphertext string,
	expiresAt *time.Time,
) (*PendingSelection, bool, error) {
	if userID == uuid.Nil {
		return nil, false, ErrCredentialInvalidUserID
	}
	if len(candidates) < 2 {
		return nil, false, ErrInvalidSelection
	}
	if accessSecret == "" || refreshSecretCiphertext == "" {
		return nil, false, ErrCredentialMissingSecrets
	}

	truncated := false
	if len(candidates) > MaxCandidateAccounts {
		candidates = candidates[:MaxCandidateAccounts]
		truncated = true
	}

	return &PendingSelection{
		UserID:                  userID,
		Candidates:              append([]CandidateAccount(nil), candidates...),
		AccessSecret:            accessSecret,
		RefreshSecretCiphertext: refreshSecretCiphertext,
		ExpiresAt:               expiresAt,
		CreatedAt:               time.Now(),
	}, truncated, nil
}

// Candidate returns the candidate with the given id. Matching is on exact,
// case-sensitive id equality.
func (s *PendingSelection) Candidate(accountID string) (CandidateAccount, bool) {
	for _, c := range s.Candidates {
		if c.ID == accountID {
			return c, true
		}
	}
	return CandidateAccount{}, false
}

// ---------------------------------------------------------------------------
// SelectionStore Interface
// ---------------------------------------------------------------------------

// SelectionStore holds pending selections for their 15-minute lifetime.
// Implementations expire entries on TTL; reads past the TTL behave exactly
// like reads of entries that never existed.
type SelectionStore interface {
	// Begin stores the user's pending selection with the standard TTL,
	// replacing any previous one (last writer wins)
	Begin(ctx context.Context, selection *PendingSelection) error

	// Peek returns the user's pending selection without consuming it, or
	// ErrSelectionExpired
	Peek(ctx context.Context, userID uuid.UUID) (*PendingSelection, error)

	// Clear removes the user's pending selection. Clearing an absent
	// selection is not an error.
	Clear(ctx context.Context, userID uuid.UUID) error

	// Close releases store resources
	Close() error
}

// ---------------------------------------------------------------------------
// StateStore Interface
// ---------------------------------------------------------------------------

// StateStore holds one-shot OAuth state nonces for CSRF protection on the
// authorization callback.
type StateStore interface {
	// PutState stores the user's state nonce with a TTL, replacing any
	// previous one
	PutState(ctx context.Context, userID uuid.UUID, state string, ttl time.Duration) error

	// TakeState returns and consumes the user's state nonce. An absent or
	// expired nonce returns ErrAuthorizationFailed.
	TakeState(ctx context.Context, userID uuid.UUID) (string, error)
}
