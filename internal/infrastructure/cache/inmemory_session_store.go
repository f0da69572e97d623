package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/titledesk/backend/internal/domain/integration"
)

// InMemorySessionStore keeps pending selections and OAuth state nonces in
// process memory. Suitable for single-instance deployments and testing.
// WARNING: in-memory sessions do not survive restarts and are not shared
// across instances, so the authorization callback must reach the instance
// that started the flow.
type InMemorySessionStore struct {
	selections *ttlcache.Cache[string, *integration.PendingSelection]
	states     *ttlcache.Cache[string, string]
}

// NewInMemorySessionStore creates a new in-memory session store.
// Touch-on-hit is disabled on both caches so reads never stretch the TTL.
func NewInMemorySessionStore() *InMemorySessionStore {
	selections := ttlcache.New(
		ttlcache.WithTTL[string, *integration.PendingSelection](integration.PendingSelectionTTL),
		ttlcache.WithDisableTouchOnHit[string, *integration.PendingSelection](),
	)
	states := ttlcache.New(
		ttlcache.WithTTL[string, string](integration.PendingSelectionTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	// Start the cleanup goroutines
	go selections.Start()
	go states.Start()

	return &InMemorySessionStore{
		selections: selections,
		states:     states,
	}
}

// Begin stores a pending selection under the user's key until it expires.
// A later Begin for the same user replaces the earlier selection.
func (s *InMemorySessionStore) Begin(_ context.Context, selection *integration.PendingSelection) error {
	ttl := time.Until(selection.CreatedAt.Add(integration.PendingSelectionTTL))
	if ttl <= 0 {
		return integration.ErrSelectionExpired
	}
	s.selections.Set(selection.UserID.String(), selection, ttl)
	return nil
}

// Peek returns the user's pending selection without consuming it.
// Returns ErrSelectionExpired when none is stored or the TTL has elapsed.
func (s *InMemorySessionStore) Peek(_ context.Context, userID uuid.UUID) (*integration.PendingSelection, error) {
	item := s.selections.Get(userID.String())
	if item == nil {
		return nil, integration.ErrSelectionExpired
	}
	return item.Value(), nil
}

// Clear removes the user's pending selection. Clearing an absent selection
// is not an error.
func (s *InMemorySessionStore) Clear(_ context.Context, userID uuid.UUID) error {
	s.selections.Delete(userID.String())
	return nil
}

// PutState stores the user's OAuth state nonce for the authorization flow
func (s *InMemorySessionStore) PutState(_ context.Context, userID uuid.UUID, state string, ttl time.Duration) error {
	s.states.Set(userID.String(), state, ttl)
	return nil
}

// TakeState returns and consumes the user's state nonce. An absent or
// expired nonce returns ErrAuthorizationFailed.
func (s *InMemorySessionStore) TakeState(_ context.Context, userID uuid.UUID) (string, error) {
	item := s.states.Get(userID.String())
	if item == nil {
		return "", integration.ErrAuthorizationFailed
	}
	s.states.Delete(userID.String())
	return item.Value(), nil
}

// Close stops the cleanup goroutines
func (s *InMemorySessionStore) Close() error {
	s.selections.Stop()
	s.states.Stop()
	return nil
}

// Ensure InMemorySessionStore implements both session ports
var (
	_ integration.SelectionStore = (*InMemorySessionStore)(nil)
	_ integration.StateStore     = (*InMemorySessionStore)(nil)
)
