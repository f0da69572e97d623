package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titledesk/backend/internal/domain/integration"
)

func testSelection(t *testing.T, userID uuid.UUID) *integration.PendingSelection {
	t.Helper()
	sel, _, err := integration.NewPendingSelection(userID, []integration.CandidateAccount{
		{ID: "100", Name: "Acme Title Co"},
		{ID: "200", Name: "Basin Abstracting"},
	}, "access", "cipher", nil)
	require.NoError(t, err)
	return sel
}

func TestInMemorySessionStore_Selections(t *testing.T) {
	store := NewInMemorySessionStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("peek returns stored selection", func(t *testing.T) {
		userID := uuid.New()
		sel := testSelection(t, userID)

		require.NoError(t, store.Begin(ctx, sel))

		got, err := store.Peek(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, got.UserID)
		assert.Len(t, got.Candidates, 2)
	})

	t.Run("peek does not consume", func(t *testing.T) {
		userID := uuid.New()
		require.NoError(t, store.Begin(ctx, testSelection(t, userID)))

		_, err := store.Peek(ctx, userID)
		require.NoError(t, err)
		_, err = store.Peek(ctx, userID)
		assert.NoError(t, err)
	})

	t.Run("peek of unknown user fails", func(t *testing.T) {
		_, err := store.Peek(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrSelectionExpired)
	})

	t.Run("expired selection behaves like absent", func(t *testing.T) {
		userID := uuid.New()
		sel := testSelection(t, userID)
		// Backdate so only 10ms of the lifetime remains
		sel.CreatedAt = time.Now().Add(-integration.PendingSelectionTTL + 10*time.Millisecond)

		require.NoError(t, store.Begin(ctx, sel))
		time.Sleep(20 * time.Millisecond)

		_, err := store.Peek(ctx, userID)
		assert.ErrorIs(t, err, integration.ErrSelectionExpired)
	})

	t.Run("begin with elapsed lifetime fails", func(t *testing.T) {
		userID := uuid.New()
		sel := testSelection(t, userID)
		sel.CreatedAt = time.Now().Add(-integration.PendingSelectionTTL - time.Second)

		assert.ErrorIs(t, store.Begin(ctx, sel), integration.ErrSelectionExpired)
	})

	t.Run("later begin replaces earlier selection", func(t *testing.T) {
		userID := uuid.New()
		first := testSelection(t, userID)
		require.NoError(t, store.Begin(ctx, first))

		second, _, err := integration.NewPendingSelection(userID, []integration.CandidateAccount{
			{ID: "300", Name: "Cimarron Land"},
			{ID: "400", Name: "Dakota Records"},
		}, "access-2", "cipher-2", nil)
		require.NoError(t, err)
		require.NoError(t, store.Begin(ctx, second))

		got, err := store.Peek(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "300", got.Candidates[0].ID)
	})

	t.Run("clear removes selection", func(t *testing.T) {
		userID := uuid.New()
		require.NoError(t, store.Begin(ctx, testSelection(t, userID)))

		require.NoError(t, store.Clear(ctx, userID))

		_, err := store.Peek(ctx, userID)
		assert.ErrorIs(t, err, integration.ErrSelectionExpired)
	})

	t.Run("clear of absent selection is not an error", func(t *testing.T) {
		assert.NoError(t, store.Clear(ctx, uuid.New()))
	})
}

func TestInMemorySessionStore_States(t *testing.T) {
	store := NewInMemorySessionStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("take returns stored nonce once", func(t *testing.T) {
		userID := uuid.New()
		require.NoError(t, store.PutState(ctx, userID, "nonce-1", time.Minute))

		state, err := store.TakeState(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "nonce-1", state)

		// Second take must fail
		_, err = store.TakeState(ctx, userID)
		assert.ErrorIs(t, err, integration.ErrAuthorizationFailed)
	})

	t.Run("take of unknown user fails", func(t *testing.T) {
		_, err := store.TakeState(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrAuthorizationFailed)
	})

	t.Run("expired nonce fails the take", func(t *testing.T) {
		userID := uuid.New()
		require.NoError(t, store.PutState(ctx, userID, "nonce-2", 10*time.Millisecond))

		time.Sleep(20 * time.Millisecond)

		_, err := store.TakeState(ctx, userID)
		assert.ErrorIs(t, err, integration.ErrAuthorizationFailed)
	})
}

func TestInMemorySessionStore_Close(t *testing.T) {
	store := NewInMemorySessionStore()

	// Close should not panic and should return nil
	err := store.Close()
	assert.NoError(t, err)
}
