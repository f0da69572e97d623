package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// PendingSelection Tests
// ---------------------------------------------------------------------------

func TestNewPendingSelection(t *testing.T) {
	userID := uuid.New()
	candidates := []CandidateAccount{
		{ID: "100", Name: "Acme Title Co"},
		{ID: "200", Name: "Basin Abstracting"},
	}

	t.Run("Valid selection", func(t *testing.T) {
		sel, truncated, err := NewPendingSelection(userID, candidates, "access", "cipher", nil)
		require.NoError(t, err)
		assert.False(t, truncated)
		assert.Equal(t, userID, sel.UserID)
		assert.Len(t, sel.Candidates, 2)
		assert.Equal(t, "access", sel.AccessSecret)
		assert.Equal(t, "cipher", sel.RefreshSecretCiphertext)
		assert.Nil(t, sel.ExpiresAt)
		assert.WithinDuration(t, time.Now(), sel.CreatedAt, 2*time.Second)
	})

	t.Run("Access expiry is carried", func(t *testing.T) {
		expiry := time.Now().Add(time.Hour)
		sel, _, err := NewPendingSelection(userID, candidates, "access", "cipher", &expiry)
		require.NoError(t, err)
		require.NotNil(t, sel.ExpiresAt)
		assert.Equal(t, expiry, *sel.ExpiresAt)
	})

	t.Run("Nil user ID", func(t *testing.T) {
		_, _, err := NewPendingSelection(uuid.Nil, candidates, "access", "cipher", nil)
		assert.ErrorIs(t, err, ErrCredentialInvalidUserID)
	})

	t.Run("Single candidate needs no selection", func(t *testing.T) {
		_, _, err := NewPendingSelection(userID, candidates[:1], "access", "cipher", nil)
		assert.ErrorIs(t, err, ErrInvalidSelection)
	})

	t.Run("Missing secrets", func(t *testing.T) {
		_, _, err := NewPendingSelection(userID, candidates, "", "cipher", nil)
		assert.ErrorIs(t, err, ErrCredentialMissingSecrets)
	})

	t.Run("Candidate list capped", func(t *testing.T) {
		many := make([]CandidateAccount, 0, MaxCandidateAccounts+5)
		for i := 0; i < MaxCandidateAccounts+5; i++ {
			many = append(many, CandidateAccount{ID: fmt.Sprintf("%d", i), Name: fmt.Sprintf("Account %d", i)})
		}

		sel, truncated, err := NewPendingSelection(userID, many, "access", "cipher", nil)
		require.NoError(t, err)
		assert.True(t, truncated)
		assert.Len(t, sel.Candidates, MaxCandidateAccounts)
	})

	t.Run("Candidates are copied", func(t *testing.T) {
		input := []CandidateAccount{
			{ID: "100", Name: "Acme Title Co"},
			{ID: "200", Name: "Basin Abstracting"},
		}
		sel, _, err := NewPendingSelection(userID, input, "access", "cipher", nil)
		require.NoError(t, err)

		input[0].Name = "mutated"
		assert.Equal(t, "Acme Title Co", sel.Candidates[0].Name)
	})
}

func TestPendingSelection_Candidate(t *testing.T) {
	userID := uuid.New()
	sel, _, err := NewPendingSelection(userID, []CandidateAccount{
		{ID: "100", Name: "Acme Title Co"},
		{ID: "200", Name: "Basin Abstracting"},
	}, "access", "cipher", nil)
	require.NoError(t, err)

	t.Run("Known account", func(t *testing.T) {
		acct, ok := sel.Candidate("200")
		require.True(t, ok)
		assert.Equal(t, "Basin Abstracting", acct.Name)
	})

	t.Run("Unknown account", func(t *testing.T) {
		_, ok := sel.Candidate("999")
		assert.False(t, ok)
	})

	t.Run("ID match is exact", func(t *testing.T) {
		_, ok := sel.Candidate(" 200")
		assert.False(t, ok)
	})
}
