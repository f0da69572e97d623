package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError(t *testing.T) {
	t.Run("Error returns the message", func(t *testing.T) {
		err := NewDomainError("NOT_FOUND", "order 42 missing")
		assert.Equal(t, "order 42 missing", err.Error())
	})

	t.Run("sentinels match by code, not identity", func(t *testing.T) {
		err := NewDomainError("NOT_FOUND", "order 42 missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("different codes do not match", func(t *testing.T) {
		err := NewDomainError("ALREADY_EXISTS", "credential exists")
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("plain errors do not match sentinels", func(t *testing.T) {
		assert.NotErrorIs(t, errors.New("NOT_FOUND"), ErrNotFound)
	})

	t.Run("wrapping preserves the code", func(t *testing.T) {
		wrapped := fmt.Errorf("loading credential: %w", ErrConcurrencyConflict)
		assert.ErrorIs(t, wrapped, ErrConcurrencyConflict)

		var de *DomainError
		require.ErrorAs(t, wrapped, &de)
		assert.Equal(t, "CONCURRENCY_CONFLICT", de.Code)
	})
}
