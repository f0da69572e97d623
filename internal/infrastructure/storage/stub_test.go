package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubDeliveryStore(t *testing.T) {
	store := NewStubDeliveryStore()

	t.Run("builds deterministic download links", func(t *testing.T) {
		link, err := store.ResolveDeliveryLink(context.Background(), "deliveries/2024-0101.zip")

		require.NoError(t, err)
		assert.Contains(t, link, "https://storage.example.com/download/deliveries/2024-0101.zip")
		assert.Contains(t, link, "expires=")
	})

	t.Run("honours a custom base URL", func(t *testing.T) {
		custom := &StubDeliveryStore{BaseURL: "https://files.titledesk.test"}

		link, err := custom.ResolveDeliveryLink(context.Background(), "deliveries/a.zip")

		require.NoError(t, err)
		assert.Contains(t, link, "https://files.titledesk.test/download/deliveries/a.zip")
	})

	t.Run("requires an object key", func(t *testing.T) {
		_, err := store.ResolveDeliveryLink(context.Background(), "")

		assert.ErrorContains(t, err, "object key is required")
	})
}
