// Package storage provides object storage access for order delivery files.
package storage

import (
	"context"
	"errors"
	"time"

	integrationapp "github.com/titledesk/backend/internal/application/integration"
)

// StubDeliveryStore is a placeholder implementation of DeliveryLinkResolver.
// It returns deterministic fake URLs instead of presigned ones.
// Use this for development until a real storage backend (S3, MinIO, etc.) is configured.
type StubDeliveryStore struct {
	// BaseURL is the base URL for generated download links
	// Defaults to "https://storage.example.com" if not set
	BaseURL string
}

// NewStubDeliveryStore creates a new StubDeliveryStore
func NewStubDeliveryStore() *StubDeliveryStore {
	return &StubDeliveryStore{
		BaseURL: "https://storage.example.com",
	}
}

// Ensure StubDeliveryStore implements DeliveryLinkResolver
var _ integrationapp.DeliveryLinkResolver = (*StubDeliveryStore)(nil)

// ResolveDeliveryLink generates a stub download URL for the delivery object
func (s *StubDeliveryStore) ResolveDeliveryLink(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", errors.New("object key is required")
	}

	expiresAt := time.Now().Add(7 * 24 * time.Hour)
	return s.BaseURL + "/download/" + objectKey + "?expires=" + expiresAt.Format(time.RFC3339), nil
}
