package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/titledesk/backend/internal/domain/title"
	"github.com/titledesk/backend/internal/infrastructure/persistence/models"
)

// GormOrderReader implements the read-only order access using GORM
type GormOrderReader struct {
	db *gorm.DB
}

// NewGormOrderReader creates a new GormOrderReader
func NewGormOrderReader(db *gorm.DB) *GormOrderReader {
	return &GormOrderReader{db: db}
}

// FindByID loads an order with its reports and leases
func (r *GormOrderReader) FindByID(ctx context.Context, id uuid.UUID) (*title.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Reports.Leases").
		Preload("Reports").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, title.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormOrderReader implements OrderReader
var _ title.OrderReader = (*GormOrderReader)(nil)
