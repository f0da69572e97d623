package telemetry

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// GormCredentialMetricsProvider implements CredentialMetricsProvider using GORM.
// It queries the tracker_credentials table directly for aggregated metrics.
type GormCredentialMetricsProvider struct {
	db *gorm.DB
}

// NewGormCredentialMetricsProvider creates a new GormCredentialMetricsProvider.
func NewGormCredentialMetricsProvider(db *gorm.DB) *GormCredentialMetricsProvider {
	return &GormCredentialMetricsProvider{db: db}
}

// CountConnected returns the number of stored tracker connections.
func (p *GormCredentialMetricsProvider) CountConnected(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("tracker_credentials").
		Count(&count).Error

	return count, err
}

// CountExpiringWithin returns the number of connections whose access secret
// expires within the given window. Connections with no reported expiry are
// never counted.
func (p *GormCredentialMetricsProvider) CountExpiringWithin(ctx context.Context, window time.Duration) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("tracker_credentials").
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now().Add(window)).
		Count(&count).Error

	return count, err
}
