package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides business metrics for the tracker integration.
// It tracks push activity per product type and the health of stored
// tracker connections.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	pushRequestedTotal  *Counter
	listsCreatedTotal   *Counter
	productFailureTotal *Counter

	// Gauge metrics (point-in-time values)
	connectedCredentials *Gauge
	expiringCredentials  *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	credentialProvider CredentialMetricsProvider
}

// CredentialMetricsProvider provides tracker credential data for periodic
// metrics collection. This interface allows the telemetry layer to query
// connection state without depending on the integration domain directly.
type CredentialMetricsProvider interface {
	// CountConnected returns the number of stored tracker connections
	CountConnected(ctx context.Context) (int64, error)

	// CountExpiringWithin returns the number of connections whose access
	// secret expires within the given window
	CountExpiringWithin(ctx context.Context, window time.Duration) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter              metric.Meter
	Logger             *zap.Logger
	CollectInterval    time.Duration // Default: 5 minutes
	CredentialProvider CredentialMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:              cfg.Meter,
		logger:             logger,
		stopChan:           make(chan struct{}),
		credentialProvider: cfg.CredentialProvider,
	}

	// Initialize counter metrics
	var err error

	// Push metrics
	bm.pushRequestedTotal, err = NewCounter(
		cfg.Meter,
		"titledesk_push_requested_total",
		"Total number of tracker pushes requested per product type",
		"{pushes}",
	)
	if err != nil {
		return nil, err
	}

	bm.listsCreatedTotal, err = NewCounter(
		cfg.Meter,
		"titledesk_push_lists_created_total",
		"Total number of work item lists created in the tracker",
		"{lists}",
	)
	if err != nil {
		return nil, err
	}

	bm.productFailureTotal, err = NewCounter(
		cfg.Meter,
		"titledesk_push_product_failures_total",
		"Total number of product types that failed to push",
		"{failures}",
	)
	if err != nil {
		return nil, err
	}

	// Connection gauge metrics
	bm.connectedCredentials, err = NewGauge(
		cfg.Meter,
		"titledesk_connected_credentials",
		"Current number of stored tracker connections",
		"{connections}",
	)
	if err != nil {
		return nil, err
	}

	bm.expiringCredentials, err = NewGauge(
		cfg.Meter,
		"titledesk_expiring_credentials",
		"Number of tracker connections whose access secret expires soon",
		"{connections}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Push Metrics
// =============================================================================

// RecordPushRequested records one product type attempted in a push.
// This should be called from the push handler for each attempted type.
func (bm *BusinessMetrics) RecordPushRequested(ctx context.Context, productType string) {
	bm.pushRequestedTotal.Inc(ctx,
		AttrProductType.String(productType),
	)
}

// RecordListsCreated records lists created in the tracker for a product type.
func (bm *BusinessMetrics) RecordListsCreated(ctx context.Context, productType string, count int64) {
	bm.listsCreatedTotal.Add(ctx, count,
		AttrProductType.String(productType),
	)
}

// RecordProductFailure records a product type that failed to push.
func (bm *BusinessMetrics) RecordProductFailure(ctx context.Context, productType string) {
	bm.productFailureTotal.Inc(ctx,
		AttrProductType.String(productType),
	)
}

// =============================================================================
// Connection Metrics
// =============================================================================

// RecordConnectedCredentials records the current number of stored connections.
// This is a gauge metric that should be updated periodically.
func (bm *BusinessMetrics) RecordConnectedCredentials(ctx context.Context, count int64) {
	bm.connectedCredentials.Record(ctx, count)
}

// RecordExpiringCredentials records the number of connections expiring soon.
// This is a gauge metric that should be updated periodically.
func (bm *BusinessMetrics) RecordExpiringCredentials(ctx context.Context, count int64) {
	bm.expiringCredentials.Record(ctx, count)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// ExpiryWindow is the lookahead used when counting soon-to-expire connections.
const ExpiryWindow = 1 * time.Hour

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects connection metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectCredentialMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectCredentialMetrics(ctx)
		}
	}
}

// collectCredentialMetrics collects connection gauge metrics.
func (bm *BusinessMetrics) collectCredentialMetrics(ctx context.Context) {
	if bm.credentialProvider == nil {
		bm.logger.Debug("No credential provider configured, skipping connection metrics collection")
		return
	}

	connected, err := bm.credentialProvider.CountConnected(ctx)
	if err != nil {
		bm.logger.Warn("Failed to count stored tracker connections", zap.Error(err))
	} else {
		bm.RecordConnectedCredentials(ctx, connected)
	}

	expiring, err := bm.credentialProvider.CountExpiringWithin(ctx, ExpiryWindow)
	if err != nil {
		bm.logger.Warn("Failed to count expiring tracker connections", zap.Error(err))
	} else {
		bm.RecordExpiringCredentials(ctx, expiring)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
