// Package middleware provides HTTP middleware for the TitleDesk backend.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/titledesk/backend/internal/infrastructure/telemetry"
)

// HTTPMetricsConfig configures the HTTP metrics middleware.
type HTTPMetricsConfig struct {
	// MeterProvider supplies the meter. Metrics are skipped when nil or disabled.
	MeterProvider *telemetry.MeterProvider
	// ServiceName becomes the instrumentation scope of the meter.
	ServiceName string
	// Enabled turns collection on.
	Enabled bool
}

// passthrough stands in for any middleware that is switched off.
func passthrough(c *gin.Context) {
	c.Next()
}

// HTTPMetrics records request count, latency, size, and in-flight gauges for
// every routed request.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passthrough
	}

	scope := cfg.ServiceName
	if scope == "" {
		scope = "http.server"
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter(scope), true)
}

// HTTPMetricsWithMeter builds the middleware on a caller-supplied meter.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passthrough
	}

	inst, err := newHTTPInstruments(meter)
	if err != nil {
		return passthrough
	}

	return func(c *gin.Context) {
		start := time.Now()
		requestBytes := max(c.Request.ContentLength, 0)

		inst.inFlight.Add(c.Request.Context(), 1)
		c.Next()
		inst.inFlight.Add(c.Request.Context(), -1)

		inst.record(c, start, requestBytes)
	}
}

type httpInstruments struct {
	requests     *telemetry.Counter
	latency      *telemetry.Histogram
	requestSize  *telemetry.Histogram
	responseSize *telemetry.Histogram
	inFlight     metric.Int64UpDownCounter
}

var (
	requestSizeBuckets  = []float64{100, 500, 1_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000}
	responseSizeBuckets = []float64{100, 500, 1_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000, 5_000_000}
)

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	inst := &httpInstruments{}

	var err error
	if inst.requests, err = telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}"); err != nil {
		return nil, err
	}
	if inst.latency, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if inst.requestSize, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_size_bytes",
		Description: "HTTP request body size distribution in bytes",
		Unit:        "By",
		Boundaries:  requestSizeBuckets,
	}); err != nil {
		return nil, err
	}
	if inst.responseSize, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  responseSizeBuckets,
	}); err != nil {
		return nil, err
	}
	if inst.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}

	return inst, nil
}

// record labels by the matched route pattern rather than the raw path so
// that parameterized routes stay at one series.
func (m *httpInstruments) record(c *gin.Context, start time.Time, requestBytes int64) {
	ctx := c.Request.Context()

	route := c.FullPath()
	if route == "" {
		route = "unknown"
	}
	scope := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(route),
	}

	m.requests.Inc(ctx, append(scope, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
	m.latency.RecordDuration(ctx, time.Since(start), scope...)

	if requestBytes > 0 {
		m.requestSize.Record(ctx, float64(requestBytes), scope...)
	}
	if size := c.Writer.Size(); size > 0 {
		m.responseSize.Record(ctx, float64(size), scope...)
	}
}
