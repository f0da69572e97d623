package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/titledesk/backend/internal/infrastructure/telemetry"
)

// maxRequestIDLength caps request IDs taken from client headers.
const maxRequestIDLength = 128

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	// ServiceName identifies the tracer that records server spans.
	ServiceName string
	// Enabled turns span creation on.
	Enabled bool
}

// TracingWithConfig starts a server span per request, named
// "METHOD route_pattern", and propagates incoming trace context. The rest of
// the middleware chain and the handler run inside the span.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnrichment tags the live server span with the request ID, the
// authenticated user, and an error status for 4xx/5xx responses. It must sit
// after TracingWithConfig; the user tag appears once the auth middleware has
// run, because the enrichment happens on the way out. Clients get the trace
// ID back in an X-Trace-ID header so support tickets can name the trace.
func SpanEnrichment() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := RequestIDFromContext(c); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if traceID := telemetry.GetTraceID(c.Request.Context()); traceID != "" {
				c.Header("X-Trace-ID", traceID)
			}
		}

		c.Next()

		if !span.IsRecording() {
			return
		}
		if userID := GetJWTUserID(c); userID != "" {
			span.SetAttributes(attribute.String("user_id", userID))
		}
		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			msg := http.StatusText(status)
			if msg == "" {
				msg = "request failed"
			}
			span.SetStatus(codes.Error, msg)
		}
	}
}
