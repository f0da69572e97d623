package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/titledesk/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig configures the profiling label middleware.
type ProfilingConfig struct {
	// Enabled turns labeling on.
	Enabled bool
	// SkipPaths lists exact paths that run unlabeled.
	SkipPaths []string
	// SkipPathPrefixes lists path prefixes that run unlabeled.
	SkipPathPrefixes []string
}

// DefaultProfilingConfig skips the operational endpoints and the API docs.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled: true,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/metrics",
		},
		SkipPathPrefixes: []string{
			"/swagger",
			"/api-docs",
		},
	}
}

// Profiling labels requests with the default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig runs each request under pprof labels (controller,
// route, method) so CPU samples can be sliced per endpoint in Pyroscope.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}

	return func(c *gin.Context) {
		if skipPath(c.Request.URL.Path, cfg.SkipPaths, cfg.SkipPathPrefixes) {
			c.Next()
			return
		}

		telemetry.WithProfilingLabels(c.Request.Context(), requestProfileLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// skipPath reports whether a path matches an exact entry or a prefix.
func skipPath(path string, exact, prefixes []string) bool {
	for _, skip := range exact {
		if path == skip {
			return true
		}
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// requestProfileLabels keeps to the matched route pattern, never the raw
// path, so label cardinality stays bounded.
func requestProfileLabels(c *gin.Context) map[string]string {
	labels := map[string]string{
		telemetry.ProfilingLabelMethod: c.Request.Method,
	}
	if route := c.FullPath(); route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
		if controller := routeController(route); controller != "" {
			labels[telemetry.ProfilingLabelController] = controller
		}
	}
	return labels
}

// routeController names the resource a route serves: "/api/v1/orders/:id"
// becomes "orders".
func routeController(route string) string {
	for _, part := range strings.Split(route, "/") {
		switch {
		case part == "", part == "api", isAPIVersion(part):
		case strings.HasPrefix(part, ":"), strings.HasPrefix(part, "*"):
		default:
			return part
		}
	}
	return ""
}

func isAPIVersion(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
