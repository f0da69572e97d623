package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/orders", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return router
}

func doRequest(router *gin.Engine, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	t.Run("generates an id when the request has none", func(t *testing.T) {
		var inContext string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/orders", func(c *gin.Context) {
			inContext = c.GetString("request_id")
			c.Status(http.StatusOK)
		})

		w := doRequest(router, http.MethodGet, "/orders", nil)

		echoed := w.Header().Get("X-Request-ID")
		require.NotEmpty(t, echoed)
		assert.Equal(t, echoed, inContext)

		_, err := uuid.Parse(echoed)
		assert.NoError(t, err, "generated id should be a UUID")
	})

	t.Run("keeps an incoming id", func(t *testing.T) {
		router := okRouter(RequestID())

		w := doRequest(router, http.MethodGet, "/orders", map[string]string{"X-Request-ID": "req-upstream-1"})

		assert.Equal(t, "req-upstream-1", w.Header().Get("X-Request-ID"))
	})

	t.Run("ids differ between requests", func(t *testing.T) {
		router := okRouter(RequestID())

		first := doRequest(router, http.MethodGet, "/orders", nil).Header().Get("X-Request-ID")
		second := doRequest(router, http.MethodGet, "/orders", nil).Header().Get("X-Request-ID")

		assert.NotEqual(t, first, second)
	})
}

func TestCORSWithConfig(t *testing.T) {
	allowed := CORSConfig{
		AllowOrigins:     []string{"https://app.titledesk.example"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	}

	t.Run("allowed origin gets the full grant", func(t *testing.T) {
		router := okRouter(CORSWithConfig(allowed))

		w := doRequest(router, http.MethodGet, "/orders", map[string]string{"Origin": "https://app.titledesk.example"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.titledesk.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
		assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("unknown origin gets no headers but the request proceeds", func(t *testing.T) {
		router := okRouter(CORSWithConfig(allowed))

		w := doRequest(router, http.MethodGet, "/orders", map[string]string{"Origin": "https://evil.example"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight is answered with 204", func(t *testing.T) {
		router := okRouter(CORSWithConfig(allowed))

		w := doRequest(router, http.MethodOptions, "/orders", map[string]string{"Origin": "https://app.titledesk.example"})

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.titledesk.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("preflight from an unknown origin still gets 204, without headers", func(t *testing.T) {
		router := okRouter(CORSWithConfig(allowed))

		w := doRequest(router, http.MethodOptions, "/orders", map[string]string{"Origin": "https://evil.example"})

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard allows every origin without credentials", func(t *testing.T) {
		cfg := allowed
		cfg.AllowOrigins = []string{"*"}
		router := okRouter(CORSWithConfig(cfg))

		w := doRequest(router, http.MethodGet, "/orders", map[string]string{"Origin": "https://anywhere.example"})

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"),
			"credentials must not be granted together with a wildcard origin")
	})

	t.Run("default config allows nothing until configured", func(t *testing.T) {
		router := okRouter(CORS())

		w := doRequest(router, http.MethodGet, "/orders", map[string]string{"Origin": "https://app.titledesk.example"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecure(t *testing.T) {
	t.Run("default header set", func(t *testing.T) {
		router := okRouter(Secure())

		w := doRequest(router, http.MethodGet, "/orders", nil)

		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
		assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")
		assert.Contains(t, w.Header().Get("Permissions-Policy"), "camera=()")
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "HSTS is off by default")
	})

	t.Run("HSTS header is assembled from config", func(t *testing.T) {
		router := okRouter(SecureWithConfig(SecurityConfig{
			HSTSEnabled:           true,
			HSTSMaxAge:            31536000,
			HSTSIncludeSubdomains: true,
			HSTSPreload:           true,
		}))

		w := doRequest(router, http.MethodGet, "/orders", nil)

		assert.Equal(t, "max-age=31536000; includeSubDomains; preload", w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("CSP and Permissions-Policy can be disabled", func(t *testing.T) {
		router := okRouter(SecureWithConfig(SecurityConfig{}))

		w := doRequest(router, http.MethodGet, "/orders", nil)

		assert.Empty(t, w.Header().Get("Content-Security-Policy"))
		assert.Empty(t, w.Header().Get("Permissions-Policy"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"), "static headers are always present")
	})
}
