package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/titledesk/backend/internal/infrastructure/auth"
	"github.com/titledesk/backend/internal/infrastructure/config"
	"github.com/titledesk/backend/internal/infrastructure/logger"
	"github.com/titledesk/backend/internal/interfaces/http/dto"
)

func newTestJWTService(accessTTL time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		RefreshSecret:          "test-refresh-secret-key-32-chars",
		AccessTokenExpiration:  accessTTL,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "titledesk-test",
		MaxRefreshCount:        10,
	})
}

func mintTokenPair(t *testing.T, svc *auth.JWTService) (*auth.TokenPair, auth.GenerateTokenInput) {
	t.Helper()
	input := auth.GenerateTokenInput{UserID: uuid.New(), Username: "recorder"}
	pair, err := svc.GenerateTokenPair(input)
	require.NoError(t, err)
	return pair, input
}

// failingBlacklist errors on every lookup.
type failingBlacklist struct{}

func (failingBlacklist) AddToBlacklist(context.Context, string, time.Duration) error { return nil }
func (failingBlacklist) AddUserTokensToBlacklist(context.Context, string, time.Duration) error {
	return nil
}
func (failingBlacklist) IsBlacklisted(context.Context, string) (bool, error) {
	return false, assert.AnError
}
func (failingBlacklist) IsUserTokenInvalidated(context.Context, string, time.Time) (bool, error) {
	return false, assert.AnError
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	pair, input := mintTokenPair(t, svc)

	t.Run("valid token reaches the handler with identity in context", func(t *testing.T) {
		var claims *auth.Claims
		var userID, ctxUserID string
		router := gin.New()
		router.Use(JWTAuthMiddleware(svc))
		router.GET("/orders", func(c *gin.Context) {
			claims = GetJWTClaims(c)
			userID = GetJWTUserID(c)
			ctxUserID = logger.GetUserID(c.Request.Context())
			c.String(http.StatusOK, "ok")
		})

		w := doRequest(router, http.MethodGet, "/orders", map[string]string{
			"Authorization": "Bearer " + pair.AccessToken,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, claims)
		assert.Equal(t, input.UserID.String(), claims.UserID)
		assert.Equal(t, input.Username, claims.Username)
		assert.Equal(t, input.UserID.String(), userID)
		assert.Equal(t, input.UserID.String(), ctxUserID)
	})

	rejected := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", dto.ErrCodeUnauthorized},
		{"non-bearer header", "Basic dXNlcjpwYXNz", dto.ErrCodeTokenInvalid},
		{"empty bearer token", "Bearer ", dto.ErrCodeTokenInvalid},
		{"garbage token", "Bearer not-a-jwt", dto.ErrCodeTokenInvalid},
		{"refresh token on an access endpoint", "Bearer " + pair.RefreshToken, dto.ErrCodeTokenInvalid},
	}
	for _, tc := range rejected {
		t.Run(tc.name+" is rejected", func(t *testing.T) {
			headers := map[string]string{}
			if tc.header != "" {
				headers["Authorization"] = tc.header
			}
			w := doRequest(okRouter(JWTAuthMiddleware(svc)), http.MethodGet, "/orders", headers)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}

	t.Run("expired token is rejected with its own code", func(t *testing.T) {
		expiredSvc := newTestJWTService(-time.Hour)
		expiredPair, _ := mintTokenPair(t, expiredSvc)

		w := doRequest(okRouter(JWTAuthMiddleware(expiredSvc)), http.MethodGet, "/orders", map[string]string{
			"Authorization": "Bearer " + expiredPair.AccessToken,
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeTokenExpired)
	})

	t.Run("rejections are logged with the request path", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		cfg := DefaultJWTConfig(svc)
		cfg.Logger = zap.New(core)

		w := doRequest(okRouter(JWTAuthMiddlewareWithConfig(cfg)), http.MethodGet, "/orders", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		entries := logs.FilterMessage("authentication failed").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "/orders", entries[0].ContextMap()["path"])
	})
}

func TestJWTAuthMiddleware_SkipRules(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)

	t.Run("default operational paths need no token", func(t *testing.T) {
		router := gin.New()
		router.Use(JWTAuthMiddleware(svc))
		for _, path := range []string{"/health", "/healthz", "/ready", "/api/v1/health"} {
			router.GET(path, func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		}

		for _, path := range []string{"/health", "/healthz", "/ready", "/api/v1/health"} {
			w := doRequest(router, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusOK, w.Code, path)
		}
	})

	t.Run("configured exact path is skipped", func(t *testing.T) {
		cfg := DefaultJWTConfig(svc)
		cfg.SkipPaths = append(cfg.SkipPaths, "/orders")

		w := doRequest(okRouter(JWTAuthMiddlewareWithConfig(cfg)), http.MethodGet, "/orders", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("configured prefix covers nested paths", func(t *testing.T) {
		cfg := DefaultJWTConfig(svc)
		cfg.SkipPathPrefixes = append(cfg.SkipPathPrefixes, "/public")

		router := gin.New()
		router.Use(JWTAuthMiddlewareWithConfig(cfg))
		router.GET("/public/titles/plan.pdf", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		w := doRequest(router, http.MethodGet, "/public/titles/plan.pdf", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestJWTAuthMiddleware_Blacklist(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)

	t.Run("revoked jti is rejected", func(t *testing.T) {
		pair, _ := mintTokenPair(t, svc)
		claims, err := svc.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)

		blacklist := auth.NewInMemoryTokenBlacklist()
		require.NoError(t, blacklist.AddToBlacklist(context.Background(), claims.ID, time.Hour))

		cfg := DefaultJWTConfig(svc)
		cfg.TokenBlacklist = blacklist

		w := doRequest(okRouter(JWTAuthMiddlewareWithConfig(cfg)), http.MethodGet, "/orders", map[string]string{
			"Authorization": "Bearer " + pair.AccessToken,
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeTokenRevoked)
	})

	t.Run("forced logout invalidates tokens issued earlier", func(t *testing.T) {
		pair, input := mintTokenPair(t, svc)

		blacklist := auth.NewInMemoryTokenBlacklist()
		require.NoError(t, blacklist.AddUserTokensToBlacklist(context.Background(), input.UserID.String(), time.Hour))

		cfg := DefaultJWTConfig(svc)
		cfg.TokenBlacklist = blacklist

		w := doRequest(okRouter(JWTAuthMiddlewareWithConfig(cfg)), http.MethodGet, "/orders", map[string]string{
			"Authorization": "Bearer " + pair.AccessToken,
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeTokenRevoked)
	})

	t.Run("lookup failures log but do not reject", func(t *testing.T) {
		pair, _ := mintTokenPair(t, svc)

		core, logs := observer.New(zap.ErrorLevel)
		cfg := DefaultJWTConfig(svc)
		cfg.TokenBlacklist = failingBlacklist{}
		cfg.Logger = zap.New(core)

		w := doRequest(okRouter(JWTAuthMiddlewareWithConfig(cfg)), http.MethodGet, "/orders", map[string]string{
			"Authorization": "Bearer " + pair.AccessToken,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, logs.FilterMessage("token blacklist lookup failed").All())
	})
}

func TestJWTContextAccessors_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTUserID(c))
}
