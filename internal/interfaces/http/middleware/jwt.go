package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/titledesk/backend/internal/infrastructure/auth"
	"github.com/titledesk/backend/internal/infrastructure/logger"
	"github.com/titledesk/backend/internal/interfaces/http/dto"
)

// Context keys under which the middleware stores the authenticated identity.
const (
	JWTClaimsKey = "jwt_claims"
	JWTUserIDKey = "jwt_user_id"
)

const bearerPrefix = "Bearer "

var (
	errNoAuthHeader = errors.New("authorization header missing")
	errNotBearer    = errors.New("authorization header is not a bearer token")
)

// JWTMiddlewareConfig configures the JWT authentication middleware.
type JWTMiddlewareConfig struct {
	// JWTService validates access tokens. Required.
	JWTService *auth.JWTService
	// TokenBlacklist rejects revoked tokens when set.
	TokenBlacklist auth.TokenBlacklist
	// SkipPaths lists exact paths served without authentication.
	SkipPaths []string
	// SkipPathPrefixes lists path prefixes served without authentication.
	SkipPathPrefixes []string
	// Logger records rejected requests and blacklist lookup failures.
	Logger *zap.Logger
}

// DefaultJWTConfig skips the operational endpoints and the API docs.
func DefaultJWTConfig(jwtService *auth.JWTService) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/metrics",
			"/api/v1/health",
		},
		SkipPathPrefixes: []string{
			"/swagger",
			"/api-docs",
		},
	}
}

// JWTAuthMiddleware authenticates requests with the default configuration.
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(DefaultJWTConfig(jwtService))
}

// JWTAuthMiddlewareWithConfig authenticates requests carrying a bearer access
// token. Validated claims land in the gin context under JWTClaimsKey and
// JWTUserIDKey, and the request-scoped logger picks up the user ID.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipAuth(cfg, c.Request.URL.Path) {
			c.Next()
			return
		}

		token, err := bearerToken(c)
		if err != nil {
			rejectAuth(c, cfg, err)
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(token)
		if err != nil {
			rejectAuth(c, cfg, err)
			return
		}

		if tokenRevoked(c, cfg, claims) {
			rejectAuth(c, cfg, auth.ErrTokenBlacklisted)
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTUserIDKey, claims.UserID)

		ctx := c.Request.Context()
		ctx, _ = logger.WithUserID(ctx, logger.FromContext(ctx), claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func skipAuth(cfg JWTMiddlewareConfig, path string) bool {
	return skipPath(path, cfg.SkipPaths, cfg.SkipPathPrefixes)
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errNoAuthHeader
	}
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || strings.TrimSpace(token) == "" {
		return "", errNotBearer
	}
	return token, nil
}

// tokenRevoked checks the blacklist for the token's JTI and for a forced
// logout of the whole user. Lookup errors are logged and treated as not
// revoked.
func tokenRevoked(c *gin.Context, cfg JWTMiddlewareConfig, claims *auth.Claims) bool {
	if cfg.TokenBlacklist == nil {
		return false
	}
	ctx := c.Request.Context()

	if claims.ID != "" {
		revoked, err := cfg.TokenBlacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			logBlacklistFailure(cfg, "jti", err)
		} else if revoked {
			return true
		}
	}

	invalidated, err := cfg.TokenBlacklist.IsUserTokenInvalidated(ctx, claims.UserID, claims.GetIssuedAtTime())
	if err != nil {
		logBlacklistFailure(cfg, "user", err)
		return false
	}
	return invalidated
}

func logBlacklistFailure(cfg JWTMiddlewareConfig, scope string, err error) {
	if cfg.Logger != nil {
		cfg.Logger.Error("token blacklist lookup failed",
			zap.String("scope", scope),
			zap.Error(err))
	}
}

func rejectAuth(c *gin.Context, cfg JWTMiddlewareConfig, err error) {
	if cfg.Logger != nil {
		cfg.Logger.Warn("authentication failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err))
	}
	code, message := authErrorCode(err)
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message))
}

// authErrorCode maps a validation failure to a response code and a client
// facing message that does not echo token internals.
func authErrorCode(err error) (code, message string) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return dto.ErrCodeTokenExpired, "Access token has expired"
	case errors.Is(err, auth.ErrTokenBlacklisted):
		return dto.ErrCodeTokenRevoked, "Access token has been revoked"
	case errors.Is(err, errNoAuthHeader):
		return dto.ErrCodeUnauthorized, "Authentication required"
	case errors.Is(err, errNotBearer),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidTokenType),
		errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingUserID):
		return dto.ErrCodeTokenInvalid, "Access token is invalid"
	default:
		return dto.ErrCodeUnauthorized, "Authentication required"
	}
}

// GetJWTClaims returns the claims stored by the auth middleware, or nil when
// the request was not authenticated.
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetJWTUserID returns the authenticated user ID, or "" when absent.
func GetJWTUserID(c *gin.Context) string {
	return c.GetString(JWTUserIDKey)
}
