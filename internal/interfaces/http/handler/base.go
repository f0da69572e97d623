package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/domain/shared"
	"github.com/titledesk/backend/internal/domain/title"
	"github.com/titledesk/backend/internal/interfaces/http/dto"
	"github.com/titledesk/backend/internal/interfaces/http/middleware"
)

// BaseHandler carries the response conventions shared by the API handlers:
// enveloped JSON bodies, request-id stamped errors, and the domain error
// mapping.
type BaseHandler struct{}

// sentinelCodes maps domain sentinel errors to API error codes, most specific
// first. Matched with errors.Is so wrapped errors resolve to their sentinel.
var sentinelCodes = []struct {
	err  error
	code string
}{
	{integration.ErrSelectionExpired, dto.ErrCodeSessionExpired},
	{integration.ErrInvalidSelection, dto.ErrCodeInvalidSelection},
	{integration.ErrReauthRequired, dto.ErrCodeReconnectRequired},
	{integration.ErrAuthorizationFailed, dto.ErrCodeAuthorizationFailed},
	{integration.ErrTrackerNotConfigured, dto.ErrCodeTrackerNotConfigured},
	{integration.ErrTrackerValidation, dto.ErrCodeTrackerValidation},
	{integration.ErrTrackerTransient, dto.ErrCodeTrackerTransient},
	{integration.ErrTrackerTerminal, dto.ErrCodeTrackerRejected},
	{integration.ErrDuplicateList, dto.ErrCodeDuplicateList},
	{integration.ErrCredentialNotFound, dto.ErrCodeNotFound},
	{integration.ErrAccountAlreadyLinked, dto.ErrCodeAlreadyExists},
	{title.ErrOrderNotFound, dto.ErrCodeNotFound},
}

// getRequestID resolves the ID established by the request-id middleware.
func getRequestID(c *gin.Context) string {
	return middleware.RequestIDFromContext(c)
}

// getUserID extracts user ID from JWT claims or returns error
func getUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr := middleware.GetJWTUserID(c)
	if userIDStr == "" {
		// Fallback to header for development (will be removed in production)
		userIDStr = c.GetHeader("X-User-ID")
	}
	if userIDStr == "" {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return uuid.Parse(userIDStr)
}

// Success sends the enveloped payload with 200.
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends the enveloped payload with 201.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent replies 204 with an empty body.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest rejects the request with 400 and the given message.
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.respondError(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Unauthorized rejects the request with 401 and the given message.
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.respondError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// HandleDomainError resolves err to its API code: sentinel errors carry
// their wrapped context as the message, coded DomainErrors keep their own
// message, anything else becomes an opaque internal error.
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	for _, m := range sentinelCodes {
		if errors.Is(err, m.err) {
			h.respondError(c, dto.GetHTTPStatus(m.code), m.code, err.Error())
			return
		}
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.respondError(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	h.respondError(c, http.StatusInternalServerError, dto.ErrCodeInternal,
		"An unexpected error occurred")
}

// respondError stamps the request ID into the error envelope.
func (h *BaseHandler) respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}
