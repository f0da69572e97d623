package dto

import "net/http"

// Error codes carried in the error envelope's "code" field. Clients branch
// on these values, so they are part of the API contract: add codes freely,
// never repurpose one.

// Tracker integration lifecycle.
const (
	ErrCodeTrackerNotConfigured = "ERR_TRACKER_NOT_CONFIGURED" // provider credentials or destination project missing
	ErrCodeAuthorizationFailed  = "ERR_AUTHORIZATION_FAILED"   // OAuth exchange rejected by the tracker
	ErrCodeSessionExpired       = "ERR_SESSION_EXPIRED"        // pending account selection lapsed
	ErrCodeInvalidSelection     = "ERR_INVALID_SELECTION"      // chosen account is not among the candidates
	ErrCodeReconnectRequired    = "ERR_RECONNECT_REQUIRED"     // stored credentials can no longer refresh
	ErrCodeTrackerValidation    = "ERR_TRACKER_VALIDATION"     // tracker rejected the pushed payload
	ErrCodeTrackerTransient     = "ERR_TRACKER_TRANSIENT"      // tracker temporarily unreachable
	ErrCodeTrackerRejected      = "ERR_TRACKER_REJECTED"       // tracker refused the request for good
	ErrCodeDuplicateList        = "ERR_DUPLICATE_LIST"         // list name already exists in the project
)

// Authentication.
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked = "ERR_TOKEN_REVOKED"
)

// Resource state.
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
)

// Request validation.
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
)

// Throttling.
const (
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodePushRateLimited = "ERR_PUSH_RATE_LIMITED"
)

// ErrCodeInternal is the catch-all for unexpected failures.
const ErrCodeInternal = "ERR_INTERNAL"

// statusByCode is the single source of truth for the HTTP status each error
// code travels with.
var statusByCode = map[string]int{
	ErrCodeTrackerNotConfigured: http.StatusInternalServerError,
	ErrCodeAuthorizationFailed:  http.StatusBadRequest,
	ErrCodeSessionExpired:       http.StatusNotFound,
	ErrCodeInvalidSelection:     http.StatusBadRequest,
	ErrCodeReconnectRequired:    http.StatusUnauthorized,
	ErrCodeTrackerValidation:    http.StatusUnprocessableEntity,
	ErrCodeTrackerTransient:     http.StatusBadGateway,
	ErrCodeTrackerRejected:      http.StatusBadGateway,
	ErrCodeDuplicateList:        http.StatusConflict,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeTokenRevoked: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodePushRateLimited: http.StatusTooManyRequests,

	ErrCodeInternal: http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status an error code maps to, or 500 for
// codes with no mapping.
func GetHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodes bridges the codes minted by shared.DomainError onto the
// wire vocabulary above.
var domainErrorCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
}

// NormalizeErrorCode rewrites a domain error code into its wire form. Codes
// already in wire form, and unknown codes, pass through unchanged.
func NormalizeErrorCode(code string) string {
	if wire, ok := domainErrorCodes[code]; ok {
		return wire
	}
	return code
}
