package dto

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/titledesk/backend/internal/domain/shared"
)

func TestGetHTTPStatus(t *testing.T) {
	byStatus := map[int][]string{
		http.StatusBadRequest: {
			ErrCodeAuthorizationFailed, ErrCodeInvalidSelection,
			ErrCodeBadRequest, ErrCodeInvalidInput, ErrCodeValidation,
		},
		http.StatusUnauthorized: {
			ErrCodeUnauthorized, ErrCodeTokenExpired, ErrCodeTokenInvalid,
			ErrCodeTokenRevoked, ErrCodeReconnectRequired,
		},
		http.StatusForbidden: {ErrCodeForbidden},
		http.StatusNotFound:  {ErrCodeNotFound, ErrCodeSessionExpired},
		http.StatusConflict: {
			ErrCodeAlreadyExists, ErrCodeConcurrencyConflict, ErrCodeDuplicateList,
		},
		http.StatusUnprocessableEntity: {
			ErrCodeInvalidState, ErrCodeTrackerValidation,
		},
		http.StatusRequestEntityTooLarge: {ErrCodePayloadTooLarge},
		http.StatusTooManyRequests:       {ErrCodeRateLimited, ErrCodePushRateLimited},
		http.StatusBadGateway:            {ErrCodeTrackerTransient, ErrCodeTrackerRejected},
		http.StatusInternalServerError:   {ErrCodeInternal, ErrCodeTrackerNotConfigured},
	}

	for status, codes := range byStatus {
		for _, code := range codes {
			t.Run(code, func(t *testing.T) {
				assert.Equal(t, status, GetHTTPStatus(code))
			})
		}
	}

	t.Run("unmapped codes default to 500", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("ERR_SOMETHING_NEW"))
		assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(""))
	})
}

func TestErrorCodeTable(t *testing.T) {
	t.Run("every mapped status is an error status", func(t *testing.T) {
		for code, status := range statusByCode {
			assert.GreaterOrEqual(t, status, 400, "code %s", code)
			assert.Less(t, status, 600, "code %s", code)
		}
	})

	t.Run("every code follows the ERR_ convention", func(t *testing.T) {
		for code := range statusByCode {
			assert.True(t, strings.HasPrefix(code, "ERR_"), "code %s", code)
		}
	})

	t.Run("domain codes normalize onto mapped codes", func(t *testing.T) {
		for domain, wire := range domainErrorCodes {
			_, ok := statusByCode[wire]
			assert.True(t, ok, "domain %s maps to unmapped %s", domain, wire)
		}
	})
}

func TestNormalizeErrorCode(t *testing.T) {
	t.Run("every domain code is rewritten", func(t *testing.T) {
		for domain, want := range domainErrorCodes {
			assert.Equal(t, want, NormalizeErrorCode(domain))
		}
	})

	t.Run("covers every shared sentinel", func(t *testing.T) {
		sentinels := []*shared.DomainError{
			shared.ErrNotFound, shared.ErrAlreadyExists, shared.ErrInvalidInput,
			shared.ErrInvalidState, shared.ErrConcurrencyConflict,
			shared.ErrUnauthorized, shared.ErrForbidden,
		}
		for _, sentinel := range sentinels {
			wire := NormalizeErrorCode(sentinel.Code)
			assert.NotEqual(t, sentinel.Code, wire, "sentinel %s has no wire mapping", sentinel.Code)
		}
	})

	t.Run("wire codes pass through", func(t *testing.T) {
		assert.Equal(t, ErrCodeDuplicateList, NormalizeErrorCode(ErrCodeDuplicateList))
		assert.Equal(t, ErrCodeValidation, NormalizeErrorCode(ErrCodeValidation))
	})

	t.Run("unknown codes pass through", func(t *testing.T) {
		assert.Equal(t, "CUSTOM_ERROR", NormalizeErrorCode("CUSTOM_ERROR"))
	})
}
