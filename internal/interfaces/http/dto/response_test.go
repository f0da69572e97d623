package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]string{"status": "linked"})

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.Nil(t, resp.Meta)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	t.Run("carries pagination meta", func(t *testing.T) {
		resp := NewSuccessResponseWithMeta([]string{"a", "b"}, 100, 1, 10)

		assert.True(t, resp.Success)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(100), resp.Meta.Total)
		assert.Equal(t, 1, resp.Meta.Page)
		assert.Equal(t, 10, resp.Meta.PageSize)
		assert.Equal(t, 10, resp.Meta.TotalPages)
	})

	t.Run("page count", func(t *testing.T) {
		tests := []struct {
			name     string
			total    int64
			pageSize int
			pages    int
			size     int
		}{
			{"exact multiple", 100, 10, 10, 10},
			{"partial last page", 101, 10, 11, 10},
			{"under one page", 9, 10, 1, 10},
			{"exactly one page", 10, 10, 1, 10},
			{"just over one page", 11, 10, 2, 10},
			{"no rows", 0, 10, 0, 10},
			{"zero page size falls back to 20", 100, 0, 5, 20},
			{"negative page size falls back to 20", 100, -1, 5, 20},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := NewSuccessResponseWithMeta(nil, tt.total, 1, tt.pageSize)
				assert.Equal(t, tt.pages, resp.Meta.TotalPages)
				assert.Equal(t, tt.size, resp.Meta.PageSize)
			})
		}
	})
}

func TestNewErrorResponse(t *testing.T) {
	t.Run("builds the error envelope", func(t *testing.T) {
		before := time.Now().UTC()
		resp := NewErrorResponse(ErrCodeSessionExpired, "Account selection expired")

		assert.False(t, resp.Success)
		assert.Nil(t, resp.Data)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeSessionExpired, resp.Error.Code)
		assert.Equal(t, "Account selection expired", resp.Error.Message)
		assert.False(t, resp.Error.Timestamp.Before(before))
		assert.False(t, resp.Error.Timestamp.After(time.Now().UTC()))
	})

	t.Run("normalizes legacy codes", func(t *testing.T) {
		resp := NewErrorResponse("NOT_FOUND", "Order not found")
		assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	})
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeTrackerTransient, "Tracker unavailable", "req-7f3a")

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTrackerTransient, resp.Error.Code)
	assert.Equal(t, "req-7f3a", resp.Error.RequestID)
	assert.NotZero(t, resp.Error.Timestamp)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "account_id", Message: "Required"},
		{Field: "reference", Message: "Must be at least 3 characters"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-7f3a", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "Request validation failed", resp.Error.Message)
	assert.Equal(t, "req-7f3a", resp.Error.RequestID)
	assert.Equal(t, details, resp.Error.Details)
}

func TestNewErrorResponseWithHelp(t *testing.T) {
	resp := NewErrorResponseWithHelp(ErrCodeReconnectRequired, "Reconnect the tracker", "req-0001",
		"https://docs.titledesk.example.com/errors/reconnect")

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeReconnectRequired, resp.Error.Code)
	assert.Equal(t, "https://docs.titledesk.example.com/errors/reconnect", resp.Error.Help)
}

func TestResponseWireShape(t *testing.T) {
	t.Run("success omits the error and meta keys", func(t *testing.T) {
		raw, err := json.Marshal(NewSuccessResponse(map[string]string{"state": "connected"}))
		require.NoError(t, err)

		var wire map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &wire))
		assert.Contains(t, wire, "success")
		assert.Contains(t, wire, "data")
		assert.NotContains(t, wire, "error")
		assert.NotContains(t, wire, "meta")
	})

	t.Run("error omits the data key and optional error fields", func(t *testing.T) {
		raw, err := json.Marshal(NewErrorResponse(ErrCodeNotFound, "Order not found"))
		require.NoError(t, err)

		var wire map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &wire))
		assert.NotContains(t, wire, "data")

		var errWire map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(wire["error"], &errWire))
		assert.NotContains(t, errWire, "request_id")
		assert.NotContains(t, errWire, "details")
		assert.NotContains(t, errWire, "help")
	})

	t.Run("round-trips through the envelope", func(t *testing.T) {
		raw, err := json.Marshal(NewErrorResponseWithRequestID(ErrCodeNotFound, "Order not found", "req-42"))
		require.NoError(t, err)

		var decoded Response
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.False(t, decoded.Success)
		require.NotNil(t, decoded.Error)
		assert.Equal(t, ErrCodeNotFound, decoded.Error.Code)
		assert.Equal(t, "Order not found", decoded.Error.Message)
		assert.Equal(t, "req-42", decoded.Error.RequestID)
	})
}

func TestDefaultListRequest(t *testing.T) {
	req := DefaultListRequest()

	assert.Equal(t, 1, req.Page)
	assert.Equal(t, 20, req.PageSize)
	assert.Equal(t, "created_at", req.OrderBy)
	assert.Equal(t, "desc", req.OrderDir)
}
