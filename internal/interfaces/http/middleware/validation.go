package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/titledesk/backend/internal/interfaces/http/dto"
)

// SetupValidator makes binding errors report field names from json (or form)
// tags instead of Go struct field names.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			name, _, _ = strings.Cut(field.Tag.Get("form"), ",")
		}
		return name
	})
}

// HandleValidationError answers a failed binding with a 400 carrying one
// entry per invalid field.
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, RequestIDFromContext(c)))
}

// FormatValidationErrors flattens validator errors into the response shape.
// Non-validator errors produce a response without field details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		for _, fe := range fieldErrors {
			details = append(details, dto.ValidationDetail{
				Field:   fe.Field(),
				Message: validationMessage(fe),
			})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// validationMessage translates a validator tag into a client-facing message.
func validationMessage(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "uuid":
		return "Invalid UUID format"
	case "url":
		return "Invalid URL format"
	case "min", "gte":
		return boundedMessage(fe, "at least", param)
	case "max", "lte":
		return boundedMessage(fe, "at most", param)
	case "len":
		return "Must be exactly " + param + " characters"
	case "oneof":
		return "Must be one of: " + param
	case "gt":
		return "Must be greater than " + param
	case "lt":
		return "Must be less than " + param
	case "numeric":
		return "Must be numeric"
	case "alphanum":
		return "Must be alphanumeric"
	case "alpha":
		return "Must contain only letters"
	default:
		return "Invalid value"
	}
}

// boundedMessage phrases string bounds in characters and numeric bounds as
// plain values.
func boundedMessage(fe validator.FieldError, bound, param string) string {
	if fe.Type().Kind() == reflect.String {
		return "Must be " + bound + " " + param + " characters"
	}
	return "Must be " + bound + " " + param
}
