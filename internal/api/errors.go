// errors.go - Structured error handling for API responses
package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// StatusClientClosedRequest is the nginx-style status recorded when the
// client disconnects before the conversion finishes.
const StatusClientClosedRequest = 499

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewTooLargeError creates a 413 Payload Too Large error
func NewTooLargeError(limit int64) *APIError {
	return &APIError{
		Status:  http.StatusRequestEntityTooLarge,
		Code:    "UPLOAD_TOO_LARGE",
		Message: fmt.Sprintf("upload exceeds the %d byte limit", limit),
	}
}

// NewUnsupportedError creates a 415 Unsupported Media Type error
func NewUnsupportedError(message string) *APIError {
	return &APIError{
		Status:  http.StatusUnsupportedMediaType,
		Code:    "UNSUPPORTED_FORMAT",
		Message: message,
	}
}

// NewPasswordProtectedError creates a 415 error for encrypted documents
func NewPasswordProtectedError() *APIError {
	return &APIError{
		Status:  http.StatusUnsupportedMediaType,
		Code:    "PASSWORD_PROTECTED",
		Message: "file appears to be password-protected",
	}
}

// NewConversionFailedError creates a 422 Unprocessable Entity error
func NewConversionFailedError(details string) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "CONVERSION_FAILED",
		Message: "conversion failed",
		Details: details,
	}
}

// NewQueueFullError creates a 429 Too Many Requests error
func NewQueueFullError() *APIError {
	return &APIError{
		Status:  http.StatusTooManyRequests,
		Code:    "QUEUE_FULL",
		Message: "too many conversion requests queued",
	}
}

// NewTimeoutError creates a 504 Gateway Timeout error
func NewTimeoutError(details string) *APIError {
	return &APIError{
		Status:  http.StatusGatewayTimeout,
		Code:    "CONVERSION_TIMEOUT",
		Message: "conversion timed out",
		Details: details,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
			Details: err.Error(),
		}
	}

	c.JSON(apiErr.Status, apiErr)
}
