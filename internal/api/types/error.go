package types

import (
	"errors"
	"net/http"

	"dbwarden/internal/threshold"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Error represents error information in API responses
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// APIError is an error carrying the HTTP status and body to answer with.
type APIError struct {
	Status int
	Body   Error
	Cause  error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return e.Body.Message + ": " + e.Cause.Error()
	}
	return e.Body.Message
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// ErrorResponse creates an error API response
func ErrorResponse(code, message, details string) Response {
	return Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func newAPIError(status int, code, message, details string, cause error) *APIError {
	return &APIError{
		Status: status,
		Body:   Error{Code: code, Message: message, Details: details},
		Cause:  cause,
	}
}

// ValidationError creates a 400 error for invalid input
func ValidationError(details string) *APIError {
	return newAPIError(http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input data", details, nil)
}

// NotFoundError creates a 404 error for a missing resource
func NotFoundError(resource string) *APIError {
	return newAPIError(http.StatusNotFound, "NOT_FOUND", "Resource not found", resource+" not found", nil)
}

// PayloadTooLargeError creates a 413 error
func PayloadTooLargeError(details string) *APIError {
	return newAPIError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request too large", details, nil)
}

// UnsupportedMediaTypeError creates a 415 error
func UnsupportedMediaTypeError(details string) *APIError {
	return newAPIError(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Unsupported content type", details, nil)
}

// UnavailableError creates a 503 error for a failing dependency
func UnavailableError(details string, cause error) *APIError {
	return newAPIError(http.StatusServiceUnavailable, "UNAVAILABLE", "Service unavailable", details, cause)
}

// InternalError creates a 500 error; cause is logged, never returned to the client
func InternalError(details string, cause error) *APIError {
	return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", details, cause)
}

// FromDomainError maps threshold package errors onto API errors.
func FromDomainError(err error) *APIError {
	var apiErr *APIError
	var corrupt *threshold.CorruptConfigError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, threshold.ErrUnknownCheck):
		return newAPIError(http.StatusNotFound, "UNKNOWN_CHECK", "Unknown check reference", err.Error(), err)
	case errors.Is(err, threshold.ErrInvalidScope), errors.Is(err, threshold.ErrInvalidThresholds):
		return ValidationError(err.Error())
	case errors.As(err, &corrupt):
		return newAPIError(http.StatusConflict, "CORRUPT_CONFIG", "Stored configuration is corrupt", err.Error(), err)
	case errors.Is(err, threshold.ErrStoreUnavailable):
		return UnavailableError("threshold store unavailable", err)
	default:
		return InternalError("unexpected error", err)
	}
}

// AbortWithError logs err, writes the error envelope and aborts the request.
func AbortWithError(c *gin.Context, err error) {
	apiErr := FromDomainError(err)

	event := log.Warn()
	if apiErr.Status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.
		Err(apiErr.Cause).
		Str("request_id", c.GetString(RequestIDKey)).
		Str("code", apiErr.Body.Code).
		Int("status", apiErr.Status).
		Msg(apiErr.Body.Message)

	body := apiErr.Body
	if apiErr.Status == http.StatusInternalServerError {
		body.Details = ""
	}

	_ = c.Error(apiErr)
	c.AbortWithStatusJSON(apiErr.Status, Response{Success: false, Error: &body})
}

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"
