// Package domain provides canonical error and chat types for the gateway.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeValidation indicates an upload failed a validation check.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeTooLarge indicates a payload exceeded the configured size bound.
	ErrorTypeTooLarge ErrorType = "too_large"

	// ErrorTypeRateLimit indicates rate limiting was triggered.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeUnavailable indicates the downstream service is unreachable.
	ErrorTypeUnavailable ErrorType = "unavailable"

	// ErrorTypeDownstream indicates the downstream service failed or timed out.
	ErrorTypeDownstream ErrorType = "downstream"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// ErrorCode provides additional specificity beyond the error type.
// The upload rejection codes are part of the client-visible contract.
type ErrorCode string

const (
	CodeTooLarge          ErrorCode = "TooLarge"
	CodeUnsupportedType   ErrorCode = "UnsupportedType"
	CodeContentMismatch   ErrorCode = "ContentMismatch"
	CodeEmpty             ErrorCode = "Empty"
	CodeInvalidPath       ErrorCode = "InvalidPath"
	CodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"
)

// APIError is the canonical error returned by gateway components and
// translated into the JSON error body by the route handlers.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Code is an optional specific error code
	Code ErrorCode `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Details carries operator-facing diagnostics. It is logged server-side
	// and only surfaced to clients for 4xx errors.
	Details string `json:"-"`

	// StatusCode is the suggested HTTP status code
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest, ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeDownstream, ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithCode adds an error code to the error.
func (e *APIError) WithCode(code ErrorCode) *APIError {
	e.Code = code
	return e
}

// WithDetails adds operator-facing diagnostics to the error.
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// HasCode reports whether err is an *APIError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// Convenience constructors for common errors

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrTooLarge creates a payload-too-large upload rejection.
func ErrTooLarge(message string) *APIError {
	return NewAPIError(ErrorTypeTooLarge, message).WithCode(CodeTooLarge)
}

// ErrUnsupportedType creates an extension allow-list upload rejection.
func ErrUnsupportedType(message string) *APIError {
	return NewAPIError(ErrorTypeValidation, message).WithCode(CodeUnsupportedType)
}

// ErrContentMismatch creates a magic-byte mismatch upload rejection.
func ErrContentMismatch(message string) *APIError {
	return NewAPIError(ErrorTypeValidation, message).WithCode(CodeContentMismatch)
}

// ErrEmpty creates a zero-byte upload rejection.
func ErrEmpty(message string) *APIError {
	return NewAPIError(ErrorTypeValidation, message).WithCode(CodeEmpty)
}

// ErrInvalidPath creates a path containment upload rejection.
func ErrInvalidPath(message string) *APIError {
	return NewAPIError(ErrorTypeValidation, message).WithCode(CodeInvalidPath)
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *APIError {
	return NewAPIError(ErrorTypeRateLimit, message).WithCode(CodeRateLimitExceeded)
}

// ErrUnavailable creates a downstream-unreachable error.
func ErrUnavailable(message string) *APIError {
	return NewAPIError(ErrorTypeUnavailable, message)
}

// ErrDownstream creates a downstream-failure error.
func ErrDownstream(message string) *APIError {
	return NewAPIError(ErrorTypeDownstream, message)
}

// ErrServer creates an internal server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}
