package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies failures across the collection pipeline
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeExternalAPI ErrorType = "external_api"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a classified error with the HTTP or API status code that
// produced it. RetryAfter is only set for rate_limit errors.
type Error struct {
	Type       ErrorType
	Message    string
	Code       int
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a classified error.
func New(errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Message: message, Code: code}
}

// Newf creates a classified error with a formatted message.
func Newf(errorType ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: errorType, Message: fmt.Sprintf(format, args...), Code: code}
}

// RateLimited creates a rate_limit error carrying the interval the caller
// should wait before retrying.
func RateLimited(retryAfter time.Duration, message string) *Error {
	return &Error{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		Code:       429,
		RetryAfter: retryAfter,
	}
}

// TypeOf returns the classification of err, or unknown when err was not
// produced by this package.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given classification.
func Is(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeExternalAPI,
		ErrorTypeConflict, ErrorTypeValidation:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// FromStatusCode classifies an HTTP response status into an error type.
func FromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode == 409:
		return ErrorTypeConflict
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode >= 400:
		return ErrorTypeValidation
	default:
		return ErrorTypeUnknown
	}
}
