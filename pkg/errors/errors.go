package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeEmptyBatch  ErrorType = "empty_batch"
	ErrorTypeAPIStatus   ErrorType = "api_status"
	ErrorTypeUnknown     ErrorType = "unknown"

	// Failure taxonomy of a fetch run
	ErrorTypeTokenAcquisition ErrorType = "token_acquisition"
	ErrorTypeBatchFetch       ErrorType = "batch_fetch"
	ErrorTypeProxyRotation    ErrorType = "proxy_rotation"
	ErrorTypeCheckpointIO     ErrorType = "checkpoint_io"
	ErrorTypePerTargetFatal   ErrorType = "per_target_fatal"
)

// Error represents a classified failure with an optional cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Wrap creates a classified error around a cause
func Wrap(t ErrorType, msg string, err error) *Error {
	return &Error{Type: t, Message: msg, Err: err}
}

// TypeOf returns the ErrorType of the first *Error in err's chain,
// or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain holds an *Error of type t
func IsType(err error, t ErrorType) bool {
	if err == nil {
		return false
	}
	return TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError,
		ErrorTypeEmptyBatch, ErrorTypeAPIStatus, ErrorTypeBatchFetch,
		ErrorTypeTokenAcquisition, ErrorTypeProxyRotation:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing,
		ErrorTypeCheckpointIO, ErrorTypePerTargetFatal:
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
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
