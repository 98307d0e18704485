package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/hrygo/eventchain/plugin/ai"
	"github.com/hrygo/eventchain/plugin/ai/calendar"
)

// ErrorCode represents a specific error type returned by the API.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeServiceUnavailable indicates the service is not available.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeModelFailure indicates a model gateway call failed.
	ErrCodeModelFailure ErrorCode = "MODEL_FAILURE"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeUnsupported indicates the request cannot be served in the asked form.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// APIError represents a structured error for API responses.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Kind is the gateway error kind for model failures.
	Kind   ai.ErrorKind `json:"kind,omitempty"`
	Schema string       `json:"schema,omitempty"`
	Cause  error        `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the response status for the error code.
func (e *APIError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeModelFailure, ErrCodeContextCanceled:
		return http.StatusBadGateway
	case ErrCodeUnsupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *APIError {
	return &APIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *APIError {
	return &APIError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// ServiceUnavailable creates a service unavailable error.
func ServiceUnavailable(msg string) *APIError {
	return &APIError{Code: ErrCodeServiceUnavailable, Message: msg}
}

// Unsupported creates an unsupported request error.
func Unsupported(msg string) *APIError {
	return &APIError{Code: ErrCodeUnsupported, Message: msg}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *APIError {
	return &APIError{Code: code, Message: msg, Cause: cause}
}

// FromError maps a pipeline error to its API error.
func FromError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	if stderrors.Is(err, calendar.ErrInvalidInput) {
		return Wrap(err, ErrCodeInvalidArgument, err.Error())
	}

	var gwErr *ai.GatewayError
	if stderrors.As(err, &gwErr) {
		code := ErrCodeModelFailure
		switch gwErr.Kind {
		case ai.ErrKindTimeout:
			code = ErrCodeTimeout
		case ai.ErrKindCanceled:
			code = ErrCodeContextCanceled
		}
		return &APIError{
			Code:    code,
			Message: gwErr.Message,
			Kind:    gwErr.Kind,
			Schema:  gwErr.Schema,
			Cause:   err,
		}
	}

	return Wrap(err, ErrCodeInternal, "internal error")
}
