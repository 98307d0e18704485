package ai

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind represents the failure category of a gateway call.
type ErrorKind string

const (
	// ErrKindTimeout indicates the call exceeded its deadline.
	ErrKindTimeout ErrorKind = "TIMEOUT"
	// ErrKindCanceled indicates the caller canceled the call.
	ErrKindCanceled ErrorKind = "CANCELED"
	// ErrKindTransport indicates a network failure before a response arrived.
	ErrKindTransport ErrorKind = "TRANSPORT"
	// ErrKindUpstream indicates the provider answered with an error status.
	ErrKindUpstream ErrorKind = "UPSTREAM"
	// ErrKindEmpty indicates the provider returned no choices or no content.
	ErrKindEmpty ErrorKind = "EMPTY"
	// ErrKindRefused indicates the model refused to answer.
	ErrKindRefused ErrorKind = "REFUSED"
	// ErrKindSchema indicates the response does not satisfy the requested schema.
	ErrKindSchema ErrorKind = "SCHEMA"
)

// GatewayError is the only error kind a gateway call produces.
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Cause   error
	// Schema is the name of the schema requested by the failed call.
	Schema string
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	msg := e.Message
	if e.Schema != "" {
		msg = fmt.Sprintf("%s (schema %s)", msg, e.Schema)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// NewGatewayError creates a GatewayError of the given kind.
func NewGatewayError(kind ErrorKind, msg string, cause error) *GatewayError {
	return &GatewayError{Kind: kind, Message: msg, Cause: cause}
}

// IsKind reports whether err carries a GatewayError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind == kind
	}
	return false
}

// KindOf extracts the kind from err, or returns def if err is not a GatewayError.
func KindOf(err error, def ErrorKind) ErrorKind {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return def
}

// ClassifyError maps a failed model call, or a failed stage, to a GatewayError.
// ctx is the call context so an expired deadline is seen as a timeout.
func ClassifyError(ctx context.Context, err error) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewGatewayError(ErrKindTimeout, "model call timed out", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return NewGatewayError(ErrKindCanceled, "model call canceled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewGatewayError(ErrKindTimeout, "model call timed out", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewGatewayError(ErrKindUpstream, fmt.Sprintf("provider returned status %d", apiErr.HTTPStatusCode), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewGatewayError(ErrKindUpstream, fmt.Sprintf("provider returned status %d", reqErr.HTTPStatusCode), err)
	}

	return NewGatewayError(ErrKindTransport, "model call failed", err)
}
