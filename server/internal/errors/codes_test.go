package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/eventchain/plugin/ai"
	"github.com/hrygo/eventchain/plugin/ai/calendar"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   ErrorCode
		wantStatus int
	}{
		{"invalid input", fmt.Errorf("%w: empty text", calendar.ErrInvalidInput), ErrCodeInvalidArgument, http.StatusBadRequest},
		{"timeout", ai.NewGatewayError(ai.ErrKindTimeout, "model call timed out", context.DeadlineExceeded), ErrCodeTimeout, http.StatusGatewayTimeout},
		{"schema", ai.NewGatewayError(ai.ErrKindSchema, "bad answer", nil), ErrCodeModelFailure, http.StatusBadGateway},
		{"upstream", ai.NewGatewayError(ai.ErrKindUpstream, "status 500", nil), ErrCodeModelFailure, http.StatusBadGateway},
		{"canceled", ai.NewGatewayError(ai.ErrKindCanceled, "canceled", context.Canceled), ErrCodeContextCanceled, http.StatusBadGateway},
		{"api error passes through", RateLimitExceeded("slow down"), ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{"unknown", fmt.Errorf("boom"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromError(tt.err)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantStatus, apiErr.HTTPStatus())
		})
	}
}

func TestFromError_CarriesGatewayDetails(t *testing.T) {
	gwErr := ai.NewGatewayError(ai.ErrKindSchema, "response violates schema constraints", nil)
	gwErr.Schema = "event_details"

	apiErr := FromError(fmt.Errorf("parse: %w", gwErr))
	assert.Equal(t, ai.ErrKindSchema, apiErr.Kind)
	assert.Equal(t, "event_details", apiErr.Schema)
	assert.ErrorIs(t, apiErr, gwErr)
}

func TestWrap(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, Unsupported("x").HTTPStatus())
	assert.Contains(t, Wrap(fmt.Errorf("cause"), ErrCodeInternal, "msg").Error(), "cause")
}
