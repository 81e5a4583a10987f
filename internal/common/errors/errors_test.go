package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewAlreadyInProgressError("submitting_T-100"))

	assert.True(t, stderrors.Is(err, ErrAlreadyInProgress))
	assert.False(t, stderrors.Is(err, ErrSubmitFailed))
	assert.Equal(t, ErrCodeAlreadyInProgress, CodeOf(err))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("boom")))
}

func TestNewMissingIdentifiersError_ListsMissing(t *testing.T) {
	err := NewMissingIdentifiersError("", "T-100")
	assert.Equal(t, "missing: clientId", err.Details)

	err = NewMissingIdentifiersError("", "")
	assert.Equal(t, "missing: clientId,ticketId", err.Details)
}

func TestNewEntitlementMissingError_CarriesRedirect(t *testing.T) {
	err := NewEntitlementMissingError("/packages")
	assert.Equal(t, "/packages", err.Metadata["redirect"])
	assert.False(t, err.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"gateway unavailable is retried", NewGatewayUnavailableError("requestClientFill", stderrors.New("conn refused")), "GATEWAY_UNAVAILABLE", 3},
		{"submit failed is retried", NewSubmitFailedError(stderrors.New("500")), "SUBMIT_FAILED", 3},
		{"invalid transition is thrown", NewInvalidTransitionError("request_team_fill", "CLIENT_FILL_REQUESTED"), "INVALID_TRANSITION", 0},
		{"unmapped code falls back to itself", NewNavigationDeniedError("gate in flight"), "NAVIGATION_DENIED", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmnErr.Code)
			assert.Equal(t, tt.wantRetries, bpmnErr.Retries)

			vars := bpmnErr.ToErrorVariables()
			require.Contains(t, vars, "originalErrorCode")
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DELEGATION", GetErrorCategory(ErrCodeGatewayUnavailable))
	assert.Equal(t, "SUBMISSION", GetErrorCategory(ErrCodeAlreadyInProgress))
	assert.Equal(t, "FULFILLMENT", GetErrorCategory(ErrCodeInvalidTransition))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDraftNotFound))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexingFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeApplicationIncomplete))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeEntitlementMissing))
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeGatewayUnavailable))
	assert.True(t, IsRetryableErrorCode(NewNotificationSendFailedError("email", stderrors.New("throttled")).Code))
	assert.False(t, IsRetryableErrorCode(ErrCodeFieldsDisabled))
	assert.False(t, IsRetryableErrorCode(ErrCodeActorNotPermitted))
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 10*time.Second, RetryBackoff(ErrCodeGatewayUnavailable))
	assert.Equal(t, 5*time.Second, RetryBackoff(ErrCodeSubmitFailed))
	assert.Equal(t, 2*time.Second, RetryBackoff(ErrCodeTimeout))
}
