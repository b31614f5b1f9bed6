package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"record source is retried", NewRecordSourceFailedError(stderrors.New("conn refused")), "RECORD_SOURCE_FAILED", 3},
		{"provider unavailable is retried twice", NewProviderUnavailableError(stderrors.New("all searches failed")), "PROVIDER_UNAVAILABLE", 2},
		{"invalid input is thrown", NewInvalidInputError("origin is required"), "INVALID_INPUT", 0},
		{"not found is thrown", NewRecordNotFoundError("lost", "l1"), "RECORD_NOT_FOUND", 0},
		{"unmapped code passes through", NewInternalError(stderrors.New("boom")), "INTERNAL_ERROR", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestConvertToBPMNError_NonRetryableOverride(t *testing.T) {
	err := NewRecordSourceFailedError(stderrors.New("x"))
	err.Retryable = false
	assert.Zero(t, ConvertToBPMNError(err).Retries)
}

func TestAsStandardError(t *testing.T) {
	wrapped := fmt.Errorf("discover: %w", NewProviderUnavailableError(stderrors.New("down")))
	assert.Equal(t, ErrCodeProviderUnavailable, AsStandardError(wrapped).Code)

	plain := AsStandardError(stderrors.New("surprise"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "surprise", plain.Details)
}

func TestToErrorVariables(t *testing.T) {
	vars := ConvertToBPMNError(NewParseError(stderrors.New("unexpected EOF"))).ToErrorVariables()
	require.Contains(t, vars, "timestamp")
	assert.Equal(t, "PARSE_ERROR", vars["errorCode"])
	assert.Equal(t, "unexpected EOF", vars["errorDetails"])
	assert.Equal(t, false, vars["retryable"])
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "PROVIDER", GetErrorCategory(ErrCodeProviderTransportError))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeRecordNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeRecordSourceFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeParseError))
}
