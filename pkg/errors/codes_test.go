package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusForCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInternal, 500},
		{ErrCodeBadRequest, 400},
		{ErrCodeCaseNotFound, 404},
		{ErrCodeAmbiguousResolution, 409},
		{ErrCodeFeedFailure, 502},
		{ErrCodeInvalidJobTransition, 409},
		{ErrorCode("UNKNOWN"), 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatusForCode(tt.code), tt.code)
	}
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "case not found", DefaultMessageForCode(ErrCodeCaseNotFound))
	assert.Equal(t, "unknown error", DefaultMessageForCode(ErrorCode("UNKNOWN")))
}

func TestClientServerClassification(t *testing.T) {
	assert.True(t, IsClientError(ErrCodeUnresolvedCitation))
	assert.False(t, IsClientError(ErrCodeIngestionFailure))
	assert.True(t, IsServerError(ErrCodeIngestionFailure))
	assert.False(t, IsServerError(ErrCodeInvalidWeights))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
	assert.Equal(t, "CIT", ModuleForCode(ErrCodeExtractionGap))
	assert.Equal(t, "ING", ModuleForCode(ErrCodeFeedFailure))
	assert.Equal(t, "SRH", ModuleForCode(ErrCodeSearchFailed))
	assert.Equal(t, "UNKNOWN", ModuleForCode(ErrorCode("")))
	assert.Equal(t, "UNKNOWN", ModuleForCode(CodeOK))
}

func TestErrorCodeMappings_Completeness(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]+_\d{3}$`)
	for code := range ErrorCodeHTTPStatus {
		assert.Regexp(t, re, string(code))
		_, hasMessage := ErrorCodeMessage[code]
		assert.True(t, hasMessage, "missing message for %s", code)
	}
	assert.Equal(t, len(ErrorCodeHTTPStatus), len(ErrorCodeMessage))
}
