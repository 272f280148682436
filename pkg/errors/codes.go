package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition,
// formatted as <MODULE>_<NNN>.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// Citation Module Error Codes
const (
	ErrCodeExtractionGap       ErrorCode = "CIT_001"
	ErrCodeUnresolvedCitation  ErrorCode = "CIT_002"
	ErrCodeAmbiguousResolution ErrorCode = "CIT_003"
	ErrCodeCaseNotFound        ErrorCode = "CIT_004"
	ErrCodeInvalidSignal       ErrorCode = "CIT_005"
	ErrCodeInvalidEdge         ErrorCode = "CIT_006"
)

// Ingestion Module Error Codes
const (
	ErrCodeIngestionFailure     ErrorCode = "ING_001"
	ErrCodeFeedFailure          ErrorCode = "ING_002"
	ErrCodeJobNotFound          ErrorCode = "ING_003"
	ErrCodeInvalidJobTransition ErrorCode = "ING_004"
	ErrCodeJobLeaseHeld         ErrorCode = "ING_005"
)

// Search Module Error Codes
const (
	ErrCodeSearchFailed      ErrorCode = "SRH_001"
	ErrCodeSearchUnavailable ErrorCode = "SRH_002"
	ErrCodeInvalidWeights    ErrorCode = "SRH_003"
	ErrCodeEmbeddingFailed   ErrorCode = "SRH_004"
)

// Infrastructure aliases
const (
	CodeDatabaseError     = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeMessageQueueError = ErrCodeExternalService
	CodeStorageError      = ErrCodeExternalService
	CodeSearchError       = ErrCodeSearchFailed
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeExtractionGap:       http.StatusUnprocessableEntity,
	ErrCodeUnresolvedCitation:  http.StatusNotFound,
	ErrCodeAmbiguousResolution: http.StatusConflict,
	ErrCodeCaseNotFound:        http.StatusNotFound,
	ErrCodeInvalidSignal:       http.StatusBadRequest,
	ErrCodeInvalidEdge:         http.StatusBadRequest,

	ErrCodeIngestionFailure:     http.StatusInternalServerError,
	ErrCodeFeedFailure:          http.StatusBadGateway,
	ErrCodeJobNotFound:          http.StatusNotFound,
	ErrCodeInvalidJobTransition: http.StatusConflict,
	ErrCodeJobLeaseHeld:         http.StatusConflict,

	ErrCodeSearchFailed:      http.StatusInternalServerError,
	ErrCodeSearchUnavailable: http.StatusServiceUnavailable,
	ErrCodeInvalidWeights:    http.StatusBadRequest,
	ErrCodeEmbeddingFailed:   http.StatusBadGateway,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeExtractionGap:       "citation not recognised",
	ErrCodeUnresolvedCitation:  "citation could not be resolved",
	ErrCodeAmbiguousResolution: "citation matches more than one case",
	ErrCodeCaseNotFound:        "case not found",
	ErrCodeInvalidSignal:       "invalid treatment signal",
	ErrCodeInvalidEdge:         "invalid citation edge",

	ErrCodeIngestionFailure:     "ingestion record failed",
	ErrCodeFeedFailure:          "ingestion feed unreadable",
	ErrCodeJobNotFound:          "ingestion job not found",
	ErrCodeInvalidJobTransition: "invalid job status transition",
	ErrCodeJobLeaseHeld:         "ingestion job is running elsewhere",

	ErrCodeSearchFailed:      "search failed",
	ErrCodeSearchUnavailable: "search backend unavailable",
	ErrCodeInvalidWeights:    "invalid ranking weights",
	ErrCodeEmbeddingFailed:   "embedding request failed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
