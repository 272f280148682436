// Package errors provides the unified error type and factory functions for the
// legal research platform. Every layer (domain, application, infrastructure,
// interfaces) uses AppError as the single carrier for structured error
// information so that HTTP responses, logs, and metrics agree on one code.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call stack starting two frames above the
// caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the structured error type used across the platform. It supports
// errors.Is / errors.As / errors.Unwrap through its Cause.
//
//	return errors.New(errors.ErrCodeCaseNotFound, "case 42 not found")
//	return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert edge")
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is safe to return to API callers.
	Message string

	// Detail carries supplementary context such as ids or raw citation text.
	Detail string

	// Cause is the underlying error, if any.
	Cause error

	// Stack is the call stack captured by New and Wrap. It is never part of
	// Error() output.
	Stack string
}

// Error formats as "[<code>] <message>: <detail>", omitting an empty detail.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a copy of the receiver with Detail set. Nil-safe.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a copy of the receiver with Cause set. Nil-safe.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Factories
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError around err. A nil err yields nil. When err is
// already an *AppError and code is CodeUnknown the original code is kept.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain inspection
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err's chain carries any not-found code.
func IsNotFound(err error) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok {
			switch ae.Code {
			case ErrCodeNotFound, ErrCodeCaseNotFound, ErrCodeJobNotFound, ErrCodeUnresolvedCitation:
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the code of the first *AppError in err's chain.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// Is and As re-export the standard library helpers so callers need only one
// errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

// ─────────────────────────────────────────────────────────────────────────────
// Convenience constructors
// ─────────────────────────────────────────────────────────────────────────────

func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message, Stack: captureStack(1)}
}

func InvalidParam(message string) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message, Stack: captureStack(1)}
}

func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message, Stack: captureStack(1)}
}

// Internal is for unexpected server-side failures. Log the cause.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, Stack: captureStack(1)}
}

// CaseNotFound reports a case id missing from the corpus.
func CaseNotFound(caseID string) *AppError {
	return &AppError{
		Code:    ErrCodeCaseNotFound,
		Message: DefaultMessageForCode(ErrCodeCaseNotFound),
		Detail:  "case_id=" + caseID,
		Stack:   captureStack(1),
	}
}

// Unresolved reports a recognised citation with no matching case. The raw
// citation text is retained in Detail for later reconciliation.
func Unresolved(raw string) *AppError {
	return &AppError{
		Code:    ErrCodeUnresolvedCitation,
		Message: DefaultMessageForCode(ErrCodeUnresolvedCitation),
		Detail:  raw,
		Stack:   captureStack(1),
	}
}

// Ambiguous reports a citation that matched more than one case.
func Ambiguous(raw string, candidates int) *AppError {
	return &AppError{
		Code:    ErrCodeAmbiguousResolution,
		Message: DefaultMessageForCode(ErrCodeAmbiguousResolution),
		Detail:  fmt.Sprintf("%s (%d candidates)", raw, candidates),
		Stack:   captureStack(1),
	}
}

// FeedFailure wraps an I/O failure of the batch source.
func FeedFailure(err error, feed string) *AppError {
	return Wrap(err, ErrCodeFeedFailure, "feed unreadable").WithDetail(feed)
}

// IngestionFailure wraps a per-record processing error.
func IngestionFailure(err error, recordID string) *AppError {
	return Wrap(err, ErrCodeIngestionFailure, "record processing failed").WithDetail(recordID)
}

//Personal.AI order the ending
