// Package errors defines the structured error taxonomy shared by the analysis
// pipeline: submission validation, transport and persistence failures, and
// per-item analysis failures.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeInvalidInput marks a malformed request that is rejected before any work is queued.
	ErrCodeInvalidInput ErrorCode = "invalid_input"
	// ErrCodeNotFound marks an unresolvable identifier or missing record.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict marks a clash with existing data (duplicate job id, second active job).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeForbidden marks an operation on a record owned by another user.
	ErrCodeForbidden ErrorCode = "forbidden"
	// ErrCodeTransportFailure marks a queue that could not accept or serve messages.
	ErrCodeTransportFailure ErrorCode = "transport_failure"
	// ErrCodeAnalysisFailure marks an external analysis error for a single item.
	ErrCodeAnalysisFailure ErrorCode = "analysis_failure"
	// ErrCodePersistenceFailure marks a datastore write that failed mid-apply.
	ErrCodePersistenceFailure ErrorCode = "persistence_failure"
	// ErrCodeStaleJob marks a job abandoned by its worker and auto-failed.
	ErrCodeStaleJob ErrorCode = "stale_job"
	// ErrCodeInternal indicates an unexpected server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a deadline was exceeded.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending input field for invalid_input errors.
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newf(code ErrorCode, format string, args ...any) *AppError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &AppError{Code: code, Message: msg}
}

// InvalidInput creates a new invalid_input error.
func InvalidInput(format string, args ...any) *AppError {
	return newf(ErrCodeInvalidInput, format, args...)
}

// InvalidField creates an invalid_input error for a specific field.
func InvalidField(field, message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message, Field: field}
}

// NotFound creates a new not_found error.
func NotFound(format string, args ...any) *AppError {
	return newf(ErrCodeNotFound, format, args...)
}

// Conflict creates a new conflict error.
func Conflict(format string, args ...any) *AppError {
	return newf(ErrCodeConflict, format, args...)
}

// Forbidden creates a new forbidden error.
func Forbidden(format string, args ...any) *AppError {
	return newf(ErrCodeForbidden, format, args...)
}

// StaleJob creates a stale_job error.
func StaleJob(jobID string) *AppError {
	return &AppError{Code: ErrCodeStaleJob, Message: "analysis stalled, please retry", Field: jobID}
}

// Internal creates a new internal error.
func Internal(format string, args ...any) *AppError {
	return newf(ErrCodeInternal, format, args...)
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// TransportFailure wraps a queue error.
func TransportFailure(err error, message string) *AppError {
	return Wrap(err, ErrCodeTransportFailure, message)
}

// AnalysisFailure wraps an external analysis error.
func AnalysisFailure(err error, message string) *AppError {
	return Wrap(err, ErrCodeAnalysisFailure, message)
}

// PersistenceFailure wraps a datastore error.
func PersistenceFailure(err error, message string) *AppError {
	return Wrap(err, ErrCodePersistenceFailure, message)
}

func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsInvalidInput reports whether err carries ErrCodeInvalidInput.
func IsInvalidInput(err error) bool { return isCode(err, ErrCodeInvalidInput) }

// IsNotFound reports whether err carries ErrCodeNotFound.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict reports whether err carries ErrCodeConflict.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsForbidden reports whether err carries ErrCodeForbidden.
func IsForbidden(err error) bool { return isCode(err, ErrCodeForbidden) }

// IsTransportFailure reports whether err carries ErrCodeTransportFailure.
func IsTransportFailure(err error) bool { return isCode(err, ErrCodeTransportFailure) }

// IsAnalysisFailure reports whether err carries ErrCodeAnalysisFailure.
func IsAnalysisFailure(err error) bool { return isCode(err, ErrCodeAnalysisFailure) }

// IsPersistenceFailure reports whether err carries ErrCodePersistenceFailure.
func IsPersistenceFailure(err error) bool { return isCode(err, ErrCodePersistenceFailure) }

// IsStaleJob reports whether err carries ErrCodeStaleJob.
func IsStaleJob(err error) bool { return isCode(err, ErrCodeStaleJob) }

// IsInternal reports whether err carries ErrCodeInternal.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// IsTimeout reports whether err carries ErrCodeTimeout.
func IsTimeout(err error) bool { return isCode(err, ErrCodeTimeout) }

// IsCanceled reports whether err carries ErrCodeCanceled.
func IsCanceled(err error) bool { return isCode(err, ErrCodeCanceled) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// UserMessage returns the message safe to surface to a caller.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An unexpected error occurred. Please try again."
}
