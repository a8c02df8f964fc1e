package errors

import (
	"fmt"
)

// PipelineError is the structured error type for regsearch.
// It provides context for error handling, logging, and degradation decisions.
type PipelineError struct {
	// Code is the unique error code (e.g., "ERR_402_QUERY_EMPTY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Upstream, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with PipelineError.
func (e *PipelineError) Is(target error) bool {
	if t, ok := target.(*PipelineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *PipelineError) WithDetail(key, value string) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new PipelineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a PipelineError from an existing error.
// The error's message becomes the PipelineError message.
func Wrap(code string, err error) *PipelineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ValidationError creates a validation-related error.
// Validation errors are the only class surfaced to callers.
func ValidationError(message string, cause error) *PipelineError {
	return New(ErrCodeInvalidInput, message, cause)
}

// UpstreamError creates an upstream-service error.
// Upstream errors are retryable and never fail a request by themselves.
func UpstreamError(message string, cause error) *PipelineError {
	return New(ErrCodeUpstreamUnavailable, message, cause)
}

// StorageError creates a storage-related error.
func StorageError(message string, cause error) *PipelineError {
	return New(ErrCodeCatalogFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *PipelineError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*PipelineError); ok {
		return pe.Retryable
	}
	return false
}

// IsValidation reports whether the error is a caller-visible validation error.
// Everything else is handled by degradation inside the pipeline.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*PipelineError); ok {
		return pe.Category == CategoryValidation
	}
	return false
}

// GetCode extracts the error code from a PipelineError.
// Returns empty string if not a PipelineError.
func GetCode(err error) string {
	if pe, ok := err.(*PipelineError); ok {
		return pe.Code
	}
	return ""
}
