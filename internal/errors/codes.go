// Package errors provides structured error handling for regsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (index, catalog, cache)
//   - 3XX: Upstream service errors (embedder, search store, scoring oracle)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates index, catalog, and cache storage errors.
	CategoryStorage Category = "STORAGE"
	// CategoryUpstream indicates failures of external services the
	// pipeline depends on (embedder, search store, scoring oracle).
	CategoryUpstream Category = "UPSTREAM"
	// CategoryValidation indicates input validation errors. This is the
	// only category that surfaces to callers as a hard error.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeCatalogFailed = "ERR_201_CATALOG_FAILED"
	ErrCodeIndexCorrupt  = "ERR_202_INDEX_CORRUPT"
	ErrCodeCacheFailed   = "ERR_203_CACHE_FAILED"

	// Upstream errors (300-399)
	ErrCodeUpstreamTimeout     = "ERR_301_UPSTREAM_TIMEOUT"
	ErrCodeUpstreamUnavailable = "ERR_302_UPSTREAM_UNAVAILABLE"
	ErrCodeEmbeddingFailed     = "ERR_303_EMBEDDING_FAILED"
	ErrCodeOracleFailed        = "ERR_304_ORACLE_FAILED"
	ErrCodeOracleMalformed     = "ERR_305_ORACLE_MALFORMED"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty   = "ERR_402_QUERY_EMPTY"
	ErrCodeQueryTooLong = "ERR_403_QUERY_TOO_LONG"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryUpstream
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	if code == ErrCodeIndexCorrupt {
		return SeverityFatal
	}

	// Upstream failures are degradations, not hard errors: the pipeline
	// falls back to zero-contribution searches and neutral rerank scores.
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeUpstreamTimeout,
		ErrCodeUpstreamUnavailable,
		ErrCodeEmbeddingFailed,
		ErrCodeOracleFailed:
		return true
	}
	return false
}
