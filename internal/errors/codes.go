// Package errors provides structured error handling for plantsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Plant store errors
//   - 3XX: Search index errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates relational store failures.
	CategoryStore Category = "STORE"
	// CategoryIndex indicates search index failures.
	CategoryIndex Category = "INDEX"
	// CategoryValidation indicates input validation errors.
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
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound    = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_102_CONFIG_INVALID"
	ErrCodeVocabularyInvalid = "ERR_103_VOCABULARY_INVALID"

	// Store errors (200-299)
	ErrCodeStoreUnavailable = "ERR_201_STORE_UNAVAILABLE"
	ErrCodeStoreQuery       = "ERR_202_STORE_QUERY_FAILED"
	ErrCodeStoreCorrupt     = "ERR_203_STORE_ROW_CORRUPT"

	// Index errors (300-399)
	ErrCodeIndexUnavailable = "ERR_301_INDEX_UNAVAILABLE"
	ErrCodeMappingConflict  = "ERR_302_MAPPING_CONFLICT"
	ErrCodeWriteRejected    = "ERR_303_WRITE_REJECTED"
	ErrCodeIndexLocked      = "ERR_304_INDEX_LOCKED"
	ErrCodeSearchFailed     = "ERR_305_SEARCH_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidValueType = "ERR_402_INVALID_VALUE_TYPE"
	ErrCodeInvalidQuery     = "ERR_403_INVALID_QUERY"
	ErrCodeNotFound         = "ERR_404_NOT_FOUND"
	ErrCodeInvalidValues    = "ERR_405_INVALID_ENCODED_VALUES"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
	ErrCodeCanceled = "ERR_502_CANCELED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryIndex
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// A refresh cannot continue after a store or index failure.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryStore, CategoryIndex:
		return SeverityFatal
	}
	if code == ErrCodeNotFound {
		return SeverityWarning
	}
	return SeverityError
}
