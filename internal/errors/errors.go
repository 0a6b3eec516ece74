package errors

import (
	stderrors "errors"
	"fmt"
)

// PlantError is the structured error type for plantsearch.
// It carries enough context for logging and for the CLI to print a hint.
type PlantError struct {
	// Code is the unique error code (e.g., "ERR_302_MAPPING_CONFLICT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Index, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *PlantError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PlantError) Unwrap() error {
	return e.Cause
}

// Is matches another PlantError by code, so errors.Is(err, &PlantError{Code: c}) works.
func (e *PlantError) Is(target error) bool {
	if t, ok := target.(*PlantError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *PlantError) WithDetail(key, value string) *PlantError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *PlantError) WithSuggestion(suggestion string) *PlantError {
	e.Suggestion = suggestion
	return e
}

// New creates a new PlantError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *PlantError {
	return &PlantError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a PlantError from an existing error.
// The error's message becomes the PlantError message.
func Wrap(code string, err error) *PlantError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *PlantError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *PlantError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InvalidTypeError reports a property value type outside the closed set.
func InvalidTypeError(typ string) *PlantError {
	return New(ErrCodeInvalidValueType, fmt.Sprintf("given %q is not a valid type", typ), nil).
		WithDetail("type", typ)
}

// NotFoundError reports a missing property or record.
func NotFoundError(what string) *PlantError {
	return New(ErrCodeNotFound, what+" does not exist", nil)
}

// StoreError creates a plant store error.
func StoreError(message string, cause error) *PlantError {
	return New(ErrCodeStoreQuery, message, cause)
}

// IndexError creates a search index error.
func IndexError(code string, message string, cause error) *PlantError {
	if categoryFromCode(code) != CategoryIndex {
		code = ErrCodeIndexUnavailable
	}
	return New(code, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *PlantError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first PlantError in err's chain.
func As(err error) (*PlantError, bool) {
	var pe *PlantError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current refresh.
func IsFatal(err error) bool {
	if pe, ok := As(err); ok {
		return pe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a PlantError.
// Returns empty string if err carries none.
func GetCode(err error) string {
	if pe, ok := As(err); ok {
		return pe.Code
	}
	return ""
}

// GetCategory extracts the category from a PlantError.
func GetCategory(err error) Category {
	if pe, ok := As(err); ok {
		return pe.Category
	}
	return ""
}

// HasCode reports whether err's chain contains a PlantError with code.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, &PlantError{Code: code})
}
