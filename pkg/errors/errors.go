// Package errors defines the typed application errors used across the
// reconciliation service.
//
// Errors carry a category, a specific code, an optional suggestion for the
// operator, and structured context. Categories map to CLI exit codes so
// scripted runs can distinguish bad input from bad state.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category groups related error conditions.
type Category string

const (
	CategoryFile           Category = "file"
	CategoryParse          Category = "parse"
	CategoryValidation     Category = "validation"
	CategoryConfiguration  Category = "configuration"
	CategoryImport         Category = "import"
	CategoryReconciliation Category = "reconciliation"
	CategoryStore          Category = "store"
	CategoryInternal       Category = "internal"
)

// Code identifies a specific error condition within a category.
type Code string

const (
	// File errors
	CodeFileNotFound   Code = "file_not_found"
	CodeFilePermission Code = "file_permission"

	// Parse errors
	CodeInvalidFormat Code = "invalid_format"
	CodeMissingColumn Code = "missing_column"
	CodeInvalidData   Code = "invalid_data"

	// Validation errors
	CodeInvalidAmount  Code = "invalid_amount"
	CodeInvalidDate    Code = "invalid_date"
	CodeMissingDate    Code = "missing_date"
	CodeMissingField   Code = "missing_field"
	CodeBreakdownDrift Code = "breakdown_drift"

	// Configuration errors
	CodeInvalidConfig Code = "invalid_config"
	CodeMissingConfig Code = "missing_config"

	// Import errors
	CodeAlreadyImported Code = "already_imported"
	CodeDateConflict    Code = "date_conflict"
	CodeConflictPending Code = "conflict_pending"

	// Reconciliation errors
	CodeMatchingFailed Code = "matching_failed"

	// Store errors
	CodeStoreCorrupted Code = "store_corrupted"
	CodeStoreWrite     Code = "store_write"

	// Internal errors
	CodeUnexpectedError Code = "unexpected_error"
)

// Error is the base error type for all application errors.
type Error struct {
	Category   Category `json:"category"`
	Code       Code     `json:"code"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Context    Context  `json:"context,omitempty"`
	Cause      error    `json:"-"`
}

// Context carries additional structured information about an error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the CLI exit code for the error's category.
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryImport:
		return 5
	case CategoryReconciliation, CategoryStore, CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext attaches a context key-value pair to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches an operator-facing suggestion to the error.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error.
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap wraps an existing error with category and code.
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    err,
	}
}

// FileError creates a file-related error for the given path.
func FileError(code Code, path string, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check that the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	result := wrapOrNew(err, CategoryFile, code, message)
	return result.WithSuggestion(suggestion).WithContext("file_path", path)
}

// ParseError creates a parsing error for a CSV line.
func ParseError(code Code, file string, line int, column, value string, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the value or remove the invalid row"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format"
	}

	result := wrapOrNew(err, CategoryParse, code, message)
	return result.WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column)
}

// ValidationError creates a validation error for a named field.
func ValidationError(code Code, field string, value interface{}, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "amounts must be decimal numbers with at most two decimal places"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use the date format YYYY-MM-DD"
	case CodeMissingDate:
		message = fmt.Sprintf("no assignment date could be resolved for '%s'", field)
		suggestion = "set the date explicitly before committing; records are never dated implicitly"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeBreakdownDrift:
		message = fmt.Sprintf("breakdown sum differs from stated total for '%s': %v", field, value)
		suggestion = "review the payment-method breakdown; the stated total is used for matching"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	result := wrapOrNew(err, CategoryValidation, code, message)
	return result.WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ImportError creates an import-related error for a source file.
func ImportError(code Code, source string, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeAlreadyImported:
		message = fmt.Sprintf("source already imported: %s", source)
		suggestion = "re-importing identical content is a no-op; use reset to clear the import log"
	case CodeDateConflict:
		message = fmt.Sprintf("multiple sources resolve to the same date: %s", source)
		suggestion = "resolve the conflict by choosing one candidate per date"
	case CodeConflictPending:
		message = fmt.Sprintf("unresolved date conflict for: %s", source)
		suggestion = "all candidates remain pending until one is chosen"
	default:
		message = fmt.Sprintf("import error for source: %s", source)
		suggestion = "check the source file and try again"
	}

	result := wrapOrNew(err, CategoryImport, code, message)
	return result.WithSuggestion(suggestion).WithContext("source", source)
}

// StoreError creates a persistence-related error.
func StoreError(code Code, path string, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeStoreCorrupted:
		message = fmt.Sprintf("persisted state is malformed: %s", path)
		suggestion = "the store will be treated as empty; restore from a backup if data is missing"
	case CodeStoreWrite:
		message = fmt.Sprintf("failed to write store file: %s", path)
		suggestion = "check disk space and directory permissions"
	default:
		message = fmt.Sprintf("store error: %s", path)
		suggestion = "check the data directory"
	}

	result := wrapOrNew(err, CategoryStore, code, message)
	return result.WithSuggestion(suggestion).WithContext("store_path", path)
}

// ConfigurationError creates a configuration-related error.
func ConfigurationError(code Code, setting string, value interface{}, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting via flag, environment, or config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	result := wrapOrNew(err, CategoryConfiguration, code, message)
	return result.WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReconciliationError creates a reconciliation-related error.
func ReconciliationError(code Code, operation string, err error) *Error {
	message := fmt.Sprintf("reconciliation error during %s", operation)
	if code == CodeMatchingFailed {
		message = fmt.Sprintf("matching failed during %s", operation)
	}

	result := wrapOrNew(err, CategoryReconciliation, code, message)
	return result.
		WithSuggestion("review the committed data and matching configuration").
		WithContext("operation", operation)
}

func wrapOrNew(err error, category Category, code Code, message string) *Error {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// IsCode reports whether the error chain contains an application error with
// the given code.
func IsCode(err error, code Code) bool {
	appErr, ok := AsError(err)
	return ok && appErr.Code == code
}

// AsError extracts an application Error from an error chain.
func AsError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Summary aggregates multiple errors, typically collected across an import
// batch where individual rows fail independently.
type Summary struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	Errors     []*Error         `json:"errors"`
}

// NewSummary builds a Summary from a slice of errors.
func NewSummary(errs []*Error) *Summary {
	summary := &Summary{
		Total:      len(errs),
		ByCategory: make(map[Category]int),
		Errors:     errs,
	}
	for _, err := range errs {
		summary.ByCategory[err.Category]++
	}
	return summary
}

// Error returns a formatted message for the summary.
func (s *Summary) Error() string {
	if s.Total == 0 {
		return "no errors"
	}
	if s.Total == 1 {
		return s.Errors[0].Error()
	}

	var parts []string
	for category, count := range s.ByCategory {
		parts = append(parts, fmt.Sprintf("%s: %d", category, count))
	}
	return fmt.Sprintf("%d errors occurred (%s)", s.Total, strings.Join(parts, ", "))
}

// ExitCode returns the highest exit code among the collected errors.
func (s *Summary) ExitCode() int {
	if s.Total == 0 {
		return 0
	}
	max := 1
	for _, err := range s.Errors {
		if code := err.ExitCode(); code > max {
			max = code
		}
	}
	return max
}
