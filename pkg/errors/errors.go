package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryFormat        ErrorCategory = "format"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryReport        ErrorCategory = "report"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileRead       ErrorCode = "file_read"
	CodeFileWrite      ErrorCode = "file_write"

	// Format errors
	CodeUnsupportedFormat ErrorCode = "unsupported_format"

	// Parse errors
	CodeCSVParse      ErrorCode = "csv_parse"
	CodeXMLParse      ErrorCode = "xml_parse"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeEncodingError ErrorCode = "encoding_error"

	// Validation errors
	CodeMissingField  ErrorCode = "missing_field"
	CodeInvalidAmount ErrorCode = "invalid_amount"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"

	// Report errors
	CodeEmptyReport  ErrorCode = "empty_report"
	CodeRenderFailed ErrorCode = "render_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ValidatorError is the base error type for all application errors
type ValidatorError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ValidatorError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ValidatorError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ValidatorError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryFormat, CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReport, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ValidatorError) WithContext(key string, value interface{}) *ValidatorError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ValidatorError) WithSuggestion(suggestion string) *ValidatorError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ValidatorError
func New(category ErrorCategory, code ErrorCode, message string) *ValidatorError {
	return &ValidatorError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ValidatorError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ValidatorError {
	if err == nil {
		return nil
	}

	return &ValidatorError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

func newOrWrap(err error, category ErrorCategory, code ErrorCode, message string) *ValidatorError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *ValidatorError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileRead:
		message = fmt.Sprintf("failed to read file: %s", path)
		suggestion = "verify the file is not truncated or locked by another process"
	case CodeFileWrite:
		message = fmt.Sprintf("failed to write file: %s", path)
		suggestion = "check that the destination directory exists and has free space"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return newOrWrap(err, CategoryFile, code, message).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(setting string, value interface{}, err error) *ValidatorError {
	message := fmt.Sprintf("invalid configuration for '%s': %v", setting, value)

	return newOrWrap(err, CategoryConfiguration, CodeInvalidConfig, message).
		WithSuggestion("check the configuration documentation for valid values").
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReportError creates a report rendering or export error
func ReportError(code ErrorCode, format string, err error) *ValidatorError {
	var message string
	var suggestion string

	switch code {
	case CodeEmptyReport:
		message = "No validation report available to download."
		suggestion = "exports are only produced when at least one record fails validation"
	default:
		message = fmt.Sprintf("failed to render %s report", format)
		suggestion = "check the output destination and try another output format"
	}

	return newOrWrap(err, CategoryReport, code, message).
		WithSuggestion(suggestion).
		WithContext("format", format)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *ValidatorError {
	message := fmt.Sprintf("unexpected error during %s", operation)

	return newOrWrap(err, CategoryInternal, CodeUnexpectedError, message).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// Utility functions

// AsValidatorError extracts a ValidatorError from an error chain
func AsValidatorError(err error) (*ValidatorError, bool) {
	var validatorErr *ValidatorError
	if errors.As(err, &validatorErr) {
		return validatorErr, true
	}
	return nil, false
}

// HasCode reports whether err carries a ValidatorError with the given code
func HasCode(err error, code ErrorCode) bool {
	validatorErr, ok := AsValidatorError(err)
	return ok && validatorErr.Code == code
}

// WrapIfNeeded wraps an error if it's not already a ValidatorError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ValidatorError {
	if err == nil {
		return nil
	}

	if validatorErr, ok := AsValidatorError(err); ok {
		return validatorErr
	}

	return Wrap(err, category, code, message)
}
