// Package errors provides structured error types for arkorm.
// All errors include a category, code and message so callers can match on
// the failure class with errors.Is without parsing messages.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the layer that raised them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryField      ErrorCategory = "FIELD"
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryExecution  ErrorCategory = "EXECUTION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeValueTooLong     = "VALUE_TOO_LONG"
	CodeInvalidInteger   = "INVALID_INTEGER"
	CodeInvalidText      = "INVALID_TEXT"
	CodeInvalidMaxLength = "INVALID_MAX_LENGTH"
	CodeInvalidValue     = "INVALID_VALUE"

	// Field codes
	CodeFieldNotFound = "FIELD_NOT_FOUND"

	// Schema codes
	CodeDuplicatePrimaryKey = "DUPLICATE_PRIMARY_KEY"
	CodeDuplicateField      = "DUPLICATE_FIELD"
	CodeInvalidName         = "INVALID_NAME"

	// Execution codes
	CodeStatementFailed = "STATEMENT_FAILED"
	CodeCommitFailed    = "COMMIT_FAILED"
	CodeConnClosed      = "CONNECTION_CLOSED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeDeleteFailed   = "DELETE_FAILED"
	CodeListFailed     = "LIST_FAILED"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Category sentinels. errors.Is(err, ErrValidation) reports whether err
// carries the validation category, whatever its code.
var (
	ErrValidation    = &OrmError{Category: ErrCategoryValidation}
	ErrFieldNotFound = &OrmError{Category: ErrCategoryField, Code: CodeFieldNotFound}
	ErrSchema        = &OrmError{Category: ErrCategorySchema}
	ErrExecution     = &OrmError{Category: ErrCategoryExecution}
	ErrStorage       = &OrmError{Category: ErrCategoryStorage}
)

// OrmError is the structured error type used throughout the module.
type OrmError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]any
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *OrmError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *OrmError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
// A target with an empty code matches any code in its category.
func (e *OrmError) Is(target error) bool {
	var t *OrmError
	if errors.As(target, &t) {
		if e.Category != t.Category {
			return false
		}
		return t.Code == "" || e.Code == t.Code
	}
	return false
}

// New creates a new OrmError.
func New(category ErrorCategory, code, message string) *OrmError {
	return &OrmError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new OrmError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *OrmError {
	return &OrmError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *OrmError) WithDetails(details map[string]any) *OrmError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var oe *OrmError
	if errors.As(err, &oe) {
		return oe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an OrmError.
func GetCategory(err error) ErrorCategory {
	var oe *OrmError
	if errors.As(err, &oe) {
		return oe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an OrmError.
func GetCode(err error) string {
	var oe *OrmError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// isRetryable reports whether an operation failing with this code may be
// retried. Statements are single-shot; only object storage transfers retry.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *OrmError {
	return New(ErrCategoryValidation, code, message)
}

func NewFieldNotFoundError(message string) *OrmError {
	return New(ErrCategoryField, CodeFieldNotFound, message)
}

func NewSchemaError(code, message string) *OrmError {
	return New(ErrCategorySchema, code, message)
}

func NewExecutionError(code, message string, cause error) *OrmError {
	return Wrap(ErrCategoryExecution, code, message, cause)
}

func NewStorageError(code, message string, cause error) *OrmError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewConfigError(message string) *OrmError {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

func NewInternalError(message string, cause error) *OrmError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
