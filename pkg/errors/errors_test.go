package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestOrmError_Error(t *testing.T) {
	err := New(ErrCategoryValidation, CodeValueTooLong, "too long")
	expected := "[VALIDATION:VALUE_TOO_LONG] too long"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestOrmError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("near \"FORM\": syntax error")
	err := Wrap(ErrCategoryExecution, CodeStatementFailed, "statement failed", cause)
	expected := "[EXECUTION:STATEMENT_FAILED] statement failed: near \"FORM\": syntax error"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestOrmError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryExecution, CodeCommitFailed, "commit", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestOrmError_Is(t *testing.T) {
	err1 := New(ErrCategorySchema, CodeDuplicatePrimaryKey, "first")
	err2 := New(ErrCategorySchema, CodeDuplicatePrimaryKey, "second")
	err3 := New(ErrCategorySchema, CodeDuplicateField, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestCategorySentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		want     bool
	}{
		{NewValidationError(CodeValueTooLong, "x"), ErrValidation, true},
		{NewValidationError(CodeInvalidInteger, "x"), ErrValidation, true},
		{NewFieldNotFoundError("x"), ErrFieldNotFound, true},
		{NewSchemaError(CodeDuplicatePrimaryKey, "x"), ErrSchema, true},
		{NewExecutionError(CodeStatementFailed, "x", nil), ErrExecution, true},
		{NewExecutionError(CodeStatementFailed, "x", nil), ErrValidation, false},
		{fmt.Errorf("wrapped: %w", NewFieldNotFoundError("x")), ErrFieldNotFound, true},
	}

	for i, tt := range tests {
		if got := errors.Is(tt.err, tt.sentinel); got != tt.want {
			t.Errorf("case %d: errors.Is = %v, want %v", i, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryExecution, CodeStatementFailed, false},
		{ErrCategoryValidation, CodeValueTooLong, false},
		{ErrCategorySchema, CodeDuplicatePrimaryKey, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := NewFieldNotFoundError("no such field")
	if GetCategory(err) != ErrCategoryField {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryField)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-OrmError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := NewSchemaError(CodeDuplicatePrimaryKey, "two primaries")
	if GetCode(err) != CodeDuplicatePrimaryKey {
		t.Errorf("got %q, want %q", GetCode(err), CodeDuplicatePrimaryKey)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-OrmError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewValidationError(CodeValueTooLong, "bad value")
	detailed := err.WithDetails(map[string]any{"field": "name"})

	if detailed.Details["field"] != "name" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	c := NewConfigError("bad mode")
	if c.Category != ErrCategoryConfig || c.Code != CodeInvalidConfig {
		t.Error("NewConfigError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
