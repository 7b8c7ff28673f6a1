package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineError_Error(t *testing.T) {
	err := New(ErrCategoryIngest, CodeTableMissing, "customer.tbl not found")
	expected := "[INGEST:TABLE_MISSING] customer.tbl not found"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestEngineError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := Wrap(ErrCategoryIngest, CodeTableUnreadable, "open orders.tbl", cause)
	expected := "[INGEST:TABLE_UNREADABLE] open orders.tbl: permission denied"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryStorage, CodeDownloadFailed, "fetch", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestEngineError_Is(t *testing.T) {
	err1 := New(ErrCategoryInternal, CodeBarrierTimeout, "first")
	err2 := New(ErrCategoryInternal, CodeBarrierTimeout, "second")
	err3 := New(ErrCategoryInternal, CodeUnexpected, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("engine: %w", err1)
	if !errors.Is(wrapped, New(ErrCategoryInternal, CodeBarrierTimeout, "")) {
		t.Error("Is should see through fmt wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryIngest, CodeTableMissing, false},
		{ErrCategoryIngest, CodeIndexFrozen, false},
		{ErrCategoryInternal, CodeBarrierTimeout, false},
		{ErrCategoryConfig, CodeInvalidConfig, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewBarrierTimeout("lineitem"))
	if GetCategory(err) != ErrCategoryInternal {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryInternal)
	}
	if GetCode(err) != CodeBarrierTimeout {
		t.Errorf("got %q, want %q", GetCode(err), CodeBarrierTimeout)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-EngineError should return empty category")
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-EngineError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryIngest, CodeTableMissing, "missing")
	detailed := err.WithDetails(map[string]interface{}{"table": "orders"})

	if detailed.Details["table"] != "orders" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	c := NewConfigError("bad workers", cause)
	if c.Category != ErrCategoryConfig || c.Code != CodeInvalidConfig {
		t.Error("NewConfigError mismatch")
	}

	i := NewIngestError(CodeTableUnreadable, "mmap failed", cause)
	if i.Category != ErrCategoryIngest || !errors.Is(i, cause) {
		t.Error("NewIngestError mismatch")
	}

	s := NewStorageError(CodeDownloadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !s.Retryable {
		t.Error("NewStorageError mismatch")
	}

	q := NewQueryError(CodeEngineClosed, "closed")
	if q.Category != ErrCategoryQuery {
		t.Error("NewQueryError mismatch")
	}

	b := NewBarrierTimeout("orders")
	if b.Category != ErrCategoryInternal || b.Code != CodeBarrierTimeout {
		t.Error("NewBarrierTimeout mismatch")
	}

	u := NewInternalError("unexpected", cause)
	if u.Category != ErrCategoryInternal || u.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
