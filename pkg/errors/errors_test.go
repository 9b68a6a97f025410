package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", false)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.Retryable {
		t.Error("expected non-retryable error")
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("database connection failed")
	wrapped := Wrap(originalErr, CodeStorageFatal, "storage error", false)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if wrapped.Code != CodeStorageFatal {
		t.Errorf("expected code %s, got %s", CodeStorageFatal, wrapped.Code)
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeSourceNotFound,
				Message: "source record not found or inaccessible",
			},
			expected: "SOURCE_NOT_FOUND: source record not found or inaccessible",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeStorageFatal,
				Message: "failed to insert link",
				Err:     errors.New("connection reset"),
			},
			expected: "STORAGE_FATAL: failed to insert link (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", false)

	unwrapped := errors.Unwrap(appErr)
	if unwrapped != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestAppError_WithDetails_Merges(t *testing.T) {
	err := SourceNotFound("rec-1").WithDetails(map[string]any{"status_code": 404})

	if err.Details["record_id"] != "rec-1" {
		t.Errorf("expected record_id 'rec-1', got %v", err.Details["record_id"])
	}
	if err.Details["status_code"] != 404 {
		t.Errorf("expected status_code 404, got %v", err.Details["status_code"])
	}
}

func TestTaxonomy_Retryability(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name      string
		err       *AppError
		code      string
		retryable bool
	}{
		{"source not found", SourceNotFound("r"), CodeSourceNotFound, false},
		{"insufficient key fields", InsufficientKeyFields("r"), CodeInsufficientKeyFields, false},
		{"upstream transient", UpstreamTransient("rate limited", 0, cause), CodeUpstreamTransient, true},
		{"upstream permanent", UpstreamPermanent("bad request", cause), CodeUpstreamPermanent, false},
		{"duplicate key", DuplicateKeyConflict("acme.com", "1mainst", cause), CodeDuplicateKeyConflict, false},
		{"storage fatal", StorageFatal("insert failed", cause), CodeStorageFatal, false},
		{"validation", Validation("bad payload", nil), CodeValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if IsRetryable(tt.err) != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(tt.err), tt.retryable)
			}
		})
	}
}

func TestIsRetryable_WrappedAndPlain(t *testing.T) {
	transient := UpstreamTransient("503", 0, nil)
	wrapped := fmt.Errorf("fetch record: %w", transient)

	if !IsRetryable(wrapped) {
		t.Error("expected wrapped transient error to be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("expected plain error to be permanent")
	}
	if IsRetryable(nil) {
		t.Error("expected nil to be non-retryable")
	}
}

func TestRetryAfter(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", UpstreamTransient("429", 7*time.Second, nil))
	if got := RetryAfter(err); got != 7*time.Second {
		t.Errorf("RetryAfter() = %v, want 7s", got)
	}
	if got := RetryAfter(UpstreamTransient("503", 0, nil)); got != 0 {
		t.Errorf("RetryAfter() = %v, want 0", got)
	}
	if got := RetryAfter(errors.New("plain")); got != 0 {
		t.Errorf("RetryAfter() = %v, want 0", got)
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("ctx: %w", SourceNotFound("r1"))
	if !HasCode(err, CodeSourceNotFound) {
		t.Error("expected HasCode to see through wrapping")
	}
	if HasCode(err, CodeStorageFatal) {
		t.Error("expected HasCode to reject other codes")
	}
}

func TestIsAppError(t *testing.T) {
	if !IsAppError(NotFound("link")) {
		t.Error("IsAppError should return true for AppError")
	}
	if IsAppError(errors.New("standard error")) {
		t.Error("IsAppError should return false for standard error")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("link")
	if got := AsAppError(appErr); got != appErr {
		t.Error("AsAppError should return the same AppError")
	}

	stdErr := errors.New("standard error")
	converted := AsAppError(stdErr)
	if converted.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, converted.Code)
	}
	if converted.Err != stdErr {
		t.Error("expected wrapped error to be the original error")
	}
}
