package errors

import (
	"errors"
	"fmt"
	"time"
)

const (
	CodeSourceNotFound        = "SOURCE_NOT_FOUND"
	CodeInsufficientKeyFields = "INSUFFICIENT_KEY_FIELDS"
	CodeUpstreamTransient     = "UPSTREAM_TRANSIENT"
	CodeUpstreamPermanent     = "UPSTREAM_PERMANENT"
	CodeDuplicateKeyConflict  = "DUPLICATE_KEY_CONFLICT"
	CodeStorageFatal          = "STORAGE_FATAL"
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeInternal              = "INTERNAL_ERROR"
)

const detailRetryAfter = "retry_after"

// AppError is the error type every layer above the drivers speaks. Retryable
// tells the work source whether the job may be attempted again.
type AppError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"-"`
	Details   map[string]any `json:"details,omitempty"`
	Err       error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, retryable bool) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
	}
}

func Wrap(err error, code, message string, retryable bool) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Err:       err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func SourceNotFound(recordID string) *AppError {
	return &AppError{
		Code:    CodeSourceNotFound,
		Message: "source record not found or inaccessible",
		Details: map[string]any{"record_id": recordID},
	}
}

func InsufficientKeyFields(recordID string) *AppError {
	return &AppError{
		Code:    CodeInsufficientKeyFields,
		Message: "record has neither website nor address",
		Details: map[string]any{"record_id": recordID},
	}
}

// UpstreamTransient marks a failure of the external API that is expected to
// clear on its own (rate limiting, 5xx, network). retryAfter may be zero.
func UpstreamTransient(message string, retryAfter time.Duration, err error) *AppError {
	appErr := &AppError{
		Code:      CodeUpstreamTransient,
		Message:   message,
		Retryable: true,
		Err:       err,
	}
	if retryAfter > 0 {
		appErr.Details = map[string]any{detailRetryAfter: retryAfter}
	}
	return appErr
}

func UpstreamPermanent(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUpstreamPermanent,
		Message: message,
		Err:     err,
	}
}

func DuplicateKeyConflict(website, address string, err error) *AppError {
	return &AppError{
		Code:    CodeDuplicateKeyConflict,
		Message: "link with the same dedup key already exists",
		Details: map[string]any{"website": website, "address": address},
		Err:     err,
	}
}

func StorageFatal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeStorageFatal,
		Message: message,
		Err:     err,
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Details: details,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Err:     err,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsRetryable reports whether the work source should attempt the job again.
// Errors that are not AppErrors are treated as permanent.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Retryable
}

// RetryAfter returns the upstream-provided cool-down attached to err, if any.
func RetryAfter(err error) time.Duration {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Details == nil {
		return 0
	}
	d, _ := appErr.Details[detailRetryAfter].(time.Duration)
	return d
}
