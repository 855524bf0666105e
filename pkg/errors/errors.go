package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeUnsupported       ErrorCode = "UNSUPPORTED"
	ErrCodeSuspended         ErrorCode = "SUSPENDED"
	ErrCodeBridgeUnavailable ErrorCode = "BRIDGE_UNAVAILABLE"
	ErrCodeCapacityExceeded  ErrorCode = "CAPACITY_EXCEEDED"
	ErrCodeRateLimit         ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code, so callers can
// write errors.Is(err, apperrors.ErrSuspended).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Sentinels for errors.Is comparisons. Only the code is compared.
var (
	ErrNotFound          = &AppError{Code: ErrCodeNotFound}
	ErrUnsupported       = &AppError{Code: ErrCodeUnsupported}
	ErrSuspended         = &AppError{Code: ErrCodeSuspended}
	ErrBridgeUnavailable = &AppError{Code: ErrCodeBridgeUnavailable}
	ErrInvalidInput      = &AppError{Code: ErrCodeInvalidInput}
	ErrCapacityExceeded  = &AppError{Code: ErrCodeCapacityExceeded}
)

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewUnsupportedError(message string) *AppError {
	return NewAppError(ErrCodeUnsupported, message, http.StatusUnprocessableEntity)
}

// NewSuspendedError reports an operation that was intentionally not attempted
// because the bridge is inside its failure suppression window.
func NewSuspendedError(retryIn string) *AppError {
	return NewAppError(ErrCodeSuspended,
		fmt.Sprintf("camera bridge checks are paused after repeated failures, next attempt in %s", retryIn),
		http.StatusServiceUnavailable)
}

// NewBridgeUnavailableError converts a transport failure into a display-ready error.
func NewBridgeUnavailableError(message string, cause error) *AppError {
	return WrapError(cause, ErrCodeBridgeUnavailable, message, http.StatusBadGateway)
}

func NewCapacityExceededError(message string) *AppError {
	return NewAppError(ErrCodeCapacityExceeded, message, http.StatusTooManyRequests)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// WrapInternal wraps an unexpected failure, such as a registry error.
func WrapInternal(err error, message string) *AppError {
	return WrapError(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// CodeOf returns the code of the first AppError in the chain, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return ErrCodeInternal
}
