package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodePolicyDenied        ErrorCode = "POLICY_DENIED"
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeTargetNotFound      ErrorCode = "TARGET_NOT_FOUND"
	ErrCodeExternalUnavailable ErrorCode = "EXTERNAL_UNAVAILABLE"
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimit           ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with code and context. Message
// is the structured, user-visible reason string.
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

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

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

// NewPolicyDeniedError reports a lifecycle policy rejection: cooldown
// active, blacklist hit, cap exceeded, not a moderator.
func NewPolicyDeniedError(reason string) *AppError {
	return NewAppError(ErrCodePolicyDenied, reason, http.StatusForbidden)
}

// NewValidationError reports a rejected input value; no state changed.
func NewValidationError(reason string) *AppError {
	return NewAppError(ErrCodeValidationFailed, reason, http.StatusBadRequest)
}

// NewTargetNotFoundError reports a missing member, instance or profile.
func NewTargetNotFoundError(target string) *AppError {
	return NewAppError(ErrCodeTargetNotFound, fmt.Sprintf("%s not found", target), http.StatusNotFound)
}

// NewExternalUnavailableError reports a failed collaborator call (store,
// ACL, channel allocation).
func NewExternalUnavailableError(message string, cause error) *AppError {
	return WrapError(cause, ErrCodeExternalUnavailable, message, http.StatusBadGateway)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	type unwrapper interface {
		Unwrap() error
	}

	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}

	return nil
}
