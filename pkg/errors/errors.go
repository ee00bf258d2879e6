package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Common error codes used across all packages
const (
	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Validation and configuration errors
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeConfiguration    ErrorCode = "CONFIGURATION_ERROR"

	// 2FA errors
	ErrCodeOTPInvalidOrExpired ErrorCode = "OTP_INVALID_OR_EXPIRED"
	ErrCodeBackupCodeInvalid   ErrorCode = "BACKUP_CODE_INVALID"
	ErrCode2FANotEnabled       ErrorCode = "TWO_FA_NOT_ENABLED"
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"

	// Delivery and storage errors
	ErrCodeProvider         ErrorCode = "PROVIDER_ERROR"
	ErrCodePersistence      ErrorCode = "PERSISTENCE_ERROR"
	ErrCodeNotificationType ErrorCode = "NOTIFICATION_TYPE_DISABLED"
)

// InvalidCodeMessage is the single user-facing message for every failed code check.
const InvalidCodeMessage = "invalid code"

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// PublicMessage returns the message that is safe to show to an end user.
// Code check failures collapse into one message so callers cannot tell which check failed.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusText(http.StatusInternalServerError)
	}
	switch e.Code {
	case ErrCodeOTPInvalidOrExpired, ErrCodeBackupCodeInvalid:
		return InvalidCodeMessage
	case ErrCodeInternal, ErrCodePersistence:
		return http.StatusText(http.StatusInternalServerError)
	default:
		return e.Message
	}
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeValidationFailed:
		return http.StatusBadRequest

	case ErrCodeUnauthorized, ErrCodeOTPInvalidOrExpired, ErrCodeBackupCodeInvalid:
		return http.StatusUnauthorized

	case ErrCodeForbidden:
		return http.StatusForbidden

	case ErrCodeNotFound:
		return http.StatusNotFound

	case ErrCode2FANotEnabled, ErrCodeNotificationType:
		return http.StatusConflict

	case ErrCodeConfiguration:
		return http.StatusUnprocessableEntity

	case ErrCodeRateLimited:
		return http.StatusTooManyRequests

	case ErrCodeProvider:
		return http.StatusBadGateway

	case ErrCodeInternal, ErrCodePersistence:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Domain error constructors

// NotFound creates a "not found" error
func NotFound(resourceType, identifier string) *Error {
	return Newf(ErrCodeNotFound, "%s not found: %s", resourceType, identifier)
}

// Forbidden creates a "forbidden" error
func Forbidden(message string) *Error {
	return New(ErrCodeForbidden, message)
}

// Validation creates a "validation failed" error for a single field
func Validation(field, reason string) *Error {
	return Newf(ErrCodeValidationFailed, "invalid %s: %s", field, reason).WithDetail("field", field)
}

// Configuration creates a configuration error (missing credentials or contact info)
func Configuration(message string) *Error {
	return New(ErrCodeConfiguration, message)
}

// InvalidOrExpiredToken is returned for every failed OTP verification, whatever the cause
func InvalidOrExpiredToken() *Error {
	return New(ErrCodeOTPInvalidOrExpired, "invalid or expired code")
}

// InvalidBackupCode is returned when a backup code is unknown or already used
func InvalidBackupCode() *Error {
	return New(ErrCodeBackupCodeInvalid, "invalid backup code")
}

// NotEnabled is returned when a 2FA operation needs 2FA to be enabled
func NotEnabled() *Error {
	return New(ErrCode2FANotEnabled, "two-factor authentication is not enabled")
}

// RateLimited is returned when a caller exceeds its code attempt budget
func RateLimited() *Error {
	return New(ErrCodeRateLimited, "too many attempts, try again later")
}

// Provider wraps a gateway failure
func Provider(provider string, err error) *Error {
	return Wrap(err, ErrCodeProvider, "provider "+provider+" failed")
}

// Persistence wraps a durable store failure
func Persistence(err error, message string) *Error {
	return Wrap(err, ErrCodePersistence, message)
}

// TypeDisabled is returned when the user turned off alerts for a notification type
func TypeDisabled(notificationType string) *Error {
	return Newf(ErrCodeNotificationType, "notifications of type %s are disabled", notificationType)
}
