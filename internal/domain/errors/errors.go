package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidApiKey      = errors.New("invalid api key")
	ErrPermissionDenied   = errors.New("insufficient permissions")
	ErrSuspiciousActivity = errors.New("suspicious activity detected")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrKeyLimitReached    = errors.New("api key limit reached")
	ErrExternalService    = errors.New("external service unavailable")
	ErrStoreUnavailable   = errors.New("durable store unavailable")
)

// AppError represents an application error with an HTTP status and a stable
// machine-readable reason code. Internal error details never reach the caller.
type AppError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, "NOT_FOUND", message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, "VALIDATION_ERROR", message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, "AUTHENTICATION_ERROR", message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, "AUTHORIZATION_ERROR", message, ErrForbidden)
}

func SuspiciousActivity(message string) *AppError {
	return NewAppError(http.StatusForbidden, "SUSPICIOUS_ACTIVITY", message, ErrSuspiciousActivity)
}

func PayloadTooLarge(message string) *AppError {
	return NewAppError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", message, ErrPayloadTooLarge)
}

func TooManyRequests(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", message, ErrRateLimitExceeded)
}

func BadGateway(message string) *AppError {
	return NewAppError(http.StatusBadGateway, "EXTERNAL_SERVICE_ERROR", message, ErrExternalService)
}

func ServiceUnavailable(message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, ErrExternalService)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
}
