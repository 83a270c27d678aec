package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Constructors(t *testing.T) {
	err := NewAppError(http.StatusBadRequest, "VALIDATION_ERROR", "bad", ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.Equal(t, "bad", err.Error())

	notFound := NotFound("missing")
	assert.Equal(t, http.StatusNotFound, notFound.Status)
	assert.Equal(t, "NOT_FOUND", notFound.Code)

	unauthorized := Unauthorized("Invalid API key")
	assert.Equal(t, http.StatusUnauthorized, unauthorized.Status)
	assert.Equal(t, "Invalid API key", unauthorized.Message)

	suspicious := SuspiciousActivity("request blocked")
	assert.Equal(t, http.StatusForbidden, suspicious.Status)
	assert.Equal(t, "SUSPICIOUS_ACTIVITY", suspicious.Code)

	tooLarge := PayloadTooLarge("too big")
	assert.Equal(t, http.StatusRequestEntityTooLarge, tooLarge.Status)

	limited := TooManyRequests("slow down")
	assert.Equal(t, http.StatusTooManyRequests, limited.Status)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", limited.Code)

	unavailable := ServiceUnavailable("auth store down")
	assert.Equal(t, http.StatusServiceUnavailable, unavailable.Status)

	internal := InternalError(stderrors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.Equal(t, "internal server error", internal.Message)
}

func TestAppError_Unwrap(t *testing.T) {
	err := Unauthorized("no key")
	assert.True(t, stderrors.Is(err, ErrUnauthorized))

	wrapped := NewAppError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "down", ErrStoreUnavailable)
	assert.True(t, stderrors.Is(wrapped, ErrStoreUnavailable))
}

func TestAppError_ErrorFallbacks(t *testing.T) {
	noMessage := &AppError{Err: stderrors.New("inner")}
	assert.Equal(t, "inner", noMessage.Error())

	empty := &AppError{}
	assert.Equal(t, "unknown error", empty.Error())
}
