package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainerrors "entropy-gate.backend/internal/domain/errors"
)

// Success sends a success envelope
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// SuccessWithMeta sends a success envelope with extra top-level metadata
func SuccessWithMeta(c *gin.Context, status int, data interface{}, meta map[string]interface{}) {
	body := gin.H{
		"success": true,
		"data":    data,
	}
	for k, v := range meta {
		body[k] = v
	}
	c.JSON(status, body)
}

// Error sends an error envelope. Every pipeline and handler failure funnels
// through here so the envelope shape and status mapping stay consistent.
func Error(c *gin.Context, err error) {
	appErr, ok := err.(*domainerrors.AppError)
	if !ok {
		appErr = domainerrors.InternalError(err)
	}

	c.JSON(appErr.Status, gin.H{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	})
}

// AbortError sends an error envelope and aborts the middleware chain.
func AbortError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// RateLimitHeaders sets the standard rate-limit headers on the response.
// They are applied on success and on 429 rejection alike.
func RateLimitHeaders(c *gin.Context, limit, remaining int, resetAt int64) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
}

// RetryAfterHeader sets the Retry-After header on a 429 rejection.
func RetryAfterHeader(c *gin.Context, seconds int) {
	c.Header("Retry-After", strconv.Itoa(seconds))
}

// NoContent sends an empty success response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
