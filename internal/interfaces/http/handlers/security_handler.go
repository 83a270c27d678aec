package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"entropy-gate.backend/internal/domain/entities"
	domainerrors "entropy-gate.backend/internal/domain/errors"
	"entropy-gate.backend/internal/interfaces/http/response"
	"entropy-gate.backend/internal/usecases"
	"entropy-gate.backend/pkg/utils"
)

// SecurityHandler exposes the admin-facing security surface: aggregate stats
// and manual IP block/unblock.
type SecurityHandler struct {
	monitor *usecases.SecurityMonitor
}

// NewSecurityHandler creates a new security handler
func NewSecurityHandler(monitor *usecases.SecurityMonitor) *SecurityHandler {
	return &SecurityHandler{monitor: monitor}
}

// GetSecurityStats aggregates security events over a time range.
// Query params from/to are RFC3339; defaults cover the last 24 hours.
func (h *SecurityHandler) GetSecurityStats(c *gin.Context) {
	from, to, err := parseTimeRange(c, 24*time.Hour)
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.monitor.GetSecurityStats(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// ListSecurityEvents pages through the raw audit trail, newest first.
// Same from/to query params as the stats endpoint, plus page/limit.
func (h *SecurityHandler) ListSecurityEvents(c *gin.Context) {
	from, to, err := parseTimeRange(c, 24*time.Hour)
	if err != nil {
		response.Error(c, err)
		return
	}

	var params utils.PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	params = utils.GetPaginationParams(params.Page, params.Limit)

	events, meta, err := h.monitor.ListSecurityEvents(c.Request.Context(), from, to, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, events, map[string]interface{}{
		"pagination": meta,
	})
}

// BlockIP manually blocks a source IP for the requested duration
func (h *SecurityHandler) BlockIP(c *gin.Context) {
	var input entities.BlockIPInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	h.monitor.BlockIP(c.Request.Context(), input.IPAddress, input.DurationSeconds, input.Reason)
	response.Success(c, http.StatusOK, gin.H{"blocked": input.IPAddress})
}

// UnblockIP lifts a block before it expires
func (h *SecurityHandler) UnblockIP(c *gin.Context) {
	ip := c.Param("ip")
	if ip == "" {
		response.Error(c, domainerrors.BadRequest("IP address is required"))
		return
	}

	h.monitor.UnblockIP(c.Request.Context(), ip)
	response.Success(c, http.StatusOK, gin.H{"unblocked": ip})
}

// parseTimeRange reads from/to query params shared by the stats endpoints.
func parseTimeRange(c *gin.Context, defaultSpan time.Duration) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Add(-defaultSpan)
	to := now

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, domainerrors.BadRequest("Invalid 'from' timestamp, expected RFC3339")
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, domainerrors.BadRequest("Invalid 'to' timestamp, expected RFC3339")
		}
		to = parsed
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, domainerrors.BadRequest("'to' must not precede 'from'")
	}
	return from, to, nil
}
