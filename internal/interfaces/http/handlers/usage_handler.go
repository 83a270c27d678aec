package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"entropy-gate.backend/internal/interfaces/http/response"
	"entropy-gate.backend/internal/usecases"
)

// UsageHandler exposes aggregated usage statistics
type UsageHandler struct {
	usageUsecase *usecases.UsageUsecase
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(usageUsecase *usecases.UsageUsecase) *UsageHandler {
	return &UsageHandler{usageUsecase: usageUsecase}
}

// GetUsageStats aggregates request volume, latency and error rates over a
// time range. Defaults to the trailing 7 days.
func (h *UsageHandler) GetUsageStats(c *gin.Context) {
	from, to, err := parseTimeRange(c, 7*24*time.Hour)
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.usageUsecase.GetUsageStats(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}
