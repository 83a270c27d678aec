package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"entropy-gate.backend/internal/domain/entities"
	domainerrors "entropy-gate.backend/internal/domain/errors"
	"entropy-gate.backend/internal/interfaces/http/middleware"
	"entropy-gate.backend/internal/interfaces/http/response"
	"entropy-gate.backend/internal/usecases"
)

// RandomHandler serves the generation endpoints. Gatekeeping happened in the
// security pipeline by the time these run.
type RandomHandler struct {
	randomUsecase *usecases.RandomUsecase
}

// NewRandomHandler creates a new random handler
func NewRandomHandler(randomUsecase *usecases.RandomUsecase) *RandomHandler {
	return &RandomHandler{randomUsecase: randomUsecase}
}

// GenerateNumber returns a random integer in [min, max]
func (h *RandomHandler) GenerateNumber(c *gin.Context) {
	var input entities.RandomNumberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.randomUsecase.GenerateNumber(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.respond(c, result)
}

// GenerateString returns a random string
func (h *RandomHandler) GenerateString(c *gin.Context) {
	var input entities.RandomStringInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.randomUsecase.GenerateString(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.respond(c, result)
}

// GenerateBytes returns hex-encoded random bytes
func (h *RandomHandler) GenerateBytes(c *gin.Context) {
	var input entities.RandomBytesInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.randomUsecase.GenerateBytes(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.respond(c, result)
}

// SourceHealth reports upstream entropy source reachability
func (h *RandomHandler) SourceHealth(c *gin.Context) {
	if err := h.randomUsecase.CheckSource(c.Request.Context()); err != nil {
		response.SuccessWithMeta(c, http.StatusOK, gin.H{"status": "degraded"}, nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// respond attaches the quota metadata the pipeline resolved for this request.
func (h *RandomHandler) respond(c *gin.Context, result *entities.RandomResult) {
	meta := map[string]interface{}{}
	if remaining, ok := c.Get(middleware.RateRemainingKey); ok {
		meta["remaining"] = remaining
	}
	if reset, ok := c.Get(middleware.RateResetKey); ok {
		meta["resetAt"] = reset
	}
	if name, ok := c.Get(middleware.KeyNameKey); ok {
		meta["keyName"] = name
	}
	response.SuccessWithMeta(c, http.StatusOK, result, meta)
}
