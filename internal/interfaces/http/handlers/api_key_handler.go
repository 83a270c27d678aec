package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"entropy-gate.backend/internal/domain/entities"
	domainerrors "entropy-gate.backend/internal/domain/errors"
	"entropy-gate.backend/internal/interfaces/http/middleware"
	"entropy-gate.backend/internal/interfaces/http/response"
	"entropy-gate.backend/internal/usecases"
)

// ApiKeyHandler handles API key management endpoints
type ApiKeyHandler struct {
	apiKeyUsecase *usecases.ApiKeyUsecase
}

// NewApiKeyHandler creates a new API key handler
func NewApiKeyHandler(apiKeyUsecase *usecases.ApiKeyUsecase) *ApiKeyHandler {
	return &ApiKeyHandler{apiKeyUsecase: apiKeyUsecase}
}

// CreateApiKey mints a new key for the session user. The secret appears in
// this response only; afterwards only the hash exists server-side.
func (h *ApiKeyHandler) CreateApiKey(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Authentication required"))
		return
	}

	var input entities.CreateApiKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	created, err := h.apiKeyUsecase.CreateApiKey(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, created)
}

// ListApiKeys returns the session user's keys, secrets redacted to previews
func (h *ApiKeyHandler) ListApiKeys(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Authentication required"))
		return
	}

	keys, err := h.apiKeyUsecase.ListApiKeys(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, keys)
}

// UpdateApiKey patches mutable key fields (name, permissions, limits, active)
func (h *ApiKeyHandler) UpdateApiKey(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid API key ID"))
		return
	}

	var input entities.UpdateApiKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	key, err := h.apiKeyUsecase.UpdateApiKey(c.Request.Context(), userID, id, &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, key)
}

// RevokeApiKey deactivates a key. Deactivation, not deletion: usage history
// keeps its foreign key.
func (h *ApiKeyHandler) RevokeApiKey(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid API key ID"))
		return
	}

	if err := h.apiKeyUsecase.RevokeApiKey(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
