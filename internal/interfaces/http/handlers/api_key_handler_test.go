package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entropy-gate.backend/internal/domain/entities"
	domainerrors "entropy-gate.backend/internal/domain/errors"
	"entropy-gate.backend/internal/interfaces/http/middleware"
	"entropy-gate.backend/internal/usecases"
	loggerpkg "entropy-gate.backend/pkg/logger"
)

type apiKeyRepoStub struct {
	createFn      func(ctx context.Context, key *entities.ApiKey) error
	findByUserFn  func(ctx context.Context, userID uuid.UUID) ([]*entities.ApiKey, error)
	findByIDFn    func(ctx context.Context, id uuid.UUID) (*entities.ApiKey, error)
	deactivateFn  func(ctx context.Context, id uuid.UUID) error
	countActiveFn func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (s *apiKeyRepoStub) Create(ctx context.Context, key *entities.ApiKey) error {
	if s.createFn != nil {
		return s.createFn(ctx, key)
	}
	return nil
}

func (s *apiKeyRepoStub) FindByKeyHash(context.Context, string) (*entities.ApiKey, error) {
	return nil, domainerrors.ErrNotFound
}

func (s *apiKeyRepoStub) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.ApiKey, error) {
	if s.findByUserFn != nil {
		return s.findByUserFn(ctx, userID)
	}
	return []*entities.ApiKey{}, nil
}

func (s *apiKeyRepoStub) FindByID(ctx context.Context, id uuid.UUID) (*entities.ApiKey, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, id)
	}
	return nil, domainerrors.ErrNotFound
}

func (s *apiKeyRepoStub) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.countActiveFn != nil {
		return s.countActiveFn(ctx, userID)
	}
	return 0, nil
}

func (s *apiKeyRepoStub) ActiveNameExists(context.Context, uuid.UUID, string) (bool, error) {
	return false, nil
}

func (s *apiKeyRepoStub) Update(context.Context, *entities.ApiKey) error { return nil }

func (s *apiKeyRepoStub) IncrementUsage(context.Context, uuid.UUID) error { return nil }

func (s *apiKeyRepoStub) Deactivate(ctx context.Context, id uuid.UUID) error {
	if s.deactivateFn != nil {
		return s.deactivateFn(ctx, id)
	}
	return nil
}

func newApiKeyRouter(repo *apiKeyRepoStub, userID uuid.UUID, authed bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	loggerpkg.Init("test")

	h := NewApiKeyHandler(usecases.NewApiKeyUsecase(repo, 5, time.Hour, 100))

	r := gin.New()
	withUser := func(c *gin.Context) {
		if authed {
			c.Set(middleware.UserIDKey, userID)
		}
		c.Next()
	}
	r.POST("/keys", withUser, h.CreateApiKey)
	r.GET("/keys", withUser, h.ListApiKeys)
	r.PUT("/keys/:id", withUser, h.UpdateApiKey)
	r.DELETE("/keys/:id", withUser, h.RevokeApiKey)
	return r
}

func TestApiKeyHandler_CreateApiKey(t *testing.T) {
	userID := uuid.New()
	repo := &apiKeyRepoStub{
		createFn: func(_ context.Context, key *entities.ApiKey) error {
			key.ID = uuid.New()
			assert.Equal(t, userID, key.UserID)
			return nil
		},
	}
	r := newApiKeyRouter(repo, userID, true)

	rec := postJSON(r, "/keys", `{"name":"reporting","permissions":["random:generate"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			ApiKey     string `json:"apiKey"`
			KeyPreview string `json:"keyPreview"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.True(t, strings.HasPrefix(body.Data.ApiKey, "eg_live_"))
	assert.True(t, strings.HasSuffix(body.Data.KeyPreview, "..."))
}

func TestApiKeyHandler_CreateApiKey_Unauthenticated(t *testing.T) {
	r := newApiKeyRouter(&apiKeyRepoStub{}, uuid.Nil, false)

	rec := postJSON(r, "/keys", `{"name":"reporting"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApiKeyHandler_CreateApiKey_MissingName(t *testing.T) {
	r := newApiKeyRouter(&apiKeyRepoStub{}, uuid.New(), true)

	rec := postJSON(r, "/keys", `{"permissions":["*"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApiKeyHandler_ListApiKeys(t *testing.T) {
	userID := uuid.New()
	repo := &apiKeyRepoStub{
		findByUserFn: func(_ context.Context, gotUserID uuid.UUID) ([]*entities.ApiKey, error) {
			require.Equal(t, userID, gotUserID)
			return []*entities.ApiKey{
				{ID: uuid.New(), Name: "reporting", UserID: userID, KeyPreview: "eg_live_a1b2..."},
			}, nil
		},
	}
	r := newApiKeyRouter(repo, userID, true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/keys", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eg_live_a1b2...")
	assert.NotContains(t, rec.Body.String(), "keyHash")
}

func TestApiKeyHandler_UpdateApiKey_InvalidID(t *testing.T) {
	r := newApiKeyRouter(&apiKeyRepoStub{}, uuid.New(), true)

	req := httptest.NewRequest(http.MethodPut, "/keys/not-a-uuid", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApiKeyHandler_RevokeApiKey(t *testing.T) {
	userID := uuid.New()
	keyID := uuid.New()
	deactivated := false
	repo := &apiKeyRepoStub{
		findByIDFn: func(_ context.Context, id uuid.UUID) (*entities.ApiKey, error) {
			return &entities.ApiKey{ID: id, UserID: userID, KeyHash: "hash"}, nil
		},
		deactivateFn: func(_ context.Context, id uuid.UUID) error {
			require.Equal(t, keyID, id)
			deactivated = true
			return nil
		},
	}
	r := newApiKeyRouter(repo, userID, true)

	req := httptest.NewRequest(http.MethodDelete, "/keys/"+keyID.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, deactivated)
	assert.Contains(t, rec.Body.String(), `"revoked":true`)
}

func TestApiKeyHandler_RevokeApiKey_NotOwner(t *testing.T) {
	repo := &apiKeyRepoStub{
		findByIDFn: func(_ context.Context, id uuid.UUID) (*entities.ApiKey, error) {
			return &entities.ApiKey{ID: id, UserID: uuid.New(), KeyHash: "hash"}, nil
		},
	}
	r := newApiKeyRouter(repo, uuid.New(), true)

	req := httptest.NewRequest(http.MethodDelete, "/keys/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
