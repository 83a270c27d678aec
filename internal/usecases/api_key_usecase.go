package usecases

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"entropy-gate.backend/internal/domain/entities"
	domainerrors "entropy-gate.backend/internal/domain/errors"
	"entropy-gate.backend/internal/domain/repositories"
	"entropy-gate.backend/pkg/logger"
	redispkg "entropy-gate.backend/pkg/redis"
)

const (
	apiKeyPrefix     = "eg_live_"
	keyCachePrefix   = "apikey:"
	keyPreviewLength = 12
)

var apiKeyRandRead = rand.Read

// ApiKeyUsecase translates opaque bearer secrets into permission-bearing
// identities. Lookups take the cache-aside path: Redis first, durable store
// on miss, repopulate with a bounded TTL. Cache errors are soft; durable
// store errors fail authentication closed.
type ApiKeyUsecase struct {
	apiKeyRepo     repositories.ApiKeyRepository
	maxKeysPerUser int
	cacheTTL       time.Duration
	defaultLimit   int
}

// NewApiKeyUsecase creates a new API key usecase
func NewApiKeyUsecase(apiKeyRepo repositories.ApiKeyRepository, maxKeysPerUser int, cacheTTL time.Duration, defaultRateLimit int) *ApiKeyUsecase {
	if maxKeysPerUser <= 0 {
		maxKeysPerUser = 5
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &ApiKeyUsecase{
		apiKeyRepo:     apiKeyRepo,
		maxKeysPerUser: maxKeysPerUser,
		cacheTTL:       cacheTTL,
		defaultLimit:   defaultRateLimit,
	}
}

// HashKey returns the SHA-256 hex digest of a raw key. The digest is the
// lookup key everywhere; the secret itself is never persisted.
func HashKey(secret string) string {
	digest := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(digest[:])
}

// CreateApiKey generates a fresh secret, persists its record and returns the
// secret exactly once. Fails when the owner is at the key cap or already has
// an active key with this name.
func (u *ApiKeyUsecase) CreateApiKey(ctx context.Context, userID uuid.UUID, input *entities.CreateApiKeyInput) (*entities.CreateApiKeyResponse, error) {
	count, err := u.apiKeyRepo.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	if count >= int64(u.maxKeysPerUser) {
		return nil, domainerrors.BadRequest(fmt.Sprintf("API key limit reached (maximum %d active keys)", u.maxKeysPerUser))
	}

	exists, err := u.apiKeyRepo.ActiveNameExists(ctx, userID, input.Name)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	if exists {
		return nil, domainerrors.BadRequest("an active API key with this name already exists")
	}

	raw, err := generateRandomHex(32)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	secret := apiKeyPrefix + raw
	preview := secret[:keyPreviewLength] + "..."

	rateLimit := input.RateLimit
	if rateLimit <= 0 {
		rateLimit = u.defaultLimit
	}

	key := &entities.ApiKey{
		UserID:      userID,
		Name:        input.Name,
		KeyPrefix:   apiKeyPrefix,
		KeyHash:     HashKey(secret),
		KeyPreview:  preview,
		Permissions: input.Permissions,
		RateLimit:   rateLimit,
		LifetimeCap: input.LifetimeCap,
		IsActive:    true,
		ExpiresAt:   null.TimeFromPtr(input.ExpiresAt),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := u.apiKeyRepo.Create(ctx, key); err != nil {
		return nil, domainerrors.InternalError(err)
	}

	u.cacheKeyInfo(ctx, key)

	return &entities.CreateApiKeyResponse{
		ID:         key.ID,
		Name:       key.Name,
		ApiKey:     secret, // shown once
		KeyPreview: preview,
		CreatedAt:  key.CreatedAt,
	}, nil
}

// LookupKey resolves a raw secret to its KeyInfo. Returns ErrInvalidApiKey
// for unknown, inactive, expired or capped-out keys. Cache unavailability
// falls through to the durable store; durable store unavailability is the
// only case that returns a store error, and the caller must fail closed.
func (u *ApiKeyUsecase) LookupKey(ctx context.Context, secret string) (*entities.KeyInfo, error) {
	if secret == "" || !strings.HasPrefix(secret, apiKeyPrefix) {
		return nil, domainerrors.ErrInvalidApiKey
	}
	keyHash := HashKey(secret)

	if info, ok := u.cachedKeyInfo(ctx, keyHash); ok {
		if !u.infoUsable(info) {
			return nil, domainerrors.ErrInvalidApiKey
		}
		return info, nil
	}

	key, err := u.apiKeyRepo.FindByKeyHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrInvalidApiKey
		}
		// Durable store down and cache already missed: fail closed.
		return nil, domainerrors.ErrStoreUnavailable
	}

	if !key.IsActive || key.Expired(time.Now()) || key.OverLifetimeCap() {
		return nil, domainerrors.ErrInvalidApiKey
	}

	u.cacheKeyInfo(ctx, key)
	return keyInfoFromEntity(key), nil
}

// HasPermission checks a permission set against a required permission.
// Supported forms: exact match, global wildcard "*" and namespace wildcard "ns:*".
func HasPermission(permissions []string, required string) bool {
	if required == "" {
		return true
	}
	for _, p := range permissions {
		if p == "*" || p == required {
			return true
		}
		if ns, ok := strings.CutSuffix(p, ":*"); ok {
			if strings.HasPrefix(required, ns+":") {
				return true
			}
		}
	}
	return false
}

// RecordUsage asynchronously bumps the key's usage counters. Capped keys also
// drop their cache entry so the next lookup reads the authoritative request
// count rather than one frozen at cache-populate time. Never blocks the
// caller and never fails the calling request.
func (u *ApiKeyUsecase) RecordUsage(info *entities.KeyInfo) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := u.apiKeyRepo.IncrementUsage(ctx, info.ID); err != nil {
			logger.Warn(ctx, "Failed to record API key usage",
				zap.String("key_id", info.ID.String()),
				zap.Error(err),
			)
			return
		}
		if info.LifetimeCap > 0 {
			u.invalidateKeyCache(ctx, info.KeyHash)
		}
	}()
}

// ListApiKeys lists the caller's keys.
func (u *ApiKeyUsecase) ListApiKeys(ctx context.Context, userID uuid.UUID) ([]*entities.ApiKey, error) {
	return u.apiKeyRepo.FindByUserID(ctx, userID)
}

// UpdateApiKey patches name/limit/active state and invalidates the cache
// entry in the same operation so cache and store cannot diverge past the TTL.
func (u *ApiKeyUsecase) UpdateApiKey(ctx context.Context, userID, id uuid.UUID, input *entities.UpdateApiKeyInput) (*entities.ApiKey, error) {
	key, err := u.apiKeyRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("API key not found")
		}
		return nil, domainerrors.InternalError(err)
	}
	if key.UserID != userID {
		return nil, domainerrors.Forbidden("not owner of API key")
	}

	if input.Name != nil {
		key.Name = *input.Name
	}
	if input.RateLimit != nil {
		key.RateLimit = *input.RateLimit
	}
	if input.IsActive != nil {
		key.IsActive = *input.IsActive
	}
	key.UpdatedAt = time.Now()

	if err := u.apiKeyRepo.Update(ctx, key); err != nil {
		return nil, domainerrors.InternalError(err)
	}

	u.invalidateKeyCache(ctx, key.KeyHash)
	return key, nil
}

// RevokeApiKey soft-deletes a key (deactivation, never removal) and
// invalidates its cache entry.
func (u *ApiKeyUsecase) RevokeApiKey(ctx context.Context, userID, id uuid.UUID) error {
	key, err := u.apiKeyRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.NotFound("API key not found")
		}
		return domainerrors.InternalError(err)
	}
	if key.UserID != userID {
		return domainerrors.Forbidden("not owner of API key")
	}

	if err := u.apiKeyRepo.Deactivate(ctx, id); err != nil {
		return domainerrors.InternalError(err)
	}

	u.invalidateKeyCache(ctx, key.KeyHash)
	return nil
}

func (u *ApiKeyUsecase) infoUsable(info *entities.KeyInfo) bool {
	if info.ExpiresAt.Valid && time.Now().After(info.ExpiresAt.Time) {
		return false
	}
	if info.LifetimeCap > 0 && info.TotalRequests >= info.LifetimeCap {
		return false
	}
	return true
}

func (u *ApiKeyUsecase) cachedKeyInfo(ctx context.Context, keyHash string) (*entities.KeyInfo, bool) {
	raw, err := redispkg.Get(ctx, keyCachePrefix+keyHash)
	if err != nil {
		return nil, false
	}
	var info entities.KeyInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, false
	}
	return &info, true
}

func (u *ApiKeyUsecase) cacheKeyInfo(ctx context.Context, key *entities.ApiKey) {
	data, err := json.Marshal(keyInfoFromEntity(key))
	if err != nil {
		return
	}
	if err := redispkg.Set(ctx, keyCachePrefix+key.KeyHash, string(data), u.cacheTTL); err != nil {
		logger.Debug(ctx, "Key cache populate failed", zap.Error(err))
	}
}

func (u *ApiKeyUsecase) invalidateKeyCache(ctx context.Context, keyHash string) {
	if err := redispkg.Del(ctx, keyCachePrefix+keyHash); err != nil {
		logger.Warn(ctx, "Key cache invalidation failed", zap.Error(err))
	}
}

func keyInfoFromEntity(key *entities.ApiKey) *entities.KeyInfo {
	return &entities.KeyInfo{
		ID:            key.ID,
		UserID:        key.UserID,
		Name:          key.Name,
		KeyHash:       key.KeyHash,
		Permissions:   key.Permissions,
		RateLimit:     key.RateLimit,
		LifetimeCap:   key.LifetimeCap,
		TotalRequests: key.TotalRequests,
		ExpiresAt:     key.ExpiresAt,
	}
}

func generateRandomHex(n int) (string, error) {
	bytes := make([]byte, n/2)
	if _, err := apiKeyRandRead(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
