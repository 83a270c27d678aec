package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"entropy-gate.backend/internal/domain/entities"
	domainerrors "entropy-gate.backend/internal/domain/errors"
	"entropy-gate.backend/internal/infrastructure/models"
	"entropy-gate.backend/pkg/utils"
)

// ApiKeyRepository implements API key data operations
type ApiKeyRepository struct {
	db *gorm.DB
}

// NewApiKeyRepository creates a new API key repository
func NewApiKeyRepository(db *gorm.DB) *ApiKeyRepository {
	return &ApiKeyRepository{db: db}
}

// Create creates a new API key
func (r *ApiKeyRepository) Create(ctx context.Context, key *entities.ApiKey) error {
	m, err := toApiKeyModel(key)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	key.ID = m.ID
	key.CreatedAt = m.CreatedAt
	key.UpdatedAt = m.UpdatedAt
	return nil
}

// FindByKeyHash finds an API key by its secret's SHA-256 digest
func (r *ApiKeyRepository) FindByKeyHash(ctx context.Context, keyHash string) (*entities.ApiKey, error) {
	var m models.ApiKey
	if err := r.db.WithContext(ctx).Where("key_hash = ?", keyHash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toApiKeyEntity(&m)
}

// FindByUserID lists a user's API keys, newest first
func (r *ApiKeyRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.ApiKey, error) {
	var keyModels []models.ApiKey
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keyModels).Error; err != nil {
		return nil, err
	}

	keys := make([]*entities.ApiKey, 0, len(keyModels))
	for i := range keyModels {
		e, err := toApiKeyEntity(&keyModels[i])
		if err != nil {
			return nil, err
		}
		keys = append(keys, e)
	}
	return keys, nil
}

// FindByID finds an API key by ID
func (r *ApiKeyRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.ApiKey, error) {
	var m models.ApiKey
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toApiKeyEntity(&m)
}

// CountActiveByUser counts a user's active keys
func (r *ApiKeyRepository) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ApiKey{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count, err
}

// ActiveNameExists reports whether the user already has an active key with this name
func (r *ApiKeyRepository) ActiveNameExists(ctx context.Context, userID uuid.UUID, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ApiKey{}).
		Where("user_id = ? AND name = ? AND is_active = ?", userID, name, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update updates mutable key fields
func (r *ApiKeyRepository) Update(ctx context.Context, key *entities.ApiKey) error {
	permissions, err := json.Marshal(key.Permissions)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"name":        key.Name,
		"permissions": string(permissions),
		"rate_limit":  key.RateLimit,
		"is_active":   key.IsActive,
		"updated_at":  time.Now(),
	}
	if key.LastUsedAt.Valid {
		updates["last_used_at"] = key.LastUsedAt.Time
	}

	result := r.db.WithContext(ctx).Model(&models.ApiKey{}).Where("id = ?", key.ID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// IncrementUsage bumps total_requests and last_used_at in one statement
func (r *ApiKeyRepository) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.ApiKey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_requests": gorm.Expr("total_requests + 1"),
			"last_used_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Deactivate soft-revokes a key. The row is kept so audit history stays valid.
func (r *ApiKeyRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.ApiKey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func toApiKeyModel(e *entities.ApiKey) (*models.ApiKey, error) {
	permissions, err := json.Marshal(e.Permissions)
	if err != nil {
		return nil, err
	}
	m := &models.ApiKey{
		ID:            e.ID,
		UserID:        e.UserID,
		Name:          e.Name,
		KeyPrefix:     e.KeyPrefix,
		KeyHash:       e.KeyHash,
		KeyPreview:    e.KeyPreview,
		Permissions:   string(permissions),
		RateLimit:     e.RateLimit,
		LifetimeCap:   e.LifetimeCap,
		TotalRequests: e.TotalRequests,
		IsActive:      e.IsActive,
		LastUsedAt:    e.LastUsedAt.Ptr(),
		ExpiresAt:     e.ExpiresAt.Ptr(),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if m.ID == uuid.Nil {
		m.ID = utils.GenerateUUIDv7()
	}
	return m, nil
}

func toApiKeyEntity(m *models.ApiKey) (*entities.ApiKey, error) {
	var permissions []string
	if m.Permissions != "" {
		if err := json.Unmarshal([]byte(m.Permissions), &permissions); err != nil {
			return nil, err
		}
	}
	return &entities.ApiKey{
		ID:            m.ID,
		UserID:        m.UserID,
		Name:          m.Name,
		KeyPrefix:     m.KeyPrefix,
		KeyHash:       m.KeyHash,
		KeyPreview:    m.KeyPreview,
		Permissions:   permissions,
		RateLimit:     m.RateLimit,
		LifetimeCap:   m.LifetimeCap,
		TotalRequests: m.TotalRequests,
		IsActive:      m.IsActive,
		LastUsedAt:    null.TimeFromPtr(m.LastUsedAt),
		ExpiresAt:     null.TimeFromPtr(m.ExpiresAt),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}
