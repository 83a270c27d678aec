package repositories

import (
	"context"

	"github.com/google/uuid"
	"entropy-gate.backend/internal/domain/entities"
)

type ApiKeyRepository interface {
	Create(ctx context.Context, apiKey *entities.ApiKey) error
	FindByKeyHash(ctx context.Context, keyHash string) (*entities.ApiKey, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.ApiKey, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entities.ApiKey, error)
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ActiveNameExists(ctx context.Context, userID uuid.UUID, name string) (bool, error)
	Update(ctx context.Context, apiKey *entities.ApiKey) error
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}
