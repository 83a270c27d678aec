package repositories

import (
	"context"
	"time"

	"entropy-gate.backend/internal/domain/entities"
)

type UsageRepository interface {
	Create(ctx context.Context, record *entities.UsageRecord) error
	Stats(ctx context.Context, from, to time.Time, topKeys int) (*entities.UsageStats, error)
}
