package repositories

import (
	"context"
	"time"

	"entropy-gate.backend/internal/domain/entities"
	"entropy-gate.backend/pkg/utils"
)

type SecurityEventRepository interface {
	Create(ctx context.Context, event *entities.SecurityEvent) error
	CountByIPAndType(ctx context.Context, ip string, eventType entities.SecurityEventType, since time.Time) (int64, error)
	Stats(ctx context.Context, from, to time.Time, recentLimit int) (*entities.SecurityStats, error)
	List(ctx context.Context, from, to time.Time, params utils.PaginationParams) ([]*entities.SecurityEvent, int64, error)
}
