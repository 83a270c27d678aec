package usecases

import (
	"context"
	"time"

	"go.uber.org/zap"

	"entropy-gate.backend/internal/domain/entities"
	"entropy-gate.backend/internal/domain/repositories"
	"entropy-gate.backend/pkg/logger"
)

// UsageUsecase records per-request metrics for reporting. Writes are
// fire-and-forget from the pipeline's perspective.
type UsageUsecase struct {
	usageRepo repositories.UsageRepository
}

// NewUsageUsecase creates a new usage usecase
func NewUsageUsecase(usageRepo repositories.UsageRepository) *UsageUsecase {
	return &UsageUsecase{usageRepo: usageRepo}
}

// LogRequest persists a usage record in the background. A dropped or failed
// write is logged, never retried inline and never surfaced to the request.
func (u *UsageUsecase) LogRequest(record *entities.UsageRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := u.usageRepo.Create(ctx, record); err != nil {
			logger.Warn(ctx, "Failed to persist usage record",
				zap.String("endpoint", record.Endpoint),
				zap.Error(err),
			)
		}
	}()
}

// GetUsageStats aggregates usage for a time range. Read path, off the hot path.
func (u *UsageUsecase) GetUsageStats(ctx context.Context, from, to time.Time) (*entities.UsageStats, error) {
	return u.usageRepo.Stats(ctx, from, to, 10)
}
