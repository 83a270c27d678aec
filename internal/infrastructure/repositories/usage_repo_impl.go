package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"entropy-gate.backend/internal/domain/entities"
	"entropy-gate.backend/internal/infrastructure/models"
	"entropy-gate.backend/pkg/utils"
)

// UsageRepository implements append-only request metric recording
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Create appends a usage record
func (r *UsageRepository) Create(ctx context.Context, record *entities.UsageRecord) error {
	m := &models.UsageRecord{
		ID:             record.ID,
		Endpoint:       record.Endpoint,
		Method:         record.Method,
		StatusCode:     record.StatusCode,
		ResponseTimeMs: record.ResponseTimeMs,
		RequestSize:    record.RequestSize,
		ResponseSize:   record.ResponseSize,
		IPAddress:      record.IPAddress,
		UserAgent:      record.UserAgent,
		ApiKeyID:       uuidPtrFromNullString(record.ApiKeyID),
		UserID:         uuidPtrFromNullString(record.UserID),
		CreatedAt:      record.CreatedAt,
	}
	if m.ID == uuid.Nil {
		m.ID = utils.GenerateUUIDv7()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// Stats aggregates usage in [from, to) for reporting
func (r *UsageRepository) Stats(ctx context.Context, from, to time.Time, topKeys int) (*entities.UsageStats, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.UsageRecord{}).
			Where("created_at >= ? AND created_at < ?", from, to)
	}

	stats := &entities.UsageStats{}

	if err := base().Count(&stats.TotalRequests).Error; err != nil {
		return nil, err
	}

	var errorCount int64
	if err := base().Where("status_code >= ?", 400).Count(&errorCount).Error; err != nil {
		return nil, err
	}
	if stats.TotalRequests > 0 {
		stats.ErrorRate = float64(errorCount) / float64(stats.TotalRequests)
	}

	var endpointRows []struct {
		Endpoint     string
		RequestCount int64
		AvgLatencyMs float64
		ErrorCount   int64
	}
	if err := base().
		Select(`endpoint,
			COUNT(*) as request_count,
			AVG(response_time_ms) as avg_latency_ms,
			SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END) as error_count`).
		Group("endpoint").
		Order("request_count DESC").
		Scan(&endpointRows).Error; err != nil {
		return nil, err
	}
	for _, row := range endpointRows {
		stats.ByEndpoint = append(stats.ByEndpoint, &entities.EndpointUsage{
			Endpoint:     row.Endpoint,
			RequestCount: row.RequestCount,
			AvgLatencyMs: row.AvgLatencyMs,
			ErrorCount:   row.ErrorCount,
		})
	}

	// DATE() works on both postgres and the sqlite used by tests
	var dailyRows []struct {
		Day          string
		RequestCount int64
	}
	if err := base().
		Select("DATE(created_at) as day, COUNT(*) as request_count").
		Group("DATE(created_at)").
		Order("day ASC").
		Scan(&dailyRows).Error; err != nil {
		return nil, err
	}
	for _, row := range dailyRows {
		day, err := time.Parse("2006-01-02", row.Day)
		if err != nil {
			continue
		}
		stats.Daily = append(stats.Daily, &entities.DailyUsage{
			Day:          day,
			RequestCount: row.RequestCount,
		})
	}

	if topKeys > 0 {
		var keyRows []struct {
			ApiKeyID     string
			KeyName      string
			RequestCount int64
		}
		if err := r.db.WithContext(ctx).
			Table("usage_records").
			Select("usage_records.api_key_id, api_keys.name as key_name, COUNT(*) as request_count").
			Joins("JOIN api_keys ON api_keys.id = usage_records.api_key_id").
			Where("usage_records.created_at >= ? AND usage_records.created_at < ? AND usage_records.api_key_id IS NOT NULL", from, to).
			Group("usage_records.api_key_id, api_keys.name").
			Order("request_count DESC").
			Limit(topKeys).
			Scan(&keyRows).Error; err != nil {
			return nil, err
		}
		for _, row := range keyRows {
			stats.TopKeys = append(stats.TopKeys, &entities.KeyUsage{
				ApiKeyID:     row.ApiKeyID,
				KeyName:      row.KeyName,
				RequestCount: row.RequestCount,
			})
		}
	}

	return stats, nil
}
