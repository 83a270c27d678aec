package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"entropy-gate.backend/internal/domain/entities"
	"entropy-gate.backend/internal/infrastructure/models"
	"entropy-gate.backend/pkg/utils"
)

// SecurityEventRepository implements the durable audit trail
type SecurityEventRepository struct {
	db *gorm.DB
}

// NewSecurityEventRepository creates a new security event repository
func NewSecurityEventRepository(db *gorm.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

// Create appends an event to the audit trail
func (r *SecurityEventRepository) Create(ctx context.Context, event *entities.SecurityEvent) error {
	m := &models.SecurityEvent{
		ID:        event.ID,
		EventType: string(event.EventType),
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Endpoint:  event.Endpoint,
		Severity:  string(event.Severity),
		Details:   event.Details,
		UserID:    uuidPtrFromNullString(event.UserID),
		ApiKeyID:  uuidPtrFromNullString(event.ApiKeyID),
		CreatedAt: event.CreatedAt,
	}
	if m.ID == uuid.Nil {
		m.ID = utils.GenerateUUIDv7()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// CountByIPAndType counts events from one IP of one type since a cutoff
func (r *SecurityEventRepository) CountByIPAndType(ctx context.Context, ip string, eventType entities.SecurityEventType, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Where("ip_address = ? AND event_type = ? AND created_at >= ?", ip, string(eventType), since).
		Count(&count).Error
	return count, err
}

// Stats aggregates events in [from, to) for the dashboard
func (r *SecurityEventRepository) Stats(ctx context.Context, from, to time.Time, recentLimit int) (*entities.SecurityStats, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.SecurityEvent{}).
			Where("created_at >= ? AND created_at < ?", from, to)
	}

	stats := &entities.SecurityStats{
		EventsByType:     map[entities.SecurityEventType]int64{},
		EventsBySeverity: map[entities.SecuritySeverity]int64{},
	}

	if err := base().Count(&stats.TotalEvents).Error; err != nil {
		return nil, err
	}

	var typeRows []struct {
		EventType string
		Count     int64
	}
	if err := base().
		Select("event_type, COUNT(*) as count").
		Group("event_type").
		Scan(&typeRows).Error; err != nil {
		return nil, err
	}
	for _, row := range typeRows {
		stats.EventsByType[entities.SecurityEventType(row.EventType)] = row.Count
	}

	var severityRows []struct {
		Severity string
		Count    int64
	}
	if err := base().
		Select("severity, COUNT(*) as count").
		Group("severity").
		Scan(&severityRows).Error; err != nil {
		return nil, err
	}
	for _, row := range severityRows {
		stats.EventsBySeverity[entities.SecuritySeverity(row.Severity)] = row.Count
	}

	var ipRows []struct {
		IPAddress string
		Count     int64
	}
	if err := base().
		Select("ip_address, COUNT(*) as count").
		Group("ip_address").
		Order("count DESC").
		Limit(10).
		Scan(&ipRows).Error; err != nil {
		return nil, err
	}
	for _, row := range ipRows {
		stats.TopSourceIPs = append(stats.TopSourceIPs, entities.IPEventCount{
			IPAddress: row.IPAddress,
			Count:     row.Count,
		})
	}

	if recentLimit > 0 {
		var eventModels []models.SecurityEvent
		if err := base().
			Order("created_at DESC").
			Limit(recentLimit).
			Find(&eventModels).Error; err != nil {
			return nil, err
		}
		for i := range eventModels {
			stats.RecentEvents = append(stats.RecentEvents, toSecurityEventEntity(&eventModels[i]))
		}
	}

	return stats, nil
}

// List pages through the audit trail in [from, to), newest first.
func (r *SecurityEventRepository) List(ctx context.Context, from, to time.Time, params utils.PaginationParams) ([]*entities.SecurityEvent, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Where("created_at >= ? AND created_at < ?", from, to)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Order("created_at DESC")
	if params.Limit > 0 {
		query = query.Offset(params.CalculateOffset()).Limit(params.Limit)
	}

	var eventModels []models.SecurityEvent
	if err := query.Find(&eventModels).Error; err != nil {
		return nil, 0, err
	}

	events := make([]*entities.SecurityEvent, 0, len(eventModels))
	for i := range eventModels {
		events = append(events, toSecurityEventEntity(&eventModels[i]))
	}
	return events, total, nil
}

func toSecurityEventEntity(m *models.SecurityEvent) *entities.SecurityEvent {
	return &entities.SecurityEvent{
		ID:        m.ID,
		EventType: entities.SecurityEventType(m.EventType),
		IPAddress: m.IPAddress,
		UserAgent: m.UserAgent,
		Endpoint:  m.Endpoint,
		Severity:  entities.SecuritySeverity(m.Severity),
		Details:   m.Details,
		UserID:    nullStringFromUUIDPtr(m.UserID),
		ApiKeyID:  nullStringFromUUIDPtr(m.ApiKeyID),
		CreatedAt: m.CreatedAt,
	}
}

func uuidPtrFromNullString(s null.String) *uuid.UUID {
	if !s.Valid {
		return nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil
	}
	return &id
}

func nullStringFromUUIDPtr(id *uuid.UUID) null.String {
	if id == nil {
		return null.String{}
	}
	return null.StringFrom(id.String())
}
