package models

import (
	"time"

	"github.com/google/uuid"
)

// SecurityEvent rows are append-only; no soft delete, no updates.
type SecurityEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	EventType string    `gorm:"type:varchar(50);not null;index:idx_events_ip_type"`
	IPAddress string    `gorm:"type:varchar(45);not null;index:idx_events_ip_type"`
	UserAgent string    `gorm:"type:varchar(500)"`
	Endpoint  string    `gorm:"type:varchar(255)"`
	Severity  string    `gorm:"type:varchar(20);not null;index"`
	Details   string    `gorm:"type:text"`
	UserID    *uuid.UUID `gorm:"type:uuid;index"`
	ApiKeyID  *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt time.Time  `gorm:"index"`
}
