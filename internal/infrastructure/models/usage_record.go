package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord rows are append-only; never read on the request path.
type UsageRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Endpoint       string    `gorm:"type:varchar(255);not null;index:idx_usage_endpoint_time"`
	Method         string    `gorm:"type:varchar(10);not null"`
	StatusCode     int       `gorm:"not null;index"`
	ResponseTimeMs int64     `gorm:"not null"`
	RequestSize    int64     `gorm:"not null;default:0"`
	ResponseSize   int64     `gorm:"not null;default:0"`
	IPAddress      string    `gorm:"type:varchar(45);not null"`
	UserAgent      string    `gorm:"type:varchar(500)"`
	ApiKeyID       *uuid.UUID `gorm:"type:uuid;index"`
	UserID         *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt      time.Time  `gorm:"index:idx_usage_endpoint_time"`
}
