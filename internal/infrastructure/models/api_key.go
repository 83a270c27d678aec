package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApiKey struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Name          string    `gorm:"type:varchar(100);not null"`
	KeyPrefix     string    `gorm:"type:varchar(20);not null"`
	KeyHash       string    `gorm:"type:varchar(64);uniqueIndex;not null"` // SHA256 of key
	KeyPreview    string    `gorm:"type:varchar(20);not null"`             // "eg_live_abcd..."
	Permissions   string    `gorm:"type:text;not null"`                    // JSON string
	RateLimit     int       `gorm:"not null;default:0"`                    // requests per window, 0 = policy default
	LifetimeCap   int64     `gorm:"not null;default:0"`                    // 0 = unlimited
	TotalRequests int64     `gorm:"not null;default:0"`
	IsActive      bool      `gorm:"default:true;not null"`
	LastUsedAt    *time.Time
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
	User          User           `gorm:"foreignKey:UserID"`
}
