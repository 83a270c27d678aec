package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// SecurityEventType classifies a security-relevant event.
type SecurityEventType string

const (
	EventRateLimitExceeded SecurityEventType = "rate_limit_exceeded"
	EventInvalidApiKey     SecurityEventType = "invalid_api_key"
	EventSuspiciousRequest SecurityEventType = "suspicious_request"
	EventBlockedOrigin     SecurityEventType = "blocked_origin"
	EventOversizedPayload  SecurityEventType = "oversized_payload"
	EventInvalidSignature  SecurityEventType = "invalid_signature"
	EventIPBlocked         SecurityEventType = "ip_blocked"
	EventIPUnblocked       SecurityEventType = "ip_unblocked"
)

// SecuritySeverity is the event severity scale.
type SecuritySeverity string

const (
	SeverityLow      SecuritySeverity = "low"
	SeverityMedium   SecuritySeverity = "medium"
	SeverityHigh     SecuritySeverity = "high"
	SeverityCritical SecuritySeverity = "critical"
)

// SecurityEvent is an append-only audit fact. Once written it is immutable.
type SecurityEvent struct {
	ID        uuid.UUID         `json:"id"`
	EventType SecurityEventType `json:"eventType"`
	IPAddress string            `json:"ipAddress"`
	UserAgent string            `json:"userAgent"`
	Endpoint  string            `json:"endpoint"`
	Severity  SecuritySeverity  `json:"severity"`
	Details   string            `json:"details,omitempty"`
	UserID    null.String       `json:"userId,omitempty"`
	ApiKeyID  null.String       `json:"apiKeyId,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// SecurityStats is the aggregate view served to the dashboard.
type SecurityStats struct {
	TotalEvents      int64                       `json:"totalEvents"`
	EventsByType     map[SecurityEventType]int64 `json:"eventsByType"`
	EventsBySeverity map[SecuritySeverity]int64  `json:"eventsBySeverity"`
	TopSourceIPs     []IPEventCount              `json:"topSourceIps"`
	RecentEvents     []*SecurityEvent            `json:"recentEvents"`
}

// IPEventCount ranks a source IP by event volume.
type IPEventCount struct {
	IPAddress string `json:"ipAddress"`
	Count     int64  `json:"count"`
}

// BlockIPInput represents an administrative block request.
type BlockIPInput struct {
	IPAddress       string `json:"ipAddress" binding:"required"`
	DurationSeconds int    `json:"durationSeconds" binding:"required,min=1"`
	Reason          string `json:"reason"`
}
