package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// UsageRecord is an append-only per-request metric used only for reporting.
type UsageRecord struct {
	ID             uuid.UUID   `json:"id"`
	Endpoint       string      `json:"endpoint"`
	Method         string      `json:"method"`
	StatusCode     int         `json:"statusCode"`
	ResponseTimeMs int64       `json:"responseTimeMs"`
	RequestSize    int64       `json:"requestSize"`
	ResponseSize   int64       `json:"responseSize"`
	IPAddress      string      `json:"ipAddress"`
	UserAgent      string      `json:"userAgent"`
	ApiKeyID       null.String `json:"apiKeyId,omitempty"`
	UserID         null.String `json:"userId,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// EndpointUsage aggregates request volume for one endpoint.
type EndpointUsage struct {
	Endpoint     string  `json:"endpoint"`
	RequestCount int64   `json:"requestCount"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	ErrorCount   int64   `json:"errorCount"`
}

// DailyUsage is a day-bucketed request count.
type DailyUsage struct {
	Day          time.Time `json:"day"`
	RequestCount int64     `json:"requestCount"`
}

// KeyUsage ranks an API key by request volume.
type KeyUsage struct {
	ApiKeyID     string `json:"apiKeyId"`
	KeyName      string `json:"keyName"`
	RequestCount int64  `json:"requestCount"`
}

// UsageStats is the aggregate report for a time range.
type UsageStats struct {
	TotalRequests int64            `json:"totalRequests"`
	ErrorRate     float64          `json:"errorRate"`
	ByEndpoint    []*EndpointUsage `json:"byEndpoint"`
	Daily         []*DailyUsage    `json:"daily"`
	TopKeys       []*KeyUsage      `json:"topKeys"`
}
