package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// ApiKey represents an API key for a user
type ApiKey struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"userId"`
	Name          string    `json:"name"`
	KeyPrefix     string    `json:"keyPrefix"`
	KeyHash       string    `json:"-"`
	KeyPreview    string    `json:"keyPreview"`
	Permissions   []string  `json:"permissions"`
	RateLimit     int       `json:"rateLimit"`
	LifetimeCap   int64     `json:"lifetimeCap"`
	TotalRequests int64     `json:"totalRequests"`
	IsActive      bool      `json:"isActive"`
	LastUsedAt    null.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt     null.Time `json:"expiresAt,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	User *User `json:"user,omitempty"`
}

// Expired reports whether the key is past its expiry timestamp.
func (k *ApiKey) Expired(now time.Time) bool {
	return k.ExpiresAt.Valid && now.After(k.ExpiresAt.Time)
}

// OverLifetimeCap reports whether the key has exhausted its lifetime request cap.
// A cap of zero means unlimited.
func (k *ApiKey) OverLifetimeCap() bool {
	return k.LifetimeCap > 0 && k.TotalRequests >= k.LifetimeCap
}

// KeyInfo is the resolved identity attached to an authenticated request.
// It is what the key cache stores, so it must stay JSON-serializable and
// carries its own hash so usage bookkeeping can address the cache entry.
type KeyInfo struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"userId"`
	Name          string    `json:"name"`
	KeyHash       string    `json:"keyHash"`
	Permissions   []string  `json:"permissions"`
	RateLimit     int       `json:"rateLimit"`
	LifetimeCap   int64     `json:"lifetimeCap"`
	TotalRequests int64     `json:"totalRequests"`
	ExpiresAt     null.Time `json:"expiresAt,omitempty"`
}

type CreateApiKeyInput struct {
	Name        string     `json:"name" binding:"required,min=1,max=100"`
	Permissions []string   `json:"permissions"`
	RateLimit   int        `json:"rateLimit"`
	LifetimeCap int64      `json:"lifetimeCap"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

type UpdateApiKeyInput struct {
	Name      *string `json:"name"`
	RateLimit *int    `json:"rateLimit"`
	IsActive  *bool   `json:"isActive"`
}

type CreateApiKeyResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	ApiKey     string    `json:"apiKey"` // Shown once, never persisted
	KeyPreview string    `json:"keyPreview"`
	CreatedAt  time.Time `json:"createdAt"`
}
