package models

import (
	"time"
)

// Tenant statuses
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Tenant is an API consumer. Provisioning happens out of band (seed binary);
// this core only reads tenants for auth and webhook delivery.
type Tenant struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"not null;uniqueIndex" json:"name"`

	// APIKeyHash is a bcrypt hash of the tenant's API key.
	APIKeyHash string `gorm:"not null" json:"-"`
	// APIKeyPrefix lets auth find the candidate tenant without a full scan.
	APIKeyPrefix string `gorm:"not null;index;size:12" json:"-"`

	WebhookURL    string `json:"webhook_url,omitempty"`
	WebhookSecret string `json:"-"`

	Status    string    `gorm:"not null;default:'active'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User carries only what the ledger and webhook payloads need.
type User struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	TenantID  uint   `gorm:"not null;index" json:"tenant_id"`
	Email     string `gorm:"not null;index" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
