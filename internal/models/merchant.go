package models

import (
	"time"
)

// Merchant is read-only to the event pipeline; rows are provisioned by the
// dashboard (out of scope) or the seeding tool.
type Merchant struct {
	ID            string `gorm:"primarykey"`
	BusinessName  string `gorm:"not null"`
	Email         string `gorm:"uniqueIndex;not null"`
	WebhookURL    string
	WebhookSecret string `gorm:"not null"`
	APIKeyHash    string `gorm:"column:api_key_hash;not null"`
	Active        bool   `gorm:"default:true"`
	Metadata      JSON   `gorm:"type:jsonb"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
