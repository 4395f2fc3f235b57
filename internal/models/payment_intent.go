package models

import (
	"time"
)

// Payment intent statuses
const (
	IntentStatusPending    = "pending"
	IntentStatusProcessing = "processing"
	IntentStatusSucceeded  = "succeeded"
	IntentStatusFailed     = "failed"
	IntentStatusCanceled   = "canceled"
)

// PaymentIntent represents one attempted payment and its lifecycle status.
// Amounts are stored as integers in the smallest currency unit.
type PaymentIntent struct {
	ID          string `gorm:"primarykey"`
	MerchantID  string `gorm:"index;not null"`
	Amount      int64  `gorm:"not null"`
	Status      string `gorm:"not null;default:'pending';index"`
	TxHash      *string
	BlockHeight *int64
	Description string
	Metadata    JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Terminal reports whether the intent reached a final status. Terminal
// intents never transition again.
func (p *PaymentIntent) Terminal() bool {
	switch p.Status {
	case IntentStatusSucceeded, IntentStatusFailed, IntentStatusCanceled:
		return true
	}
	return false
}
