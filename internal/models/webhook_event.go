package models

import (
	"time"
)

// Webhook event types
const (
	WebhookEventIntentCreated   = "payment_intent.created"
	WebhookEventIntentSucceeded = "payment_intent.succeeded"
	WebhookEventIntentFailed    = "payment_intent.failed"
)

// WebhookEvent is the durable record of one notification queued for delivery
// to a merchant endpoint. Rows are never deleted; they double as the audit
// and delivery log. DeliveredAt, once set, is immutable.
type WebhookEvent struct {
	ID              string `gorm:"primarykey"`
	Type            string `gorm:"not null"`
	MerchantID      string `gorm:"index;not null"`
	PaymentIntentID *string
	Data            JSON `gorm:"type:jsonb"`
	// DedupKey absorbs duplicate dispatch of the same chain event: the
	// state machine derives it from (intent, type, tx hash) and the unique
	// index rejects the second insert.
	DedupKey         *string `gorm:"uniqueIndex"`
	DeliveredAt      *time.Time
	DeliveryAttempts int `gorm:"not null;default:0"`
	LastError        *string
	// NextRetryAt drives the durable retry queue: the notifier polls for
	// undelivered rows whose NextRetryAt is due.
	NextRetryAt *time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Delivered reports whether the event reached the merchant.
func (e *WebhookEvent) Delivered() bool {
	return e.DeliveredAt != nil
}
