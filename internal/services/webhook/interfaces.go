package webhook

import (
	"context"
	"time"

	"chainpay/internal/models"
)

// Dependencies required by the notifier

type EventStore interface {
	GetByID(ctx context.Context, id string) (*models.WebhookEvent, error)
	ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error)
	ListRecoverable(ctx context.Context, createdAfter time.Time, maxAttempts int) ([]models.WebhookEvent, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id, lastError string, nextRetryAt *time.Time) error
	Reschedule(ctx context.Context, id string, at time.Time) error
}

type MerchantStore interface {
	GetByID(ctx context.Context, id string) (*models.Merchant, error)
}

type Signer interface {
	Sign(payload []byte, secret string, ts time.Time) (string, error)
}
