package intent

import (
	"context"

	"chainpay/internal/models"
	"chainpay/internal/services/chain"
)

// Service applies decoded chain events to payment intents. It satisfies
// chain.Applier.
type Service interface {
	Apply(ctx context.Context, event chain.DomainEvent) error
}

// Dependencies required by the state machine

type IntentStore interface {
	GetByID(ctx context.Context, id string) (*models.PaymentIntent, error)
	MarkOutcomeFromPending(ctx context.Context, id, status, txHash string, blockHeight int64) (bool, error)
}

type EventStore interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
}
