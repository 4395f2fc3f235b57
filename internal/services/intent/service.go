// Package intent holds the payment-intent state machine. Transitions are
// idempotent and terminal-respecting: the chain poller delivers events at
// least once, so applying the same (intent, tx hash) pair twice must equal
// applying it once.
package intent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chainpay/internal/models"
	"chainpay/internal/repositories"
	"chainpay/internal/services/chain"
)

var (
	ErrUnknownEventType = errors.New("unknown domain event type")
)

type service struct {
	intents IntentStore
	events  EventStore
	now     func() time.Time
}

// NewService creates the state machine.
func NewService(intents IntentStore, events EventStore) Service {
	return &service{
		intents: intents,
		events:  events,
		now:     time.Now,
	}
}

// Apply routes a domain event to its transition. The match is exhaustive
// over the closed chain.DomainEvent union.
func (s *service) Apply(ctx context.Context, event chain.DomainEvent) error {
	switch e := event.(type) {
	case chain.IntentCreated:
		return s.applyRegistration(ctx, e)
	case chain.PaymentSucceeded:
		return s.applyOutcome(ctx, e.IntentID, models.IntentStatusSucceeded, e.TxHash, e.BlockHeight, "")
	case chain.PaymentFailed:
		return s.applyOutcome(ctx, e.IntentID, models.IntentStatusFailed, e.TxHash, e.BlockHeight, e.Reason)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEventType, event)
	}
}

// applyRegistration handles the on-chain registration of an intent the API
// already created at pending. No transition applies; the merchant is
// notified of the registration once.
func (s *service) applyRegistration(ctx context.Context, e chain.IntentCreated) error {
	record, err := s.intents.GetByID(ctx, e.IntentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			log.Printf("intent: on-chain registration for unknown intent %s, discarded", e.IntentID)
			return nil
		}
		return fmt.Errorf("load intent %s: %w", e.IntentID, err)
	}
	log.Printf("intent: on-chain registration for %s (tx=%s)", e.IntentID, e.TxHash)
	return s.emitWebhookEvent(ctx, record, models.WebhookEventIntentCreated, e.TxHash, "")
}

// applyOutcome moves a pending intent into succeeded or failed and emits
// the matching webhook event exactly once.
func (s *service) applyOutcome(ctx context.Context, intentID, status, txHash string, blockHeight int64, reason string) error {
	eventType := models.WebhookEventIntentSucceeded
	if status == models.IntentStatusFailed {
		eventType = models.WebhookEventIntentFailed
	}

	updated, err := s.intents.MarkOutcomeFromPending(ctx, intentID, status, txHash, blockHeight)
	if err != nil {
		return fmt.Errorf("persist intent %s: %w", intentID, err)
	}

	if !updated {
		return s.classifyNoop(ctx, intentID, status, txHash, eventType, reason)
	}

	record, err := s.intents.GetByID(ctx, intentID)
	if err != nil {
		return fmt.Errorf("reload intent %s: %w", intentID, err)
	}
	return s.emitWebhookEvent(ctx, record, eventType, txHash, reason)
}

// classifyNoop decides why a conditional update matched nothing: a replayed
// event re-asserts its webhook event, a terminal-state conflict is logged
// and discarded, an unknown intent is logged and discarded.
func (s *service) classifyNoop(ctx context.Context, intentID, status, txHash, eventType, reason string) error {
	record, err := s.intents.GetByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			log.Printf("intent: chain event for unknown intent %s, discarded", intentID)
			return nil
		}
		return fmt.Errorf("load intent %s: %w", intentID, err)
	}

	if record.Status == status && record.TxHash != nil && *record.TxHash == txHash {
		// replay from a poller restart or a retried block. The transition
		// already committed, but the first dispatch may have died between
		// the update and the event insert, so the event is re-asserted;
		// the dedup key makes this a no-op when it was recorded.
		return s.emitWebhookEvent(ctx, record, eventType, txHash, reason)
	}

	log.Printf("intent: terminal-state conflict on %s (status=%s, incoming=%s tx=%s), discarded",
		intentID, record.Status, status, txHash)
	return nil
}

func (s *service) emitWebhookEvent(ctx context.Context, record *models.PaymentIntent, eventType, txHash, reason string) error {
	data := models.JSON{
		"id":          record.ID,
		"merchant_id": record.MerchantID,
		"amount":      record.Amount,
		"status":      record.Status,
		"description": record.Description,
		"metadata":    record.Metadata,
	}
	if record.TxHash != nil {
		data["tx_hash"] = *record.TxHash
	}
	if record.BlockHeight != nil {
		data["block_height"] = *record.BlockHeight
	}
	if reason != "" {
		data["failure_reason"] = reason
	}

	dedup := fmt.Sprintf("%s:%s:%s", record.ID, eventType, txHash)
	now := s.now().UTC()
	event := &models.WebhookEvent{
		Type:            eventType,
		MerchantID:      record.MerchantID,
		PaymentIntentID: &record.ID,
		Data:            data,
		DedupKey:        &dedup,
		NextRetryAt:     &now,
	}

	if err := s.events.Create(ctx, event); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEvent) {
			// a concurrent dispatch of the same chain event won the race
			log.Printf("intent: webhook event for %s already recorded", dedup)
			return nil
		}
		return fmt.Errorf("create webhook event for %s: %w", record.ID, err)
	}
	return nil
}
