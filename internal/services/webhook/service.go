// Package webhook delivers signed event notifications to merchant endpoints
// with bounded exponential-backoff retry. Retry state lives in the database
// (next_retry_at), not in process timers, so pending retries survive a
// restart.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"chainpay/internal/models"
)

// Delivery policy
const (
	MaxAttempts    = 5
	InitialDelay   = 1 * time.Second
	MaxDelay       = 5 * time.Minute
	RequestTimeout = 30 * time.Second
	// RecoveryWindow bounds startup recovery: older undelivered events are
	// left parked for manual inspection.
	RecoveryWindow = 24 * time.Hour

	userAgent = "chainpay-webhooks/1.0"
)

var (
	ErrEventNotFound   = errors.New("webhook event not found")
	ErrMerchantMissing = errors.New("merchant for event not found")
)

// payload is the canonical webhook body merchants receive.
type payload struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Created int64       `json:"created"`
	Data    models.JSON `json:"data"`
}

// Service delivers webhook events.
type Service struct {
	events     EventStore
	merchants  MerchantStore
	signer     Signer
	httpClient *http.Client
	now        func() time.Time
}

// NewService creates the notifier. httpClient may be nil; a 30s-bounded
// default is used.
func NewService(events EventStore, merchants MerchantStore, signer Signer, httpClient *http.Client) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: RequestTimeout}
	}
	return &Service{
		events:     events,
		merchants:  merchants,
		signer:     signer,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// RetryDelay returns the backoff delay scheduled after the given failed
// attempt (1-based): 1s, 2s, 4s, ... capped at MaxDelay.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := InitialDelay << (attempt - 1)
	if delay > MaxDelay || delay <= 0 {
		return MaxDelay
	}
	return delay
}

// Deliver attempts one delivery of the event, recording the outcome. It is
// both the worker's unit of work and the manual ops entry point; already
// delivered events are a no-op.
func (s *Service) Deliver(ctx context.Context, eventID string) error {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	if event.Delivered() {
		return nil
	}

	merchant, err := s.merchants.GetByID(ctx, event.MerchantID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMerchantMissing, event.MerchantID)
	}

	if merchant.WebhookURL == "" {
		// no endpoint configured: mark delivered so the retry queue does
		// not spin on an undeliverable row; the audit record remains
		log.Printf("webhook: merchant %s has no webhook_url, marking %s delivered", merchant.ID, event.ID)
		return s.events.MarkDelivered(ctx, event.ID, s.now().UTC())
	}

	status, deliverErr := s.post(ctx, event, merchant)
	if deliverErr == nil {
		if err := s.events.MarkDelivered(ctx, event.ID, s.now().UTC()); err != nil {
			return fmt.Errorf("mark delivered %s: %w", event.ID, err)
		}
		log.Printf("webhook: delivered %s to merchant %s (status=%d, attempt=%d)",
			event.ID, merchant.ID, status, event.DeliveryAttempts+1)
		return nil
	}

	attempt := event.DeliveryAttempts + 1
	var nextRetry *time.Time
	if attempt < MaxAttempts {
		next := s.now().UTC().Add(RetryDelay(attempt))
		nextRetry = &next
		log.Printf("webhook: attempt %d/%d for %s failed: %v (retry in %s)",
			attempt, MaxAttempts, event.ID, deliverErr, RetryDelay(attempt))
	} else {
		log.Printf("webhook: %s permanently failed after %d attempts: %v", event.ID, attempt, deliverErr)
	}

	if err := s.events.RecordFailure(ctx, event.ID, deliverErr.Error(), nextRetry); err != nil {
		return fmt.Errorf("record failure %s: %w", event.ID, err)
	}
	return nil
}

// post builds the canonical signed payload and sends it. A non-2xx status
// is returned as an error so the caller's retry bookkeeping is uniform.
func (s *Service) post(ctx context.Context, event *models.WebhookEvent, merchant *models.Merchant) (int, error) {
	body, err := json.Marshal(payload{
		ID:      event.ID,
		Type:    event.Type,
		Created: event.CreatedAt.Unix(),
		Data:    event.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	ts := s.now()
	sig, err := s.signer.Sign(body, merchant.WebhookSecret, ts)
	if err != nil {
		return 0, fmt.Errorf("sign payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, merchant.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Gateway-Signature", sig)
	req.Header.Set("Gateway-Event-Type", event.Type)
	req.Header.Set("Gateway-Event-Id", event.ID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
