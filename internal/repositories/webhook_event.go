package repositories

import (
	"context"
	"errors"
	"time"

	"chainpay/internal/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ErrDuplicateEvent is returned when an event with the same dedup key was
// already recorded, typically because the same chain event was dispatched
// twice.
var ErrDuplicateEvent = errors.New("webhook event already recorded")

// pqUniqueViolation is the PostgreSQL error code for unique_violation.
const pqUniqueViolation = "23505"

// WebhookEventRepository owns webhook event rows. Rows are append-only plus
// delivery bookkeeping; nothing ever deletes them.
type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	GetByID(ctx context.Context, id string) (*models.WebhookEvent, error)
	// ListDue returns undelivered events whose next retry time has passed.
	ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error)
	// ListRecoverable returns undelivered, non-exhausted events created
	// after the cutoff, for startup recovery.
	ListRecoverable(ctx context.Context, createdAfter time.Time, maxAttempts int) ([]models.WebhookEvent, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	// RecordFailure increments the attempt counter, stores the error and
	// schedules the next retry. A nil nextRetryAt means retries are
	// exhausted and the event stays parked for manual inspection.
	RecordFailure(ctx context.Context, id, lastError string, nextRetryAt *time.Time) error
	Reschedule(ctx context.Context, id string, at time.Time) error
}

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a gorm-backed webhook event repository.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	if event.ID == "" {
		event.ID = models.NewID(models.IDPrefixWebhookEvent)
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateEvent
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (r *webhookEventRepository) GetByID(ctx context.Context, id string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *webhookEventRepository) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("delivered_at IS NULL AND delivery_attempts < ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", maxAttempts, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *webhookEventRepository) ListRecoverable(ctx context.Context, createdAfter time.Time, maxAttempts int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("delivered_at IS NULL AND delivery_attempts < ? AND created_at > ?", maxAttempts, createdAfter).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

func (r *webhookEventRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	// delivered_at is immutable once set; the NULL guard keeps a late
	// duplicate delivery from touching it again.
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND delivered_at IS NULL", id).
		Updates(map[string]interface{}{
			"delivered_at":      at,
			"delivery_attempts": gorm.Expr("delivery_attempts + 1"),
			"next_retry_at":     nil,
			"last_error":        nil,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *webhookEventRepository) RecordFailure(ctx context.Context, id, lastError string, nextRetryAt *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND delivered_at IS NULL", id).
		Updates(map[string]interface{}{
			"delivery_attempts": gorm.Expr("delivery_attempts + 1"),
			"last_error":        lastError,
			"next_retry_at":     nextRetryAt,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *webhookEventRepository) Reschedule(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND delivered_at IS NULL", id).
		Update("next_retry_at", at).Error
}
