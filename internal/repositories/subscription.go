package repositories

import (
	"context"
	"errors"
	"time"

	"chainpay/internal/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ErrDuplicateInvoice is returned when an invoice for the same subscription
// period was already created, typically by an earlier scheduler run that
// died before advancing the period.
var ErrDuplicateInvoice = errors.New("invoice already exists for period")

// SubscriptionRepository serves the renewal scheduler: due-subscription
// selection, optimistic period advancement and invoice creation.
type SubscriptionRepository interface {
	CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error
	GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error)
	Create(ctx context.Context, sub *models.Subscription) error
	GetByID(ctx context.Context, id string) (*models.Subscription, error)
	// ListDueForRenewal returns active/trialing subscriptions whose period
	// ended at or before now and that are not flagged to cancel.
	ListDueForRenewal(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error)
	// AdvancePeriod moves the billing window forward, conditional on the
	// stored period end still matching what the scheduler read. It reports
	// false when another run advanced the subscription first.
	AdvancePeriod(ctx context.Context, id string, oldPeriodEnd, newStart, newEnd time.Time, newStatus string) (bool, error)
	// CreateInvoice returns ErrDuplicateInvoice when the subscription
	// period was already invoiced.
	CreateInvoice(ctx context.Context, invoice *models.SubscriptionInvoice) error
}

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a gorm-backed subscription repository.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	if plan.ID == "" {
		plan.ID = models.NewID(models.IDPrefixPlan)
	}
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *subscriptionRepository) GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = models.NewID(models.IDPrefixSubscription)
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListDueForRenewal(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 200
	}
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status IN ? AND current_period_end <= ? AND cancel_at_period_end = ?",
			[]string{models.SubscriptionStatusActive, models.SubscriptionStatusTrialing}, now, false).
		Order("current_period_end ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) AdvancePeriod(ctx context.Context, id string, oldPeriodEnd, newStart, newEnd time.Time, newStatus string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND current_period_end = ?", id, oldPeriodEnd).
		Updates(map[string]interface{}{
			"current_period_start": newStart,
			"current_period_end":   newEnd,
			"status":               newStatus,
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *subscriptionRepository) CreateInvoice(ctx context.Context, invoice *models.SubscriptionInvoice) error {
	if invoice.ID == "" {
		invoice.ID = models.NewID(models.IDPrefixInvoice)
	}
	if invoice.Status == "" {
		invoice.Status = models.InvoiceStatusPending
	}
	if err := r.db.WithContext(ctx).Create(invoice).Error; err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateInvoice
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateInvoice
		}
		return err
	}
	return nil
}
