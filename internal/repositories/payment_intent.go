package repositories

import (
	"context"
	"errors"
	"time"

	"chainpay/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// PaymentIntentRepository provides conditional access to payment intents.
type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *models.PaymentIntent) error
	GetByID(ctx context.Context, id string) (*models.PaymentIntent, error)
	ListByMerchant(ctx context.Context, merchantID string, limit int) ([]models.PaymentIntent, error)
	// MarkOutcomeFromPending transitions an intent out of pending in a
	// single conditional UPDATE. It reports false when the intent was not
	// pending anymore, which callers classify as replay or conflict.
	MarkOutcomeFromPending(ctx context.Context, id, status, txHash string, blockHeight int64) (bool, error)
}

type paymentIntentRepository struct {
	db *gorm.DB
}

// NewPaymentIntentRepository creates a gorm-backed intent repository.
func NewPaymentIntentRepository(db *gorm.DB) PaymentIntentRepository {
	return &paymentIntentRepository{db: db}
}

func (r *paymentIntentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.ID == "" {
		intent.ID = models.NewID(models.IDPrefixPaymentIntent)
	}
	if intent.Status == "" {
		intent.Status = models.IntentStatusPending
	}
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *paymentIntentRepository) GetByID(ctx context.Context, id string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &intent, nil
}

func (r *paymentIntentRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]models.PaymentIntent, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var intents []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&intents).Error
	return intents, err
}

func (r *paymentIntentRepository) MarkOutcomeFromPending(ctx context.Context, id, status, txHash string, blockHeight int64) (bool, error) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if txHash != "" {
		updates["tx_hash"] = txHash
		updates["block_height"] = blockHeight
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, models.IntentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
