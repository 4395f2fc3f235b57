package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"chainpay/internal/models"
	"chainpay/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSubscriptionStore struct {
	mock.Mock
}

func (m *MockSubscriptionStore) GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionPlan), args.Error(1)
}

func (m *MockSubscriptionStore) ListDueForRenewal(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func (m *MockSubscriptionStore) AdvancePeriod(ctx context.Context, id string, oldPeriodEnd, newStart, newEnd time.Time, newStatus string) (bool, error) {
	args := m.Called(ctx, id, oldPeriodEnd, newStart, newEnd, newStatus)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionStore) CreateInvoice(ctx context.Context, invoice *models.SubscriptionInvoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func monthlyPlan(amount int64) *models.SubscriptionPlan {
	return &models.SubscriptionPlan{
		ID:            "plan_1",
		MerchantID:    "mch_1",
		Amount:        amount,
		IntervalType:  models.IntervalMonth,
		IntervalCount: 1,
		Active:        true,
	}
}

func dueSubscription(id, status string, periodStart, periodEnd time.Time) models.Subscription {
	return models.Subscription{
		ID:                 id,
		PlanID:             "plan_1",
		MerchantID:         "mch_1",
		CustomerRef:        "cus_1",
		Status:             status,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
	}
}

func TestRunOnceRenewsActiveSubscription(t *testing.T) {
	store := new(MockSubscriptionStore)
	sched := NewScheduler(store, time.Hour, 100)

	periodStart := date(2024, time.January, 1)
	periodEnd := date(2024, time.February, 1)
	sub := dueSubscription("sub_1", models.SubscriptionStatusActive, periodStart, periodEnd)

	var calls []string
	store.On("ListDueForRenewal", mock.Anything, mock.Anything, 100).
		Return([]models.Subscription{sub}, nil)
	store.On("GetPlan", mock.Anything, "plan_1").Return(monthlyPlan(2500), nil)
	store.On("CreateInvoice", mock.Anything, mock.MatchedBy(func(inv *models.SubscriptionInvoice) bool {
		return inv.SubscriptionID == "sub_1" &&
			inv.Amount == 2500 &&
			inv.Status == models.InvoiceStatusPending &&
			inv.PeriodStart.Equal(periodStart) &&
			inv.PeriodEnd.Equal(periodEnd) &&
			inv.DueDate.Equal(periodEnd)
	})).Run(func(mock.Arguments) {
		calls = append(calls, "invoice")
	}).Return(nil)
	store.On("AdvancePeriod", mock.Anything, "sub_1", periodEnd, periodEnd, date(2024, time.March, 1), models.SubscriptionStatusActive).
		Run(func(mock.Arguments) {
			calls = append(calls, "advance")
		}).Return(true, nil)

	renewed, failed := sched.RunOnce(context.Background())
	assert.Equal(t, 1, renewed)
	assert.Equal(t, 0, failed)
	// invoicing precedes the advance so a crash in between is recoverable
	assert.Equal(t, []string{"invoice", "advance"}, calls)
	store.AssertExpectations(t)
}

func TestRunOnceConvertsTrialToActive(t *testing.T) {
	store := new(MockSubscriptionStore)
	sched := NewScheduler(store, time.Hour, 100)

	periodEnd := date(2024, time.February, 1)
	sub := dueSubscription("sub_1", models.SubscriptionStatusTrialing, date(2024, time.January, 18), periodEnd)

	store.On("ListDueForRenewal", mock.Anything, mock.Anything, 100).
		Return([]models.Subscription{sub}, nil)
	store.On("GetPlan", mock.Anything, "plan_1").Return(monthlyPlan(900), nil)
	store.On("AdvancePeriod", mock.Anything, "sub_1", periodEnd, periodEnd, mock.Anything, models.SubscriptionStatusActive).
		Return(true, nil)
	store.On("CreateInvoice", mock.Anything, mock.Anything).Return(nil)

	renewed, _ := sched.RunOnce(context.Background())
	assert.Equal(t, 1, renewed)
	store.AssertExpectations(t)
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	store := new(MockSubscriptionStore)
	sched := NewScheduler(store, time.Hour, 100)

	periodEnd := date(2024, time.February, 1)
	broken := dueSubscription("sub_broken", models.SubscriptionStatusActive, date(2024, time.January, 1), periodEnd)
	healthy := dueSubscription("sub_ok", models.SubscriptionStatusActive, date(2024, time.January, 1), periodEnd)

	store.On("ListDueForRenewal", mock.Anything, mock.Anything, 100).
		Return([]models.Subscription{broken, healthy}, nil)
	store.On("GetPlan", mock.Anything, "plan_1").Return(monthlyPlan(2500), nil)
	store.On("CreateInvoice", mock.Anything, mock.MatchedBy(func(inv *models.SubscriptionInvoice) bool {
		return inv.SubscriptionID == "sub_broken"
	})).Return(errors.New("store unavailable"))
	store.On("CreateInvoice", mock.Anything, mock.MatchedBy(func(inv *models.SubscriptionInvoice) bool {
		return inv.SubscriptionID == "sub_ok"
	})).Return(nil)
	store.On("AdvancePeriod", mock.Anything, "sub_ok", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)

	renewed, failed := sched.RunOnce(context.Background())
	assert.Equal(t, 1, renewed)
	assert.Equal(t, 1, failed)
	store.AssertExpectations(t)
}

func TestRunOnceSkipsConcurrentlyAdvanced(t *testing.T) {
	store := new(MockSubscriptionStore)
	sched := NewScheduler(store, time.Hour, 100)

	periodEnd := date(2024, time.February, 1)
	sub := dueSubscription("sub_1", models.SubscriptionStatusActive, date(2024, time.January, 1), periodEnd)

	store.On("ListDueForRenewal", mock.Anything, mock.Anything, 100).
		Return([]models.Subscription{sub}, nil)
	store.On("GetPlan", mock.Anything, "plan_1").Return(monthlyPlan(2500), nil)
	store.On("CreateInvoice", mock.Anything, mock.Anything).
		Return(repositories.ErrDuplicateInvoice)
	store.On("AdvancePeriod", mock.Anything, "sub_1", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(false, nil)

	renewed, failed := sched.RunOnce(context.Background())
	assert.Equal(t, 1, renewed)
	assert.Equal(t, 0, failed)
	store.AssertExpectations(t)
}

func TestRunOnceFinishesPartialRenewal(t *testing.T) {
	// an earlier run invoiced the period but died before advancing it, so
	// the subscription is still due: the duplicate invoice is absorbed and
	// the advance completes the renewal
	store := new(MockSubscriptionStore)
	sched := NewScheduler(store, time.Hour, 100)

	periodEnd := date(2024, time.February, 1)
	sub := dueSubscription("sub_1", models.SubscriptionStatusActive, date(2024, time.January, 1), periodEnd)

	store.On("ListDueForRenewal", mock.Anything, mock.Anything, 100).
		Return([]models.Subscription{sub}, nil)
	store.On("GetPlan", mock.Anything, "plan_1").Return(monthlyPlan(2500), nil)
	store.On("CreateInvoice", mock.Anything, mock.MatchedBy(func(inv *models.SubscriptionInvoice) bool {
		return inv.SubscriptionID == "sub_1" && inv.PeriodStart.Equal(date(2024, time.January, 1))
	})).Return(repositories.ErrDuplicateInvoice)
	store.On("AdvancePeriod", mock.Anything, "sub_1", periodEnd, periodEnd, date(2024, time.March, 1), models.SubscriptionStatusActive).
		Return(true, nil)

	renewed, failed := sched.RunOnce(context.Background())
	assert.Equal(t, 1, renewed)
	assert.Equal(t, 0, failed)
	store.AssertExpectations(t)
}
