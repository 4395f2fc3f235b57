package billing

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"chainpay/internal/models"
	"chainpay/internal/repositories"
)

// DefaultRunInterval is the renewal batch cadence.
const DefaultRunInterval = time.Hour

// SubscriptionStore is the persistence surface the scheduler needs.
type SubscriptionStore interface {
	GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error)
	ListDueForRenewal(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error)
	AdvancePeriod(ctx context.Context, id string, oldPeriodEnd, newStart, newEnd time.Time, newStatus string) (bool, error)
	CreateInvoice(ctx context.Context, invoice *models.SubscriptionInvoice) error
}

// Scheduler runs the subscription renewal batch on a fixed cadence.
type Scheduler struct {
	store     SubscriptionStore
	interval  time.Duration
	batchSize int
	now       func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a renewal scheduler.
func NewScheduler(store SubscriptionStore, interval time.Duration, batchSize int) *Scheduler {
	if interval <= 0 {
		interval = DefaultRunInterval
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Scheduler{
		store:     store,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Start launches the periodic batch. Calling it twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
	log.Printf("billing: renewal scheduler started (interval=%s)", s.interval)
}

// Stop halts the periodic batch; an in-progress run finishes its current
// subscription. Calling Stop twice is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	log.Println("billing: renewal scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, failed := s.RunOnce(ctx)
			if renewed > 0 || failed > 0 {
				log.Printf("billing: renewal batch done (renewed=%d, failed=%d)", renewed, failed)
			}
		}
	}
}

// RunOnce processes every subscription due for renewal. A failure on one
// subscription is logged and never aborts the rest of the batch.
func (s *Scheduler) RunOnce(ctx context.Context) (renewed, failed int) {
	now := s.now().UTC()
	subs, err := s.store.ListDueForRenewal(ctx, now, s.batchSize)
	if err != nil {
		log.Printf("billing: list due subscriptions: %v", err)
		return 0, 0
	}

	for i := range subs {
		select {
		case <-ctx.Done():
			return renewed, failed
		default:
		}
		if err := s.renew(ctx, &subs[i]); err != nil {
			log.Printf("billing: renew subscription %s: %v", subs[i].ID, err)
			failed++
			continue
		}
		renewed++
	}
	return renewed, failed
}

// renew advances one subscription's billing period and invoices the period
// that just completed.
func (s *Scheduler) renew(ctx context.Context, sub *models.Subscription) error {
	plan, err := s.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	newStart := sub.CurrentPeriodEnd
	newEnd, err := AddInterval(newStart, plan.IntervalType, plan.IntervalCount)
	if err != nil {
		return err
	}

	newStatus := sub.Status
	if newStatus == models.SubscriptionStatusTrialing {
		// the trial converts on its first renewal
		newStatus = models.SubscriptionStatusActive
	}

	// invoice first: the unique (subscription, period start) index absorbs
	// the duplicate from a concurrent or previously crashed run, and a
	// crash before the advance leaves the subscription due so the next
	// batch finishes the renewal
	invoice := &models.SubscriptionInvoice{
		SubscriptionID: sub.ID,
		MerchantID:     sub.MerchantID,
		Amount:         plan.Amount,
		Status:         models.InvoiceStatusPending,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
		DueDate:        sub.CurrentPeriodEnd,
	}
	if err := s.store.CreateInvoice(ctx, invoice); err != nil {
		if !errors.Is(err, repositories.ErrDuplicateInvoice) {
			return err
		}
		log.Printf("billing: period already invoiced for subscription %s", sub.ID)
	}

	advanced, err := s.store.AdvancePeriod(ctx, sub.ID, sub.CurrentPeriodEnd, newStart, newEnd, newStatus)
	if err != nil {
		return err
	}
	if !advanced {
		log.Printf("billing: subscription %s already advanced by another run", sub.ID)
	}
	return nil
}
