package webhook

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"
)

// Worker defaults
const (
	DefaultPollInterval = 1 * time.Second
	DefaultWorkers      = 8
	DefaultBatchSize    = 50
	// claimWindow pushes a claimed event's next_retry_at into the future so
	// overlapping poll ticks do not double-deliver while a request is in
	// flight. A crash mid-delivery surfaces the event again afterwards.
	claimWindow = 2 * time.Minute

	maxRecoveryJitter = 10 * time.Second
)

// Worker polls the durable retry queue and delivers due events with a
// bounded number of concurrent outbound calls.
type Worker struct {
	svc          *Service
	events       EventStore
	pollInterval time.Duration
	batchSize    int
	sem          chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWorker creates a delivery worker. workers bounds concurrent HTTP
// calls; zero values fall back to defaults.
func NewWorker(svc *Service, events EventStore, workers, batchSize int, pollInterval time.Duration) *Worker {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Worker{
		svc:          svc,
		events:       events,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		sem:          make(chan struct{}, workers),
	}
}

// Start recovers pending retries, then launches the polling loop. Calling
// it twice is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})

	if err := w.recoverPending(ctx); err != nil {
		log.Printf("webhook: startup recovery failed: %v", err)
	}

	go w.run(ctx)
	log.Printf("webhook: worker started (poll=%s, workers=%d)", w.pollInterval, cap(w.sem))
}

// Stop suppresses future scheduling and waits for in-flight deliveries to
// finish; it does not cancel them. Calling Stop twice is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.wg.Wait()
	log.Println("webhook: worker stopped")
}

// recoverPending reschedules undelivered, non-exhausted events from the
// recovery window with random jitter so a restart does not fire every
// pending retry at once.
func (w *Worker) recoverPending(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-RecoveryWindow)
	events, err := w.events.ListRecoverable(ctx, cutoff, MaxAttempts)
	if err != nil {
		return err
	}
	for _, event := range events {
		jitter := time.Duration(rand.Int63n(int64(maxRecoveryJitter)))
		if err := w.events.Reschedule(ctx, event.ID, time.Now().UTC().Add(jitter)); err != nil {
			log.Printf("webhook: reschedule %s during recovery: %v", event.ID, err)
		}
	}
	if len(events) > 0 {
		log.Printf("webhook: recovered %d pending deliveries", len(events))
	}
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainDue(ctx)
		}
	}
}

func (w *Worker) drainDue(ctx context.Context) {
	now := time.Now().UTC()
	due, err := w.events.ListDue(ctx, now, MaxAttempts, w.batchSize)
	if err != nil {
		log.Printf("webhook: list due events: %v", err)
		return
	}

	for _, event := range due {
		// claim before dispatching so the next tick skips it
		if err := w.events.Reschedule(ctx, event.ID, now.Add(claimWindow)); err != nil {
			log.Printf("webhook: claim %s: %v", event.ID, err)
			continue
		}

		select {
		case w.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		w.wg.Add(1)
		go func(eventID string) {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			// deliveries run to completion even during shutdown
			if err := w.svc.Deliver(context.Background(), eventID); err != nil {
				log.Printf("webhook: deliver %s: %v", eventID, err)
			}
		}(event.ID)
	}
}
