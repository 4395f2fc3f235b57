package chain

import (
	"context"
	"log"
	"sync"
	"time"
)

// Poller defaults
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollInterval = 80 * time.Second
	DefaultBlockFetchTries = 3
	DefaultBlockRetryDelay = 500 * time.Millisecond
)

// Lease guards against concurrent poller instances. Webhook event creation
// is not idempotent under duplicate dispatch, so exactly one poller may run
// per deployment.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// PollerConfig tunes the polling loop.
type PollerConfig struct {
	Interval        time.Duration
	MaxInterval     time.Duration
	BlockFetchTries int
	BlockRetryDelay time.Duration
}

func (c *PollerConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultMaxPollInterval
	}
	if c.BlockFetchTries <= 0 {
		c.BlockFetchTries = DefaultBlockFetchTries
	}
	if c.BlockRetryDelay <= 0 {
		c.BlockRetryDelay = DefaultBlockRetryDelay
	}
}

// Poller maintains a forward-only cursor over block heights and feeds each
// new block's contract logs to the dispatcher. The cursor starts at the
// chain tip observed on the first successful tick; blocks mined before
// start are never replayed.
type Poller struct {
	client     QueryClient
	dispatcher *Dispatcher
	lease      Lease
	cfg        PollerConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	cursorMu  sync.Mutex
	cursor    int64
	cursorSet bool
	leaseHeld bool
}

// NewPoller creates a poller. lease may be nil for single-process setups
// (tests, local dev); production deployments should pass one.
func NewPoller(client QueryClient, dispatcher *Dispatcher, lease Lease, cfg PollerConfig) *Poller {
	cfg.applyDefaults()
	return &Poller{
		client:     client,
		dispatcher: dispatcher,
		lease:      lease,
		cfg:        cfg,
	}
}

// Start launches the polling loop. Calling it twice is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
	log.Printf("chain: poller started (interval=%s)", p.cfg.Interval)
}

// Stop requests a cooperative shutdown and waits for the loop to exit.
// In-flight block processing finishes; calling Stop twice is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
	log.Println("chain: poller stopped")
}

// Cursor returns the last processed block height.
func (p *Poller) Cursor() (int64, bool) {
	p.cursorMu.Lock()
	defer p.cursorMu.Unlock()
	return p.cursor, p.cursorSet
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer p.releaseLease()

	interval := p.cfg.Interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		if !p.holdLease(ctx) {
			interval = p.cfg.Interval
			continue
		}

		if p.tick(ctx) {
			interval = p.cfg.Interval
		} else {
			// tip fetch failed: back the poll interval off without
			// advancing the cursor
			interval = interval * 2
			if interval > p.cfg.MaxInterval {
				interval = p.cfg.MaxInterval
			}
			log.Printf("chain: tip fetch failed, next poll in %s", interval)
		}
	}
}

// holdLease acquires or renews the poller lease. Without the lease this
// instance stays passive and tries again next tick.
func (p *Poller) holdLease(ctx context.Context) bool {
	if p.lease == nil {
		return true
	}
	if p.leaseHeld {
		ok, err := p.lease.Renew(ctx)
		if err != nil {
			log.Printf("chain: lease renew error: %v", err)
			return false
		}
		if !ok {
			log.Println("chain: poller lease lost")
			p.leaseHeld = false
		}
		return ok
	}
	ok, err := p.lease.Acquire(ctx)
	if err != nil {
		log.Printf("chain: lease acquire error: %v", err)
		return false
	}
	if ok {
		log.Println("chain: poller lease acquired")
		p.leaseHeld = true
	}
	return ok
}

func (p *Poller) releaseLease() {
	if p.lease == nil || !p.leaseHeld {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.lease.Release(ctx); err != nil {
		log.Printf("chain: lease release error: %v", err)
	}
}

// tick runs one poll iteration. It reports false only when the tip fetch
// failed, which is the one condition that backs off the poll interval.
func (p *Poller) tick(ctx context.Context) bool {
	tip, err := p.client.TipHeight(ctx)
	if err != nil {
		return false
	}

	p.cursorMu.Lock()
	if !p.cursorSet {
		// first successful tick: anchor the cursor at the tip so
		// historical blocks are never replayed
		p.cursor = tip
		p.cursorSet = true
		p.cursorMu.Unlock()
		log.Printf("chain: cursor initialized at height %d", tip)
		return true
	}
	cursor := p.cursor
	p.cursorMu.Unlock()

	if tip <= cursor {
		return true
	}

	for height := cursor + 1; height <= tip; height++ {
		select {
		case <-ctx.Done():
			return true
		default:
		}
		if err := p.processBlock(ctx, height); err != nil {
			// documented skip policy: the block is logged and skipped,
			// the cursor still advances past it
			log.Printf("chain: skipping block %d after failed processing: %v", height, err)
		}
	}

	p.cursorMu.Lock()
	p.cursor = tip
	p.cursorMu.Unlock()
	return true
}

// processBlock fetches and dispatches one block's events, retrying the
// fetch a bounded number of times before giving up.
func (p *Poller) processBlock(ctx context.Context, height int64) error {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.BlockFetchTries; attempt++ {
		entries, err := p.client.BlockEvents(ctx, height)
		if err == nil {
			return p.dispatcher.DispatchBlock(ctx, entries)
		}
		lastErr = err
		if attempt < p.cfg.BlockFetchTries {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(p.cfg.BlockRetryDelay):
			}
		}
	}
	return lastErr
}
