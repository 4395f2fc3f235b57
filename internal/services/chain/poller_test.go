package chain

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChainClient struct {
	mu       sync.Mutex
	tip      int64
	tipErr   error
	events   map[int64][]LogEntry
	blockErr map[int64]error
	tipCalls int
}

func (c *fakeChainClient) TipHeight(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tipCalls++
	if c.tipErr != nil {
		return 0, c.tipErr
	}
	return c.tip, nil
}

func (c *fakeChainClient) BlockEvents(ctx context.Context, height int64) ([]LogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.blockErr[height]; err != nil {
		return nil, err
	}
	return c.events[height], nil
}

func (c *fakeChainClient) setTip(tip int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tip = tip
}

type threadSafeApplier struct {
	mu     sync.Mutex
	events []DomainEvent
}

func (a *threadSafeApplier) Apply(ctx context.Context, event DomainEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *threadSafeApplier) heights() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []int64
	for _, ev := range a.events {
		out = append(out, ev.(PaymentSucceeded).BlockHeight)
	}
	return out
}

func succeededEntry(height int64) LogEntry {
	return LogEntry{
		Address:     testContract,
		TxHash:      "0xabc",
		BlockHeight: height,
		LogIndex:    0,
		Event:       EventNamePaymentSucceeded,
		Data:        json.RawMessage(`{"intent_id":"pi_1","amount":100}`),
	}
}

func fastConfig() PollerConfig {
	return PollerConfig{
		Interval:        time.Millisecond,
		MaxInterval:     4 * time.Millisecond,
		BlockFetchTries: 2,
		BlockRetryDelay: time.Millisecond,
	}
}

func TestPollerAdvancesPastFailedBlock(t *testing.T) {
	client := &fakeChainClient{
		tip: 100,
		events: map[int64][]LogEntry{
			101: {succeededEntry(101)},
			103: {succeededEntry(103)},
		},
		blockErr: map[int64]error{102: errors.New("node timeout")},
	}
	applier := &threadSafeApplier{}
	p := NewPoller(client, NewDispatcher(testContract, applier), nil, fastConfig())

	p.Start()
	defer p.Stop()

	// first tick anchors the cursor at the observed tip
	require.Eventually(t, func() bool {
		cursor, ok := p.Cursor()
		return ok && cursor == 100
	}, time.Second, time.Millisecond)

	client.setTip(103)

	// block 102 fails every fetch attempt, yet the cursor advances to 103
	require.Eventually(t, func() bool {
		cursor, _ := p.Cursor()
		return cursor == 103
	}, time.Second, time.Millisecond)

	assert.ElementsMatch(t, []int64{101, 103}, applier.heights())
}

func TestPollerNoopWhenTipUnchanged(t *testing.T) {
	client := &fakeChainClient{tip: 50}
	applier := &threadSafeApplier{}
	p := NewPoller(client, NewDispatcher(testContract, applier), nil, fastConfig())

	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool {
		cursor, ok := p.Cursor()
		return ok && cursor == 50
	}, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	cursor, _ := p.Cursor()
	assert.Equal(t, int64(50), cursor)
	assert.Empty(t, applier.heights())
}

func TestPollerTipFailureDoesNotAdvanceCursor(t *testing.T) {
	client := &fakeChainClient{tip: 10}
	applier := &threadSafeApplier{}
	p := NewPoller(client, NewDispatcher(testContract, applier), nil, fastConfig())

	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool {
		cursor, ok := p.Cursor()
		return ok && cursor == 10
	}, time.Second, time.Millisecond)

	client.mu.Lock()
	client.tipErr = errors.New("rpc unavailable")
	client.mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	cursor, _ := p.Cursor()
	assert.Equal(t, int64(10), cursor)
}

func TestPollerStartStopIdempotent(t *testing.T) {
	client := &fakeChainClient{tip: 1}
	p := NewPoller(client, NewDispatcher(testContract, &threadSafeApplier{}), nil, fastConfig())

	p.Start()
	p.Start()
	p.Stop()
	p.Stop()
}

type denyingLease struct {
	mu       sync.Mutex
	attempts int
}

func (l *denyingLease) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	return false, nil
}

func (l *denyingLease) Renew(ctx context.Context) (bool, error) { return false, nil }

func (l *denyingLease) Release(ctx context.Context) error { return nil }

func TestPollerStaysPassiveWithoutLease(t *testing.T) {
	client := &fakeChainClient{tip: 10}
	lease := &denyingLease{}
	p := NewPoller(client, NewDispatcher(testContract, &threadSafeApplier{}), lease, fastConfig())

	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool {
		lease.mu.Lock()
		defer lease.mu.Unlock()
		return lease.attempts >= 3
	}, time.Second, time.Millisecond)

	client.mu.Lock()
	calls := client.tipCalls
	client.mu.Unlock()
	assert.Zero(t, calls)

	_, ok := p.Cursor()
	assert.False(t, ok)
}
