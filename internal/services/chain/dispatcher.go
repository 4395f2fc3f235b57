package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
)

var (
	// ErrMalformedEvent marks a log whose payload could not be decoded.
	// Such logs are discarded, never retried.
	ErrMalformedEvent = errors.New("malformed contract event")
	// ErrUnknownEvent marks a log with an unrecognized event name.
	ErrUnknownEvent = errors.New("unknown contract event")
)

// Applier consumes decoded domain events; the payment intent state machine
// implements it.
type Applier interface {
	Apply(ctx context.Context, event DomainEvent) error
}

// Dispatcher filters contract logs and decodes them into domain events.
type Dispatcher struct {
	contractAddr string
	applier      Applier
}

// NewDispatcher creates a dispatcher for one contract address.
func NewDispatcher(contractAddr string, applier Applier) *Dispatcher {
	return &Dispatcher{
		contractAddr: strings.ToLower(contractAddr),
		applier:      applier,
	}
}

// DispatchBlock feeds one block's logs through the parser and applier in
// log-index order. Unparseable logs are logged and dropped; applier errors
// abort the block so the caller's retry policy can decide what to do.
func (d *Dispatcher) DispatchBlock(ctx context.Context, entries []LogEntry) error {
	filtered := make([]LogEntry, 0, len(entries))
	for _, entry := range entries {
		if strings.ToLower(entry.Address) != d.contractAddr {
			continue
		}
		filtered = append(filtered, entry)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].LogIndex < filtered[j].LogIndex
	})

	for _, entry := range filtered {
		event, err := ParseLogEntry(entry)
		if err != nil {
			log.Printf("chain: discarding log tx=%s index=%d: %v", entry.TxHash, entry.LogIndex, err)
			continue
		}
		if err := d.applier.Apply(ctx, event); err != nil {
			return fmt.Errorf("apply event tx=%s index=%d: %w", entry.TxHash, entry.LogIndex, err)
		}
	}
	return nil
}

// intentCreatedData / paymentSucceededData / paymentFailedData mirror the
// contract's ABI-encoded event payloads as the query API serializes them.
type intentCreatedData struct {
	IntentID string `json:"intent_id"`
	Merchant string `json:"merchant"`
	Amount   int64  `json:"amount"`
}

type paymentSucceededData struct {
	IntentID string `json:"intent_id"`
	Amount   int64  `json:"amount"`
	Merchant string `json:"merchant"`
	Customer string `json:"customer"`
}

type paymentFailedData struct {
	IntentID string `json:"intent_id"`
	Reason   string `json:"reason"`
}

// ParseLogEntry decodes a single contract log into a domain event. The
// result is the closed DomainEvent union; anything else is an explicit
// parse error.
func ParseLogEntry(entry LogEntry) (DomainEvent, error) {
	switch entry.Event {
	case EventNameIntentCreated:
		var data intentCreatedData
		if err := decodeEventData(entry.Data, &data); err != nil {
			return nil, err
		}
		if data.IntentID == "" {
			return nil, fmt.Errorf("%w: missing intent_id", ErrMalformedEvent)
		}
		return IntentCreated{
			IntentID:    data.IntentID,
			MerchantID:  data.Merchant,
			Amount:      data.Amount,
			TxHash:      entry.TxHash,
			BlockHeight: entry.BlockHeight,
		}, nil

	case EventNamePaymentSucceeded:
		var data paymentSucceededData
		if err := decodeEventData(entry.Data, &data); err != nil {
			return nil, err
		}
		if data.IntentID == "" || entry.TxHash == "" {
			return nil, fmt.Errorf("%w: missing intent_id or tx_hash", ErrMalformedEvent)
		}
		return PaymentSucceeded{
			IntentID:    data.IntentID,
			TxHash:      entry.TxHash,
			BlockHeight: entry.BlockHeight,
			Amount:      data.Amount,
			MerchantID:  data.Merchant,
			Customer:    data.Customer,
		}, nil

	case EventNamePaymentFailed:
		var data paymentFailedData
		if err := decodeEventData(entry.Data, &data); err != nil {
			return nil, err
		}
		if data.IntentID == "" {
			return nil, fmt.Errorf("%w: missing intent_id", ErrMalformedEvent)
		}
		return PaymentFailed{
			IntentID:    data.IntentID,
			Reason:      data.Reason,
			TxHash:      entry.TxHash,
			BlockHeight: entry.BlockHeight,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, entry.Event)
	}
}

func decodeEventData(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty data", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}
