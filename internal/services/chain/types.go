package chain

import (
	"encoding/json"
)

// Contract event names as emitted on chain
const (
	EventNameIntentCreated    = "IntentCreated"
	EventNamePaymentSucceeded = "PaymentSucceeded"
	EventNamePaymentFailed    = "PaymentFailed"
)

// LogEntry is one raw contract log as returned by the chain query API.
type LogEntry struct {
	Address     string          `json:"address"`
	TxHash      string          `json:"tx_hash"`
	BlockHeight int64           `json:"block_height"`
	LogIndex    int             `json:"log_index"`
	Event       string          `json:"event"`
	Data        json.RawMessage `json:"data"`
}

// DomainEvent is the closed set of decoded contract events. Exactly three
// implementations exist; the dispatcher matches exhaustively.
type DomainEvent interface {
	domainEvent()
}

// IntentCreated marks an on-chain registration of a payment intent.
type IntentCreated struct {
	IntentID    string
	MerchantID  string
	Amount      int64
	TxHash      string
	BlockHeight int64
}

// PaymentSucceeded marks a confirmed on-chain payment for an intent.
type PaymentSucceeded struct {
	IntentID    string
	TxHash      string
	BlockHeight int64
	Amount      int64
	MerchantID  string
	Customer    string
}

// PaymentFailed marks an on-chain payment failure for an intent.
type PaymentFailed struct {
	IntentID    string
	Reason      string
	TxHash      string
	BlockHeight int64
}

func (IntentCreated) domainEvent()    {}
func (PaymentSucceeded) domainEvent() {}
func (PaymentFailed) domainEvent()    {}
