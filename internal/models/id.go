package models

import (
	"strings"

	"github.com/google/uuid"
)

// ID prefixes, one per entity
const (
	IDPrefixPaymentIntent = "pi"
	IDPrefixWebhookEvent  = "evt"
	IDPrefixMerchant      = "mch"
	IDPrefixPlan          = "plan"
	IDPrefixSubscription  = "sub"
	IDPrefixInvoice       = "in"
)

// NewID returns a prefixed identifier like "pi_7f9c02...". The prefix makes
// IDs self-describing in logs and webhook payloads.
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
