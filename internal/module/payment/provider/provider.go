package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// The three providers speak genuinely different wire protocols, so there
// is deliberately no shared protocol-level interface here; each adapter
// exposes its own operations and the reconciler unifies them at the
// result level. The only shared contract is webhook verification.

// WebhookEvidence is the raw material of one inbound webhook delivery.
// It is consumed once by a verifier and discarded, never persisted.
type WebhookEvidence struct {
	RawBody   []byte
	Headers   map[string]string
	Signature string
}

// WebhookVerifier validates that an inbound webhook genuinely originated
// from the provider. Verification failures are never raised as errors to
// the caller: a broken or failing verifier fails closed and the event is
// discarded by the webhook route.
type WebhookVerifier interface {
	VerifyWebhook(ctx context.Context, evidence WebhookEvidence) bool
}

// CheckoutOrder is a created card/wallet checkout order.
type CheckoutOrder struct {
	ID         string
	Status     string
	ApproveURL string
}

// CaptureResult is the outcome of capturing a checkout order.
type CaptureResult struct {
	CaptureID string
	Status    string
	Amount    decimal.Decimal
	Currency  string
}

// RefundResult is the outcome of a refund call.
type RefundResult struct {
	RefundID string
	Status   string
}

// OrderDetails is the provider's view of an existing checkout order.
type OrderDetails struct {
	ID         string
	Status     string
	Amount     decimal.Decimal
	Currency   string
	PayerEmail string
}

// CryptoPayment is a composed address-based crypto payment: a fresh
// receiving address plus the converted amount at the rate used.
type CryptoPayment struct {
	Address       string
	CryptoAmount  decimal.Decimal
	RateUsed      decimal.Decimal
	RateTimestamp time.Time
	ExpiresAt     time.Time
}

// AddressStatus is a fresh (never cached) view of an address's received
// funds and confirmation count.
type AddressStatus struct {
	Address        string
	Confirmations  int
	AmountReceived decimal.Decimal
	TxID           string
}

// PaymentRequest is a created payment-request at the webhook-driven
// crypto gateway.
type PaymentRequest struct {
	PaymentID  string
	PaymentURL string
	Address    string
	ExpiresAt  time.Time
}

// PaymentStatus is the payment-request gateway's status normalized into
// the adapter's internal shape. Absent confirmation counts decode to 0
// so downstream comparisons never need nil checks.
type PaymentStatus struct {
	PaymentID      string
	Status         string
	Confirmations  int
	AmountReceived decimal.Decimal
}
