package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopstack/server/internal/module/payment/domain"
)

// PaymentIntent represents one attempt to collect payment for one order.
// It is a tagged union over providers: the provider column selects which
// of the provider-specific columns are meaningful, while the canonical
// status field keeps the reconciler and coordinator provider-agnostic.
// Updates are serialized through provider callbacks keyed by
// ProviderReference.
type PaymentIntent struct {
	ID       uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID  uuid.UUID       `json:"order_id" gorm:"type:uuid;not null;index"`
	UserID   uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	Provider domain.Provider `json:"provider" gorm:"not null"`
	// ProviderReference is the provider-side key for this intent: the
	// checkout order id (paypal), receiving address (bitcoin) or payment
	// request id (monero).
	ProviderReference string          `json:"provider_reference" gorm:"uniqueIndex;not null"`
	AmountRequested   decimal.Decimal `json:"amount_requested" gorm:"type:numeric(20,2);not null"`
	AmountReceived    decimal.Decimal `json:"amount_received" gorm:"type:numeric(24,12);default:0"`
	Currency          string          `json:"currency" gorm:"not null"`
	// CustomerEmail travels with the intent so the confirmation email can
	// be dispatched without re-reading the order at completion time.
	CustomerEmail string `json:"customer_email,omitempty"`

	// Crypto-only fields.
	CryptoAmount   decimal.Decimal `json:"crypto_amount,omitempty" gorm:"type:numeric(24,12);default:0"`
	CryptoCurrency string          `json:"crypto_currency,omitempty"`
	RateUsed       decimal.Decimal `json:"rate_used,omitempty" gorm:"type:numeric(24,12);default:0"`
	RateTimestamp  *time.Time      `json:"rate_timestamp,omitempty"`

	Status         domain.Status `json:"status" gorm:"not null;default:pending"`
	Confirmations  int           `json:"confirmations" gorm:"default:0"`
	RequiresAction bool          `json:"requires_action" gorm:"default:false"`

	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name.
func (PaymentIntent) TableName() string {
	return "payment_intents"
}

// IsConfirmed returns true if the intent reached the terminal success
// state.
func (p *PaymentIntent) IsConfirmed() bool {
	return p.Status.IsSuccess()
}

// WebhookEvent is a stored inbound webhook delivery, kept so redelivered
// events can be detected and skipped.
type WebhookEvent struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Provider    string     `gorm:"not null;uniqueIndex:idx_provider_event"`
	EventID     string     `gorm:"not null;uniqueIndex:idx_provider_event"`
	Reference   string     `gorm:"index"` // provider reference the event points at
	Data        string     `gorm:"type:jsonb"`
	Processed   bool       `gorm:"default:false"`
	ProcessedAt *time.Time
	Error       *string
	CreatedAt   time.Time
}

// TableName returns the database table name.
func (WebhookEvent) TableName() string {
	return "payment_webhook_events"
}
