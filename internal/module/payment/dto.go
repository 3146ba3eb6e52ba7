package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopstack/server/internal/module/payment/domain"
)

// CreatePaymentRequest asks for a payment intent against an order. The
// order service owns order state; callers pass the order snapshot here.
type CreatePaymentRequest struct {
	OrderID       uuid.UUID       `json:"order_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Currency      string          `json:"currency" binding:"required,len=3"`
	Provider      domain.Provider `json:"provider" binding:"required,oneof=paypal bitcoin monero"`
	CustomerEmail string          `json:"customer_email,omitempty"`
}

// IntentResponse is the frontend view of a payment intent.
type IntentResponse struct {
	ID                uuid.UUID       `json:"id"`
	OrderID           uuid.UUID       `json:"order_id"`
	Provider          domain.Provider `json:"provider"`
	ProviderReference string          `json:"provider_reference"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	CryptoAmount      decimal.Decimal `json:"crypto_amount,omitempty"`
	CryptoCurrency    string          `json:"crypto_currency,omitempty"`
	Status            domain.Status   `json:"status"`
	Confirmations     int             `json:"confirmations"`
	RequiresAction    bool            `json:"requires_action"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ToResponse converts the intent to its API representation.
func (i *PaymentIntent) ToResponse() IntentResponse {
	return IntentResponse{
		ID:                i.ID,
		OrderID:           i.OrderID,
		Provider:          i.Provider,
		ProviderReference: i.ProviderReference,
		Amount:            i.AmountRequested,
		Currency:          i.Currency,
		CryptoAmount:      i.CryptoAmount,
		CryptoCurrency:    i.CryptoCurrency,
		Status:            i.Status,
		Confirmations:     i.Confirmations,
		RequiresAction:    i.RequiresAction,
		ExpiresAt:         i.ExpiresAt,
		CreatedAt:         i.CreatedAt,
	}
}
