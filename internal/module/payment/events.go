package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopstack/server/internal/infra/events"
)

// EventPaymentConfirmed is published exactly when a reconciled status
// transitions into the terminal success state.
const EventPaymentConfirmed = "payment.confirmed"

// ConfirmedEvent carries everything the completion side effects need so
// handlers never have to re-read the intent.
type ConfirmedEvent struct {
	events.BaseEvent
	IntentID      uuid.UUID
	OrderID       uuid.UUID
	UserID        uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
}

// NewConfirmedEvent creates a ConfirmedEvent for the given intent.
func NewConfirmedEvent(intent *PaymentIntent) *ConfirmedEvent {
	return &ConfirmedEvent{
		BaseEvent:     events.NewBaseEvent(EventPaymentConfirmed, intent.OrderID),
		IntentID:      intent.ID,
		OrderID:       intent.OrderID,
		UserID:        intent.UserID,
		Amount:        intent.AmountRequested,
		Currency:      intent.Currency,
		CustomerEmail: intent.CustomerEmail,
	}
}
