package order

import (
	"context"

	"github.com/shopstack/server/internal/infra/events"
	"github.com/shopstack/server/internal/module/payment"
	"go.uber.org/zap"
)

// EventHandler runs order completion when a payment confirms.
type EventHandler struct {
	coordinator *Coordinator
	logger      *zap.Logger
}

// NewEventHandler creates a new order event handler.
func NewEventHandler(coordinator *Coordinator, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

// Handles returns the list of event types this handler can process.
func (h *EventHandler) Handles() []string {
	return []string{
		payment.EventPaymentConfirmed,
	}
}

// Handle processes the given event.
func (h *EventHandler) Handle(event events.Event) error {
	switch e := event.(type) {
	case *payment.ConfirmedEvent:
		return h.handlePaymentConfirmed(e)
	default:
		h.logger.Warn("unhandled event type",
			zap.String("event_type", event.EventType()),
		)
		return nil
	}
}

// handlePaymentConfirmed completes the paid order. Step failures are
// already recorded in the outcome, so this never propagates an error
// back to the payment path.
func (h *EventHandler) handlePaymentConfirmed(event *payment.ConfirmedEvent) error {
	ctx := context.Background()

	outcome := h.coordinator.Complete(ctx, CompletedOrder{
		OrderID:       event.OrderID,
		UserID:        event.UserID,
		Amount:        event.Amount,
		Currency:      event.Currency,
		CustomerEmail: event.CustomerEmail,
	})

	if len(outcome.Errors) > 0 {
		h.logger.Warn("completion finished with failed steps",
			zap.String("order_id", event.OrderID.String()),
			zap.Int("failed_steps", len(outcome.Errors)),
		)
	}
	return nil
}

// Compile-time check that EventHandler implements events.Handler.
var _ events.Handler = (*EventHandler)(nil)
