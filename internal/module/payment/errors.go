package payment

import "errors"

// Module errors.
var (
	ErrIntentNotFound          = errors.New("payment intent not found")
	ErrUnknownProvider         = errors.New("unknown payment provider")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrWebhookEventExists      = errors.New("webhook event already processed")
	ErrTerminalState           = errors.New("payment is in a terminal state")
)
