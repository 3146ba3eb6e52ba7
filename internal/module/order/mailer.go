package order

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogMailer records confirmation emails in the log. It stands in until a
// delivery provider is wired up; the coordinator only sees the Mailer
// interface either way.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a new logging mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendOrderConfirmation logs the confirmation instead of sending it.
func (m *LogMailer) SendOrderConfirmation(_ context.Context, email string, orderID uuid.UUID) error {
	m.logger.Info("order confirmation email",
		zap.String("email", email),
		zap.String("order_id", orderID.String()),
	)
	return nil
}

var _ Mailer = (*LogMailer)(nil)
