package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopstack/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// CompletedOrder is the snapshot of an order whose payment just
// confirmed, handed to every completion step.
type CompletedOrder struct {
	OrderID       uuid.UUID
	UserID        uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	IsFirstOrder  bool
}

// StepError records one failed completion step. Step failures never roll
// back the payment: money has moved, so the order completes and the
// failures surface for ops follow-up instead.
type StepError struct {
	Step string
	Err  error
}

func (e StepError) Error() string {
	return fmt.Sprintf("completion step %s: %v", e.Step, e.Err)
}

func (e StepError) Unwrap() error { return e.Err }

// Outcome is the result of running all completion steps. Errors holds
// one entry per failed step; an empty slice means a clean run.
type Outcome struct {
	OrderID        uuid.UUID
	ReferralIssued bool
	Errors         []StepError
}

// OrderStore marks orders completed and answers order-history questions.
// The order service owns this data; only the completion path's needs
// cross this boundary.
type OrderStore interface {
	MarkCompleted(ctx context.Context, orderID uuid.UUID) error
	CompletedOrderCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ReferralQualifier issues a referral reward when a referred user's first
// order completes. Implementations must treat repeat calls for the same
// order as no-ops.
type ReferralQualifier interface {
	QualifyFirstOrder(ctx context.Context, userID, orderID uuid.UUID) (bool, error)
}

// InventoryStore commits inventory reserved for an order.
type InventoryStore interface {
	CommitReservation(ctx context.Context, orderID uuid.UUID) error
}

// Mailer sends the order confirmation email.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, email string, orderID uuid.UUID) error
}

// Coordinator runs the side effects of order completion. Every step is
// isolated: a failing or panicking step is recorded in the outcome and
// the remaining steps still run. Complete never returns an error.
type Coordinator struct {
	orders    OrderStore
	referrals ReferralQualifier
	inventory InventoryStore
	mailer    Mailer
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewCoordinator creates a new completion coordinator.
func NewCoordinator(
	orders OrderStore,
	referrals ReferralQualifier,
	inventory InventoryStore,
	mailer Mailer,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Coordinator {
	return &Coordinator{
		orders:    orders,
		referrals: referrals,
		inventory: inventory,
		mailer:    mailer,
		logger:    logger,
		metrics:   m,
	}
}

// Complete runs the completion steps for a confirmed order. The order is
// marked completed first; the dependent steps run afterwards regardless
// of each other's failures.
func (c *Coordinator) Complete(ctx context.Context, order CompletedOrder) Outcome {
	outcome := Outcome{OrderID: order.OrderID}

	c.runStep(ctx, "mark_completed", &outcome, func() error {
		return c.orders.MarkCompleted(ctx, order.OrderID)
	})

	order.IsFirstOrder = c.isFirstOrder(ctx, order.UserID)

	c.runStep(ctx, "commit_inventory", &outcome, func() error {
		return c.inventory.CommitReservation(ctx, order.OrderID)
	})

	if order.IsFirstOrder {
		c.runStep(ctx, "qualify_referral", &outcome, func() error {
			issued, err := c.referrals.QualifyFirstOrder(ctx, order.UserID, order.OrderID)
			outcome.ReferralIssued = issued
			return err
		})
	}

	if order.CustomerEmail != "" {
		c.runStep(ctx, "send_confirmation", &outcome, func() error {
			return c.mailer.SendOrderConfirmation(ctx, order.CustomerEmail, order.OrderID)
		})
	}

	if len(outcome.Errors) > 0 {
		c.logger.Error("order completed with step failures",
			zap.String("order_id", order.OrderID.String()),
			zap.Int("failed_steps", len(outcome.Errors)),
		)
	} else {
		c.logger.Info("order completed",
			zap.String("order_id", order.OrderID.String()),
			zap.Bool("referral_issued", outcome.ReferralIssued),
		)
	}
	return outcome
}

// isFirstOrder reports whether this is the user's first completed order.
// A store failure degrades to false so a flaky read can never mint a
// reward; the qualifier's own idempotency covers the reverse case.
func (c *Coordinator) isFirstOrder(ctx context.Context, userID uuid.UUID) bool {
	count, err := c.orders.CompletedOrderCount(ctx, userID)
	if err != nil {
		c.logger.Warn("order count lookup failed, assuming repeat customer",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return false
	}
	return count <= 1
}

func (c *Coordinator) runStep(ctx context.Context, name string, outcome *Outcome, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()

	if c.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.metrics.CompletionStepsTotal.WithLabelValues(name, result).Inc()
	}

	if err != nil {
		c.logger.Error("completion step failed",
			zap.String("step", name),
			zap.String("order_id", outcome.OrderID.String()),
			zap.Error(err),
		)
		outcome.Errors = append(outcome.Errors, StepError{Step: name, Err: err})
	}
}
