package order

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrderStore struct {
	markCalls    int
	markErr      error
	markPanic    bool
	count        int64
	countErr     error
	countedUsers []uuid.UUID
}

func (f *fakeOrderStore) MarkCompleted(_ context.Context, _ uuid.UUID) error {
	f.markCalls++
	if f.markPanic {
		panic("orders table gone")
	}
	return f.markErr
}

func (f *fakeOrderStore) CompletedOrderCount(_ context.Context, userID uuid.UUID) (int64, error) {
	f.countedUsers = append(f.countedUsers, userID)
	return f.count, f.countErr
}

type fakeInventory struct {
	calls int
	err   error
}

func (f *fakeInventory) CommitReservation(_ context.Context, _ uuid.UUID) error {
	f.calls++
	return f.err
}

type fakeQualifier struct {
	calls  int
	issued bool
	err    error
}

func (f *fakeQualifier) QualifyFirstOrder(_ context.Context, _, _ uuid.UUID) (bool, error) {
	f.calls++
	return f.issued, f.err
}

type fakeMailer struct {
	calls int
	to    string
	err   error
}

func (f *fakeMailer) SendOrderConfirmation(_ context.Context, email string, _ uuid.UUID) error {
	f.calls++
	f.to = email
	return f.err
}

func testOrder() CompletedOrder {
	return CompletedOrder{
		OrderID:       uuid.New(),
		UserID:        uuid.New(),
		Amount:        decimal.RequireFromString("59.90"),
		Currency:      "GBP",
		CustomerEmail: "buyer@example.com",
	}
}

func TestCoordinatorComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("clean first order runs every step", func(t *testing.T) {
		orders := &fakeOrderStore{count: 1}
		inventory := &fakeInventory{}
		referrals := &fakeQualifier{issued: true}
		mailer := &fakeMailer{}
		c := NewCoordinator(orders, referrals, inventory, mailer, zap.NewNop(), nil)

		order := testOrder()
		outcome := c.Complete(ctx, order)

		assert.Empty(t, outcome.Errors)
		assert.True(t, outcome.ReferralIssued)
		assert.Equal(t, order.OrderID, outcome.OrderID)
		assert.Equal(t, 1, orders.markCalls)
		assert.Equal(t, 1, inventory.calls)
		assert.Equal(t, 1, referrals.calls)
		assert.Equal(t, 1, mailer.calls)
		assert.Equal(t, "buyer@example.com", mailer.to)
	})

	t.Run("repeat customer skips referral step", func(t *testing.T) {
		orders := &fakeOrderStore{count: 3}
		referrals := &fakeQualifier{issued: true}
		c := NewCoordinator(orders, referrals, &fakeInventory{}, &fakeMailer{}, zap.NewNop(), nil)

		outcome := c.Complete(ctx, testOrder())

		assert.Empty(t, outcome.Errors)
		assert.False(t, outcome.ReferralIssued)
		assert.Equal(t, 0, referrals.calls)
	})

	t.Run("failing step records error and later steps still run", func(t *testing.T) {
		invErr := errors.New("reservation missing")
		orders := &fakeOrderStore{count: 1}
		inventory := &fakeInventory{err: invErr}
		referrals := &fakeQualifier{issued: true}
		mailer := &fakeMailer{}
		c := NewCoordinator(orders, referrals, inventory, mailer, zap.NewNop(), nil)

		outcome := c.Complete(ctx, testOrder())

		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, "commit_inventory", outcome.Errors[0].Step)
		assert.ErrorIs(t, outcome.Errors[0], invErr)
		assert.True(t, outcome.ReferralIssued)
		assert.Equal(t, 1, mailer.calls)
	})

	t.Run("panicking step is contained", func(t *testing.T) {
		orders := &fakeOrderStore{count: 1, markPanic: true}
		inventory := &fakeInventory{}
		mailer := &fakeMailer{}
		c := NewCoordinator(orders, &fakeQualifier{}, inventory, mailer, zap.NewNop(), nil)

		var outcome Outcome
		require.NotPanics(t, func() {
			outcome = c.Complete(ctx, testOrder())
		})

		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, "mark_completed", outcome.Errors[0].Step)
		assert.Contains(t, outcome.Errors[0].Err.Error(), "panic")
		assert.Equal(t, 1, inventory.calls)
		assert.Equal(t, 1, mailer.calls)
	})

	t.Run("count failure assumes repeat customer", func(t *testing.T) {
		orders := &fakeOrderStore{countErr: errors.New("db down")}
		referrals := &fakeQualifier{issued: true}
		c := NewCoordinator(orders, referrals, &fakeInventory{}, &fakeMailer{}, zap.NewNop(), nil)

		outcome := c.Complete(ctx, testOrder())

		assert.Equal(t, 0, referrals.calls)
		assert.False(t, outcome.ReferralIssued)
	})

	t.Run("qualifier error is recorded without issuing", func(t *testing.T) {
		orders := &fakeOrderStore{count: 1}
		referrals := &fakeQualifier{err: errors.New("rewards write failed")}
		c := NewCoordinator(orders, referrals, &fakeInventory{}, &fakeMailer{}, zap.NewNop(), nil)

		outcome := c.Complete(ctx, testOrder())

		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, "qualify_referral", outcome.Errors[0].Step)
		assert.False(t, outcome.ReferralIssued)
	})

	t.Run("no email skips confirmation step", func(t *testing.T) {
		mailer := &fakeMailer{}
		c := NewCoordinator(&fakeOrderStore{count: 1}, &fakeQualifier{}, &fakeInventory{}, mailer, zap.NewNop(), nil)

		order := testOrder()
		order.CustomerEmail = ""
		outcome := c.Complete(ctx, order)

		assert.Empty(t, outcome.Errors)
		assert.Equal(t, 0, mailer.calls)
	})
}

func TestStepErrorUnwrap(t *testing.T) {
	inner := errors.New("smtp timeout")
	err := StepError{Step: "send_confirmation", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "send_confirmation")
}
