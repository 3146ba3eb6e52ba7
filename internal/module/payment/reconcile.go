package payment

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/shopstack/server/internal/module/payment/domain"
)

// RawEvent is a provider-agnostic snapshot of one webhook delivery or
// poll result, decoded once at the adapter boundary. Missing optional
// fields (confirmations, received amount) degrade to zero values so
// reconciliation never needs nil checks and never fails on a sparse
// payload.
type RawEvent struct {
	Status                string
	Confirmations         int
	AmountRequested       decimal.Decimal
	AmountReceived        decimal.Decimal
	RequiredConfirmations int
	TolerancePercent      int64
}

// Reconciliation is the result-level unification of the heterogeneous
// provider protocols: a canonical status plus the flags the order layer
// acts on.
type Reconciliation struct {
	Status           domain.Status
	RawStatus        string
	IsFullyConfirmed bool
	// RequiresAction marks outcomes needing manual or ops intervention:
	// underpayment, cancellation/expiry, and any unrecognized raw status
	// (never silently treated as success).
	RequiresAction bool
}

// Reconcile maps a provider's raw status vocabulary onto the canonical
// lifecycle. The function is total: every input maps to exactly one
// defined output, and unknown statuses fail closed as non-success with
// RequiresAction set.
func Reconcile(ev RawEvent) Reconciliation {
	switch strings.ToLower(ev.Status) {
	case "paid", "confirmed", "complete", "completed":
		if !sufficient(ev) {
			return Reconciliation{
				Status:         domain.StatusUnderpaid,
				RawStatus:      ev.Status,
				RequiresAction: true,
			}
		}
		if ev.Confirmations >= ev.RequiredConfirmations {
			return Reconciliation{
				Status:           domain.StatusConfirmed,
				RawStatus:        ev.Status,
				IsFullyConfirmed: true,
			}
		}
		// Still waiting for confirmations; not an error.
		return Reconciliation{
			Status:    domain.StatusPartiallyConfirmed,
			RawStatus: ev.Status,
		}

	case "underpaid":
		return Reconciliation{
			Status:         domain.StatusUnderpaid,
			RawStatus:      ev.Status,
			RequiresAction: true,
		}

	case "cancelled", "canceled", "expired":
		return Reconciliation{
			Status:         domain.StatusFailed,
			RawStatus:      ev.Status,
			RequiresAction: true,
		}

	case "pending", "unpaid", "new", "waiting":
		return Reconciliation{
			Status:    domain.StatusPending,
			RawStatus: ev.Status,
		}

	default:
		// Unknown vocabulary: surface the raw status, fail closed.
		return Reconciliation{
			Status:         domain.StatusPending,
			RawStatus:      ev.Status,
			RequiresAction: true,
		}
	}
}

// sufficient checks the received amount against the requested amount
// within the downward tolerance. Events that carry no requested amount
// (fiat gateways report captures authoritatively) pass.
func sufficient(ev RawEvent) bool {
	if ev.AmountRequested.Sign() <= 0 {
		return true
	}
	tolerance := decimal.NewFromInt(ev.TolerancePercent).Div(decimal.NewFromInt(100))
	threshold := ev.AmountRequested.Mul(decimal.NewFromInt(1).Sub(tolerance))
	return ev.AmountReceived.GreaterThanOrEqual(threshold)
}
