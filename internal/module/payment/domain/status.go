package domain

// Status is the canonical payment lifecycle shared by all providers.
// Adapters stay provider-specific; the reconciler maps every provider's
// raw status vocabulary onto this closed enum.
type Status string

const (
	StatusPending            Status = "pending"
	StatusPartiallyConfirmed Status = "partially_confirmed"
	StatusConfirmed          Status = "confirmed"
	StatusUnderpaid          Status = "underpaid"
	StatusFailed             Status = "failed"
)

// IsTerminal returns true if the status is a terminal state.
// There is no transition out of a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusUnderpaid || s == StatusFailed
}

// IsSuccess returns true for the terminal success state.
func (s Status) IsSuccess() bool {
	return s == StatusConfirmed
}

// CanTransitionTo returns true if the status can transition to the
// target status.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusPartiallyConfirmed || target == StatusConfirmed ||
			target == StatusUnderpaid || target == StatusFailed
	case StatusPartiallyConfirmed:
		return target == StatusConfirmed || target == StatusUnderpaid || target == StatusFailed
	case StatusConfirmed, StatusUnderpaid, StatusFailed:
		return false
	default:
		return false
	}
}

// Provider identifies a payment provider.
type Provider string

const (
	ProviderPayPal  Provider = "paypal"
	ProviderBitcoin Provider = "bitcoin"
	ProviderMonero  Provider = "monero"
)

// Valid reports whether p names a known provider.
func (p Provider) Valid() bool {
	return p == ProviderPayPal || p == ProviderBitcoin || p == ProviderMonero
}
