package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pair identifies a crypto→fiat price pair at the oracle,
// e.g. {Coin: "bitcoin", Fiat: "gbp"}.
type Pair struct {
	Coin string
	Fiat string
}

// String returns the pair in "coin/fiat" form.
func (p Pair) String() string {
	return p.Coin + "/" + p.Fiat
}

// ExchangeRate is one observed oracle rate with its validity window.
// Owned exclusively by the cache; replaced wholesale on each successful
// refresh.
type ExchangeRate struct {
	Rate       decimal.Decimal
	ObservedAt time.Time
	ValidUntil time.Time
}

// Rate is the result of a GetRate call.
type Rate struct {
	Rate      decimal.Decimal
	AsOf      time.Time
	FromCache bool
	// Expired marks a stale fallback: the oracle was unreachable and the
	// returned rate is past its TTL but within the staleness ceiling.
	Expired bool
}
