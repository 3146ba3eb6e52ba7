package rates

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Native precisions of the supported assets.
const (
	BitcoinPrecision int32 = 8
	MoneroPrecision  int32 = 12
)

// Convert converts a fiat amount into a crypto amount at the given rate,
// rounded once to the asset's native precision. Rounding happens only at
// this final step so intermediate price breakdowns do not compound
// rounding error.
func Convert(fiatAmount, rate decimal.Decimal, precision int32) (decimal.Decimal, error) {
	if rate.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrNonPositiveRate, rate)
	}
	return fiatAmount.DivRound(rate, precision), nil
}
