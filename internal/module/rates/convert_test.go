package rates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	t.Run("divides and rounds once at native precision", func(t *testing.T) {
		fiat := decimal.RequireFromString("333.33")
		rate := decimal.NewFromInt(25000)

		got, err := Convert(fiat, rate, BitcoinPrecision)
		require.NoError(t, err)
		assert.Equal(t, "0.01333320", got.StringFixed(BitcoinPrecision))
	})

	t.Run("monero precision keeps twelve places", func(t *testing.T) {
		fiat := decimal.RequireFromString("100.00")
		rate := decimal.RequireFromString("151.37")

		got, err := Convert(fiat, rate, MoneroPrecision)
		require.NoError(t, err)
		assert.Equal(t, int32(-12), got.Exponent())
	})

	t.Run("rejects zero rate", func(t *testing.T) {
		_, err := Convert(decimal.NewFromInt(100), decimal.Zero, BitcoinPrecision)
		assert.ErrorIs(t, err, ErrNonPositiveRate)
	})

	t.Run("rejects negative rate", func(t *testing.T) {
		_, err := Convert(decimal.NewFromInt(100), decimal.NewFromInt(-10), BitcoinPrecision)
		assert.ErrorIs(t, err, ErrNonPositiveRate)
	})

	t.Run("exact division produces exact result", func(t *testing.T) {
		got, err := Convert(decimal.NewFromInt(250), decimal.NewFromInt(25000), BitcoinPrecision)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.RequireFromString("0.01")))
	})
}
