package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Fetcher fetches a fresh crypto→fiat rate.
type Fetcher interface {
	FetchRate(ctx context.Context, pair Pair) (decimal.Decimal, error)
}

// Oracle is a client for a public price oracle exposing the
// /simple/price endpoint with a {coin: {fiat: number}} payload.
type Oracle struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[decimal.Decimal]
	logger  *zap.Logger
}

// NewOracle creates a new oracle client. The circuit breaker opens after
// repeated consecutive failures so a flapping oracle does not hold every
// order placement for a full timeout.
func NewOracle(baseURL string, client *http.Client, logger *zap.Logger) *Oracle {
	breaker := gobreaker.NewCircuitBreaker[decimal.Decimal](gobreaker.Settings{
		Name: "rate-oracle",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		Timeout: 30 * time.Second,
	})
	return &Oracle{
		baseURL: baseURL,
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

// FetchRate fetches the current rate for the pair from the oracle.
// Invalid payloads (missing field, zero, negative, NaN, Infinity) are
// rejected and never reach the cache.
func (o *Oracle) FetchRate(ctx context.Context, pair Pair) (decimal.Decimal, error) {
	return o.breaker.Execute(func() (decimal.Decimal, error) {
		return o.fetch(ctx, pair)
	})
}

func (o *Oracle) fetch(ctx context.Context, pair Pair) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("ids", pair.Coin)
	q.Set("vs_currencies", pair.Fiat)
	q.Set("precision", "8")
	endpoint := fmt.Sprintf("%s/simple/price?%s", o.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	// json.Number keeps the oracle's decimal representation intact and
	// rejects NaN/Infinity, which are not valid JSON numbers anyway.
	var payload map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode oracle payload: %w", err)
	}

	raw, ok := payload[pair.Coin][pair.Fiat]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: missing %s field", ErrInvalidRate, pair)
	}

	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidRate, raw.String())
	}
	if rate.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidRate, rate)
	}

	o.logger.Debug("fetched oracle rate",
		zap.String("pair", pair.String()),
		zap.String("rate", rate.String()),
	)
	return rate, nil
}
