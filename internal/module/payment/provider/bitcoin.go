package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shopstack/server/internal/module/rates"
	apperrors "github.com/shopstack/server/internal/shared/errors"
	"github.com/shopstack/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// Confirmation policy for the address-based gateway. A small downward
// tolerance absorbs network-fee deduction quirks without accepting
// meaningfully underpaid transactions.
const (
	bitcoinRequiredConfirmations = 2
	bitcoinTolerancePercent      = 1
)

// BitcoinConfig holds the address-based crypto gateway configuration.
type BitcoinConfig struct {
	BaseURL       string
	APIKey        string
	PaymentWindow time.Duration
}

// BitcoinProvider drives the address-based, poll-driven crypto gateway.
// Address and transaction lookups are direct provider calls with no
// caching: balances and confirmation counts must always be fresh.
type BitcoinProvider struct {
	cfg     *BitcoinConfig
	client  *http.Client
	rates   *rates.Cache
	pair    rates.Pair
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewBitcoinProvider creates a new address-based gateway adapter.
func NewBitcoinProvider(cfg *BitcoinConfig, client *http.Client, rateCache *rates.Cache, fiat string, logger *zap.Logger, m *metrics.Metrics) *BitcoinProvider {
	return &BitcoinProvider{
		cfg:     cfg,
		client:  client,
		rates:   rateCache,
		pair:    rates.Pair{Coin: "bitcoin", Fiat: fiat},
		logger:  logger,
		metrics: m,
	}
}

// Name returns the provider name.
func (p *BitcoinProvider) Name() string {
	return "bitcoin"
}

// RequiredConfirmations returns the confirmation threshold for this
// asset.
func (p *BitcoinProvider) RequiredConfirmations() int {
	return bitcoinRequiredConfirmations
}

// GenerateAddress requests a fresh receiving address. A missing API
// credential is a configuration precondition and fails fast.
func (p *BitcoinProvider) GenerateAddress(ctx context.Context) (string, error) {
	if p.cfg.APIKey == "" {
		return "", apperrors.New(apperrors.KindConfiguration, "ADDRESS_GENERATION_FAILED",
			"bitcoin gateway API key is not configured")
	}

	start := time.Now()
	var resp struct {
		Address string `json:"address"`
	}
	err := p.post(ctx, "/api/new_address", nil, &resp)
	if p.metrics != nil {
		p.metrics.ObserveGatewayCall(p.Name(), "generate_address", start, err)
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindTransientProvider, "ADDRESS_GENERATION_FAILED",
			"bitcoin address generation failed", err)
	}
	if resp.Address == "" {
		return "", apperrors.New(apperrors.KindValidation, "ADDRESS_GENERATION_FAILED",
			"bitcoin gateway returned empty address")
	}
	return resp.Address, nil
}

// CreatePayment composes a payable crypto amount from the current
// exchange rate and a fresh receiving address. If either sub-call fails
// the whole call fails with that error; no partial payment is returned.
func (p *BitcoinProvider) CreatePayment(ctx context.Context, fiatAmount decimal.Decimal) (*CryptoPayment, error) {
	rate, err := p.rates.GetRate(ctx, p.pair)
	if err != nil {
		return nil, err
	}

	cryptoAmount, err := rates.Convert(fiatAmount, rate.Rate, rates.BitcoinPrecision)
	if err != nil {
		return nil, err
	}

	address, err := p.GenerateAddress(ctx)
	if err != nil {
		return nil, err
	}

	return &CryptoPayment{
		Address:       address,
		CryptoAmount:  cryptoAmount,
		RateUsed:      rate.Rate,
		RateTimestamp: rate.AsOf,
		ExpiresAt:     time.Now().Add(p.cfg.PaymentWindow),
	}, nil
}

// GetAddressStatus fetches the current received amount and confirmation
// count for an address, straight from the provider.
func (p *BitcoinProvider) GetAddressStatus(ctx context.Context, address string) (*AddressStatus, error) {
	if p.cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.KindConfiguration, "GATEWAY_NOT_CONFIGURED",
			"bitcoin gateway API key is not configured")
	}

	start := time.Now()
	var resp struct {
		Address       string          `json:"address"`
		Confirmations int             `json:"confirmations"`
		ReceivedBTC   decimal.Decimal `json:"received_btc"`
		TxID          string          `json:"txid"`
	}
	err := p.post(ctx, "/api/address_status", map[string]string{"addr": address}, &resp)
	if p.metrics != nil {
		p.metrics.ObserveGatewayCall(p.Name(), "address_status", start, err)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransientProvider, "ADDRESS_LOOKUP_FAILED",
			"bitcoin address lookup failed", err)
	}

	return &AddressStatus{
		Address:        address,
		Confirmations:  resp.Confirmations,
		AmountReceived: resp.ReceivedBTC,
		TxID:           resp.TxID,
	}, nil
}

// IsConfirmed reports whether the confirmation count meets the asset's
// threshold.
func (p *BitcoinProvider) IsConfirmed(confirmations int) bool {
	return confirmations >= bitcoinRequiredConfirmations
}

// IsExpired reports whether the payment window has passed.
func (p *BitcoinProvider) IsExpired(expiresAt time.Time) bool {
	return time.Now().After(expiresAt)
}

// IsSufficient reports whether the received amount covers the expected
// amount within the downward tolerance.
func (p *BitcoinProvider) IsSufficient(received, expected decimal.Decimal) bool {
	tolerance := decimal.NewFromInt(bitcoinTolerancePercent).Div(decimal.NewFromInt(100))
	threshold := expected.Mul(decimal.NewFromInt(1).Sub(tolerance))
	return received.GreaterThanOrEqual(threshold)
}

func (p *BitcoinProvider) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
