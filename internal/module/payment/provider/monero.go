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
	"github.com/shopstack/server/internal/module/payment/verify"
	apperrors "github.com/shopstack/server/internal/shared/errors"
	"github.com/shopstack/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// Confirmation bar for this asset is materially higher than the
// bitcoin-like gateway's: a per-asset policy reflecting different
// block-time and finality assumptions, not a shared constant.
const (
	moneroRequiredConfirmations = 10
	moneroPaymentWindow         = 24 * time.Hour
)

// MoneroConfig holds the payment-request crypto gateway configuration.
type MoneroConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	// PublicBaseURL is the externally reachable base for the callback
	// URLs handed to the provider at creation time.
	PublicBaseURL string
}

// MoneroProvider drives the payment-request crypto gateway with a
// webhook (IPN) confirmation model.
type MoneroProvider struct {
	cfg      *MoneroConfig
	client   *http.Client
	verifier *verify.HMACVerifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewMoneroProvider creates a new payment-request gateway adapter.
func NewMoneroProvider(cfg *MoneroConfig, client *http.Client, logger *zap.Logger, m *metrics.Metrics) *MoneroProvider {
	return &MoneroProvider{
		cfg:      cfg,
		client:   client,
		verifier: verify.NewHMAC([]byte(cfg.WebhookSecret)),
		logger:   logger,
		metrics:  m,
	}
}

// Name returns the provider name.
func (p *MoneroProvider) Name() string {
	return "monero"
}

// RequiredConfirmations returns the confirmation threshold for this
// asset.
func (p *MoneroProvider) RequiredConfirmations() int {
	return moneroRequiredConfirmations
}

// PaymentWindow returns the fixed window within which a payment request
// can be paid.
func (p *MoneroProvider) PaymentWindow() time.Duration {
	return moneroPaymentWindow
}

// CreatePaymentRequestParams are the inputs to CreatePaymentRequest.
type CreatePaymentRequestParams struct {
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
}

// CreatePaymentRequest creates a payment request at the gateway. The
// callback URLs are composed deterministically from the order id and the
// configured public base URL: the provider's webhook and redirect flow
// depends on them, so retried webhook deliveries must see identical URLs.
func (p *MoneroProvider) CreatePaymentRequest(ctx context.Context, params CreatePaymentRequestParams) (*PaymentRequest, error) {
	if p.cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.KindConfiguration, "GATEWAY_NOT_CONFIGURED",
			"monero gateway API key is not configured")
	}

	body := map[string]string{
		"order_id":     params.OrderID,
		"amount":       params.Amount.String(),
		"currency":     params.Currency,
		"email":        params.CustomerEmail,
		"success_url":  fmt.Sprintf("%s/payment/monero/success?order=%s", p.cfg.PublicBaseURL, params.OrderID),
		"cancel_url":   fmt.Sprintf("%s/payment/monero/cancel?order=%s", p.cfg.PublicBaseURL, params.OrderID),
		"ipn_url":      fmt.Sprintf("%s/webhooks/monero", p.cfg.PublicBaseURL),
		"redirect_url": fmt.Sprintf("%s/orders/%s", p.cfg.PublicBaseURL, params.OrderID),
	}

	start := time.Now()
	var resp struct {
		PaymentID  string `json:"payment_id"`
		PaymentURL string `json:"payment_url"`
		Address    string `json:"address"`
	}
	err := p.call(ctx, http.MethodPost, "/v1/payment", body, &resp)
	if p.metrics != nil {
		p.metrics.ObserveGatewayCall(p.Name(), "create_payment_request", start, err)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransientProvider, "PAYMENT_REQUEST_FAILED",
			"monero payment request failed", err)
	}

	return &PaymentRequest{
		PaymentID:  resp.PaymentID,
		PaymentURL: resp.PaymentURL,
		Address:    resp.Address,
		ExpiresAt:  time.Now().Add(moneroPaymentWindow),
	}, nil
}

// GetPaymentStatus fetches the gateway's raw status for a payment and
// normalizes it. An absent confirmations field defaults to 0, never nil.
func (p *MoneroProvider) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	if p.cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.KindConfiguration, "GATEWAY_NOT_CONFIGURED",
			"monero gateway API key is not configured")
	}

	start := time.Now()
	var resp struct {
		PaymentID      string          `json:"payment_id"`
		Status         string          `json:"status"`
		Confirmations  *int            `json:"confirmations"`
		AmountReceived decimal.Decimal `json:"amount_received"`
	}
	err := p.call(ctx, http.MethodGet, "/v1/payment/"+paymentID, nil, &resp)
	if p.metrics != nil {
		p.metrics.ObserveGatewayCall(p.Name(), "get_payment_status", start, err)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransientProvider, "PAYMENT_LOOKUP_FAILED",
			"monero payment lookup failed", err)
	}

	confirmations := 0
	if resp.Confirmations != nil {
		confirmations = *resp.Confirmations
	}

	return &PaymentStatus{
		PaymentID:      resp.PaymentID,
		Status:         resp.Status,
		Confirmations:  confirmations,
		AmountReceived: resp.AmountReceived,
	}, nil
}

// IsExpired reports whether the fixed payment window has passed since
// creation.
func (p *MoneroProvider) IsExpired(createdAt time.Time) bool {
	return time.Now().After(createdAt.Add(moneroPaymentWindow))
}

// VerifyWebhook validates an IPN delivery against the shared webhook
// secret. Verification fails closed: any problem returns false.
func (p *MoneroProvider) VerifyWebhook(_ context.Context, evidence WebhookEvidence) bool {
	return p.verifier.Verify(evidence.RawBody, evidence.Signature)
}

func (p *MoneroProvider) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
