package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	apperrors "github.com/shopstack/server/internal/shared/errors"
	"github.com/shopstack/server/internal/utils/metrics"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenExpiryMargin is subtracted from the token expiry before reuse so a
// token never expires mid-request.
const tokenExpiryMargin = 60 * time.Second

// PayPalConfig holds card/wallet gateway configuration.
type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookID    string
}

// PayPalProvider drives the OAuth-based card/wallet gateway. Money is
// serialized as fixed-point decimal strings with exactly two digits,
// never binary float formatting.
type PayPalProvider struct {
	cfg     *PayPalConfig
	client  *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics

	tokenMu  sync.Mutex
	token    *oauth2.Token
	tokenCfg *clientcredentials.Config
}

// NewPayPalProvider creates a new card/wallet gateway adapter.
func NewPayPalProvider(cfg *PayPalConfig, client *http.Client, logger *zap.Logger, m *metrics.Metrics) *PayPalProvider {
	return &PayPalProvider{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		metrics: m,
		tokenCfg: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.BaseURL + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
	}
}

// Name returns the provider name.
func (p *PayPalProvider) Name() string {
	return "paypal"
}

// getToken returns a cached access token while it remains valid (expiry
// minus a safety margin), performing the client-credentials exchange
// otherwise. Concurrent refreshes are serialized; the cache is
// last-writer-wins.
func (p *PayPalProvider) getToken(ctx context.Context) (string, error) {
	if p.cfg.ClientID == "" || p.cfg.ClientSecret == "" {
		return "", apperrors.New(apperrors.KindConfiguration, "GATEWAY_NOT_CONFIGURED",
			"paypal credentials are not configured")
	}

	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()

	if p.token != nil && p.token.AccessToken != "" &&
		time.Now().Before(p.token.Expiry.Add(-tokenExpiryMargin)) {
		return p.token.AccessToken, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.tokenCfg.Token(ctx)
	if err != nil {
		// Do not wrap the raw error string into responses; it may echo
		// the request including credentials.
		p.logger.Error("paypal token exchange failed", zap.Error(err))
		return "", apperrors.New(apperrors.KindTransientProvider, "TOKEN_EXCHANGE_FAILED",
			"paypal token exchange failed")
	}

	p.token = token
	return token.AccessToken, nil
}

// wrapTransient classifies a failed gateway call as transient, letting
// an already classified configuration error keep its fail-fast kind.
func wrapTransient(code, message string, err error) error {
	if apperrors.IsKind(err, apperrors.KindConfiguration) {
		return err
	}
	return apperrors.Wrap(apperrors.KindTransientProvider, code, message, err)
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id,omitempty"`
	Amount      paypalAmount `json:"amount"`
}

type paypalOrderRequest struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrderResponse struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Links         []paypalLink `json:"links"`
	PurchaseUnits []struct {
		Amount paypalAmount `json:"amount"`
		Payee  struct {
			EmailAddress string `json:"email_address"`
		} `json:"payee"`
		Payments struct {
			Captures []struct {
				ID     string       `json:"id"`
				Status string       `json:"status"`
				Amount paypalAmount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Payer struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

// CreateOrder creates a checkout order for the given amount. The amount
// is serialized as a fixed-point string with exactly 2 digits to avoid
// cross-provider rounding disputes.
func (p *PayPalProvider) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, referenceID string) (*CheckoutOrder, error) {
	body := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: referenceID,
			Amount: paypalAmount{
				CurrencyCode: currency,
				Value:        amount.StringFixed(2),
			},
		}},
	}

	var resp paypalOrderResponse
	err := p.call(ctx, http.MethodPost, "/v2/checkout/orders", referenceID, body, &resp, "create_order")
	if err != nil {
		return nil, wrapTransient("ORDER_CREATION_FAILED", "paypal order creation failed", err)
	}

	order := &CheckoutOrder{ID: resp.ID, Status: resp.Status}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			order.ApproveURL = link.Href
		}
	}
	return order, nil
}

// CaptureOrder captures an approved checkout order. Duplicate-capture
// prevention rests with the provider; the same reference id is sent as
// the request id so retries hit the provider's own dedup.
func (p *PayPalProvider) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	var resp paypalOrderResponse
	err := p.call(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture",
		"capture-"+orderID, struct{}{}, &resp, "capture_order")
	if err != nil {
		return nil, wrapTransient("CAPTURE_FAILED", "paypal capture failed", err)
	}

	result := &CaptureResult{Status: resp.Status}
	for _, pu := range resp.PurchaseUnits {
		for _, capture := range pu.Payments.Captures {
			result.CaptureID = capture.ID
			result.Currency = capture.Amount.CurrencyCode
			if amt, err := decimal.NewFromString(capture.Amount.Value); err == nil {
				result.Amount = amt
			}
		}
	}
	return result, nil
}

// RefundPayment refunds a captured payment. A nil amount performs a full
// refund with an empty payload; a non-nil amount performs a partial
// refund serialized as a 2-digit fixed-point string.
func (p *PayPalProvider) RefundPayment(ctx context.Context, captureID string, amount *decimal.Decimal, currency string) (*RefundResult, error) {
	var body any = struct{}{}
	if amount != nil {
		body = struct {
			Amount paypalAmount `json:"amount"`
		}{Amount: paypalAmount{CurrencyCode: currency, Value: amount.StringFixed(2)}}
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	err := p.call(ctx, http.MethodPost, "/v2/payments/captures/"+captureID+"/refund",
		"refund-"+captureID, body, &resp, "refund")
	if err != nil {
		return nil, wrapTransient("REFUND_FAILED", "paypal refund failed", err)
	}
	return &RefundResult{RefundID: resp.ID, Status: resp.Status}, nil
}

// GetOrderDetails fetches the provider's current view of an order.
func (p *PayPalProvider) GetOrderDetails(ctx context.Context, orderID string) (*OrderDetails, error) {
	var resp paypalOrderResponse
	err := p.call(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, "", nil, &resp, "get_order")
	if err != nil {
		return nil, wrapTransient("ORDER_LOOKUP_FAILED", "paypal order lookup failed", err)
	}

	details := &OrderDetails{ID: resp.ID, Status: resp.Status, PayerEmail: resp.Payer.EmailAddress}
	for _, pu := range resp.PurchaseUnits {
		details.Currency = pu.Amount.CurrencyCode
		if amt, err := decimal.NewFromString(pu.Amount.Value); err == nil {
			details.Amount = amt
		}
	}
	return details, nil
}

// VerifyWebhook asks the provider to validate its own webhook signature:
// the five transmission headers plus the configured webhook id and the
// raw event are posted to the verification endpoint, and only an
// explicit "SUCCESS" verdict counts. Any failure, including a failed
// HTTP call, returns false; verification never raises.
func (p *PayPalProvider) VerifyWebhook(ctx context.Context, evidence WebhookEvidence) bool {
	payload := map[string]any{
		"auth_algo":         evidence.Headers["Paypal-Auth-Algo"],
		"cert_url":          evidence.Headers["Paypal-Cert-Url"],
		"transmission_id":   evidence.Headers["Paypal-Transmission-Id"],
		"transmission_sig":  evidence.Headers["Paypal-Transmission-Sig"],
		"transmission_time": evidence.Headers["Paypal-Transmission-Time"],
		"webhook_id":        p.cfg.WebhookID,
		"webhook_event":     json.RawMessage(evidence.RawBody),
	}

	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	err := p.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature",
		"", payload, &resp, "verify_webhook")
	if err != nil {
		p.logger.Warn("paypal webhook verification call failed", zap.Error(err))
		return false
	}
	return resp.VerificationStatus == "SUCCESS"
}

// call performs one authenticated provider request. requestID, when set,
// is sent as PayPal-Request-Id so retried calls deduplicate provider-side.
func (p *PayPalProvider) call(ctx context.Context, method, path, requestID string, body, out any, operation string) error {
	start := time.Now()
	err := p.doCall(ctx, method, path, requestID, body, out)
	if p.metrics != nil {
		p.metrics.ObserveGatewayCall(p.Name(), operation, start, err)
	}
	return err
}

func (p *PayPalProvider) doCall(ctx context.Context, method, path, requestID string, body, out any) error {
	token, err := p.getToken(ctx)
	if err != nil {
		return err
	}

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
	req.Header.Set("Authorization", "Bearer "+token)
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Surface the provider's error name only; the full body may echo
		// request contents.
		var provErr struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&provErr)
		return fmt.Errorf("%s %s: status %d (%s)", method, path, resp.StatusCode, provErr.Name)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
