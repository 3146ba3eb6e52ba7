package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	apperrors "github.com/shopstack/server/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMoneroCreatePaymentRequest(t *testing.T) {
	ctx := context.Background()
	params := CreatePaymentRequestParams{
		OrderID:       "ord-42",
		Amount:        decimal.RequireFromString("149.99"),
		Currency:      "GBP",
		CustomerEmail: "buyer@example.com",
	}

	t.Run("fails fast without API key", func(t *testing.T) {
		p := NewMoneroProvider(&MoneroConfig{BaseURL: "http://unused"}, http.DefaultClient, zap.NewNop(), nil)
		_, err := p.CreatePaymentRequest(ctx, params)
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
	})

	t.Run("composes deterministic callback URLs", func(t *testing.T) {
		var gotBody map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/payment", r.URL.Path)
			require.Equal(t, "xmr-key", r.Header.Get("X-API-Key"))
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &gotBody))
			_, _ = w.Write([]byte(`{"payment_id":"pay-1","payment_url":"https://xmr.example/pay/pay-1","address":"4Atest"}`))
		}))
		defer srv.Close()

		p := NewMoneroProvider(&MoneroConfig{
			BaseURL:       srv.URL,
			APIKey:        "xmr-key",
			PublicBaseURL: "https://shop.example.com",
		}, srv.Client(), zap.NewNop(), nil)

		req, err := p.CreatePaymentRequest(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, "pay-1", req.PaymentID)
		assert.Equal(t, "4Atest", req.Address)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), req.ExpiresAt, time.Minute)

		assert.Equal(t, "https://shop.example.com/payment/monero/success?order=ord-42", gotBody["success_url"])
		assert.Equal(t, "https://shop.example.com/payment/monero/cancel?order=ord-42", gotBody["cancel_url"])
		assert.Equal(t, "https://shop.example.com/webhooks/monero", gotBody["ipn_url"])
		assert.Equal(t, "https://shop.example.com/orders/ord-42", gotBody["redirect_url"])
		assert.Equal(t, "149.99", gotBody["amount"])
	})

	t.Run("identical inputs produce identical URLs", func(t *testing.T) {
		bodies := make([]map[string]string, 0, 2)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &body))
			bodies = append(bodies, body)
			_, _ = w.Write([]byte(`{"payment_id":"pay-1"}`))
		}))
		defer srv.Close()

		p := NewMoneroProvider(&MoneroConfig{
			BaseURL:       srv.URL,
			APIKey:        "xmr-key",
			PublicBaseURL: "https://shop.example.com",
		}, srv.Client(), zap.NewNop(), nil)

		_, err := p.CreatePaymentRequest(ctx, params)
		require.NoError(t, err)
		_, err = p.CreatePaymentRequest(ctx, params)
		require.NoError(t, err)

		require.Len(t, bodies, 2)
		for _, key := range []string{"success_url", "cancel_url", "ipn_url", "redirect_url"} {
			assert.Equal(t, bodies[0][key], bodies[1][key], key)
		}
	})
}

func TestMoneroGetPaymentStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("absent confirmations default to zero", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/payment/pay-1", r.URL.Path)
			_, _ = w.Write([]byte(`{"payment_id":"pay-1","status":"waiting"}`))
		}))
		defer srv.Close()

		p := NewMoneroProvider(&MoneroConfig{BaseURL: srv.URL, APIKey: "xmr-key"}, srv.Client(), zap.NewNop(), nil)
		status, err := p.GetPaymentStatus(ctx, "pay-1")
		require.NoError(t, err)
		assert.Equal(t, 0, status.Confirmations)
		assert.Equal(t, "waiting", status.Status)
	})

	t.Run("present confirmations pass through", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"payment_id":"pay-1","status":"paid","confirmations":7,"amount_received":"0.95"}`))
		}))
		defer srv.Close()

		p := NewMoneroProvider(&MoneroConfig{BaseURL: srv.URL, APIKey: "xmr-key"}, srv.Client(), zap.NewNop(), nil)
		status, err := p.GetPaymentStatus(ctx, "pay-1")
		require.NoError(t, err)
		assert.Equal(t, 7, status.Confirmations)
		assert.True(t, status.AmountReceived.Equal(decimal.RequireFromString("0.95")))
	})
}

func TestMoneroVerifyWebhook(t *testing.T) {
	secret := "ipn-secret"
	body := []byte(`{"payment_id":"pay-1","status":"paid"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	validSig := hex.EncodeToString(mac.Sum(nil))

	p := NewMoneroProvider(&MoneroConfig{WebhookSecret: secret}, http.DefaultClient, zap.NewNop(), nil)

	t.Run("valid signature verifies", func(t *testing.T) {
		assert.True(t, p.VerifyWebhook(context.Background(), WebhookEvidence{
			RawBody:   body,
			Signature: validSig,
		}))
	})

	t.Run("tampered body rejects", func(t *testing.T) {
		assert.False(t, p.VerifyWebhook(context.Background(), WebhookEvidence{
			RawBody:   []byte(`{"payment_id":"pay-1","status":"paid","amount_received":"9"}`),
			Signature: validSig,
		}))
	})

	t.Run("missing signature rejects", func(t *testing.T) {
		assert.False(t, p.VerifyWebhook(context.Background(), WebhookEvidence{RawBody: body}))
	})

	t.Run("unconfigured secret rejects everything", func(t *testing.T) {
		unconfigured := NewMoneroProvider(&MoneroConfig{}, http.DefaultClient, zap.NewNop(), nil)
		assert.False(t, unconfigured.VerifyWebhook(context.Background(), WebhookEvidence{
			RawBody:   body,
			Signature: validSig,
		}))
	})
}

func TestMoneroIsExpired(t *testing.T) {
	p := NewMoneroProvider(&MoneroConfig{}, nil, zap.NewNop(), nil)
	assert.False(t, p.IsExpired(time.Now().Add(-23*time.Hour)))
	assert.True(t, p.IsExpired(time.Now().Add(-25*time.Hour)))
}
