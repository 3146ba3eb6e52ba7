package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopstack/server/internal/infra/events"
	"github.com/shopstack/server/internal/module/payment/domain"
	"github.com/shopstack/server/internal/module/payment/provider"
	apperrors "github.com/shopstack/server/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWebhookSecret = "ipn-secret"

type fakeRepository struct {
	intents       map[string]*PaymentIntent // keyed by provider reference
	intentsByID   map[uuid.UUID]*PaymentIntent
	webhookEvents map[string]bool // keyed by provider:eventID
	updates       int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		intents:       make(map[string]*PaymentIntent),
		intentsByID:   make(map[uuid.UUID]*PaymentIntent),
		webhookEvents: make(map[string]bool),
	}
}

func (f *fakeRepository) add(intent *PaymentIntent) {
	f.intents[string(intent.Provider)+":"+intent.ProviderReference] = intent
	f.intentsByID[intent.ID] = intent
}

func (f *fakeRepository) CreateIntent(_ context.Context, intent *PaymentIntent) error {
	f.add(intent)
	return nil
}

func (f *fakeRepository) GetIntent(_ context.Context, id uuid.UUID) (*PaymentIntent, error) {
	intent, ok := f.intentsByID[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return intent, nil
}

func (f *fakeRepository) GetIntentByProviderReference(_ context.Context, prov, reference string) (*PaymentIntent, error) {
	intent, ok := f.intents[prov+":"+reference]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return intent, nil
}

func (f *fakeRepository) UpdateIntent(_ context.Context, intent *PaymentIntent) error {
	f.updates++
	f.add(intent)
	return nil
}

func (f *fakeRepository) ListIntentsByOrder(_ context.Context, orderID uuid.UUID) ([]*PaymentIntent, error) {
	var out []*PaymentIntent
	for _, intent := range f.intentsByID {
		if intent.OrderID == orderID {
			out = append(out, intent)
		}
	}
	return out, nil
}

func (f *fakeRepository) CreateWebhookEvent(_ context.Context, event *WebhookEvent) error {
	f.webhookEvents[event.Provider+":"+event.EventID] = true
	return nil
}

func (f *fakeRepository) WebhookEventExists(_ context.Context, prov, eventID string) (bool, error) {
	return f.webhookEvents[prov+":"+eventID], nil
}

func (f *fakeRepository) MarkWebhookEventProcessed(_ context.Context, _, _ string, _ error) error {
	return nil
}

type confirmedRecorder struct {
	events []*ConfirmedEvent
}

func (r *confirmedRecorder) Handles() []string { return []string{EventPaymentConfirmed} }

func (r *confirmedRecorder) Handle(event events.Event) error {
	if confirmed, ok := event.(*ConfirmedEvent); ok {
		r.events = append(r.events, confirmed)
	}
	return nil
}

func newTestService(repo Repository) (*Service, *confirmedRecorder) {
	logger := zap.NewNop()
	registry := NewRegistry(
		provider.NewPayPalProvider(&provider.PayPalConfig{}, http.DefaultClient, logger, nil),
		provider.NewBitcoinProvider(&provider.BitcoinConfig{}, http.DefaultClient, nil, "GBP", logger, nil),
		provider.NewMoneroProvider(&provider.MoneroConfig{WebhookSecret: testWebhookSecret}, http.DefaultClient, logger, nil),
	)
	bus := events.NewBus(logger)
	recorder := &confirmedRecorder{}
	bus.Register(recorder)
	return NewService(repo, registry, bus, logger, nil), recorder
}

func signIPN(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func moneroEvidence(body string) provider.WebhookEvidence {
	raw := []byte(body)
	return provider.WebhookEvidence{RawBody: raw, Signature: signIPN(raw)}
}

func pendingMoneroIntent(reference string) *PaymentIntent {
	return &PaymentIntent{
		ID:                uuid.New(),
		OrderID:           uuid.New(),
		UserID:            uuid.New(),
		Provider:          domain.ProviderMonero,
		ProviderReference: reference,
		AmountRequested:   decimal.RequireFromString("100.00"),
		Currency:          "GBP",
		CustomerEmail:     "buyer@example.com",
		CryptoAmount:      decimal.RequireFromString("0.500000000000"),
		CryptoCurrency:    "XMR",
		Status:            domain.StatusPending,
	}
}

func TestReconcileIncomingEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed delivery transitions intent and publishes once", func(t *testing.T) {
		repo := newFakeRepository()
		intent := pendingMoneroIntent("pay-1")
		repo.add(intent)
		svc, recorder := newTestService(repo)

		evidence := moneroEvidence(`{"event_id":"evt-1","payment_id":"pay-1","status":"paid","confirmations":10,"amount_received":"0.5"}`)
		rec, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, evidence)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusConfirmed, rec.Status)
		assert.Equal(t, domain.StatusConfirmed, intent.Status)
		assert.Equal(t, 10, intent.Confirmations)
		require.NotNil(t, intent.ConfirmedAt)
		require.Len(t, recorder.events, 1)
		assert.Equal(t, intent.OrderID, recorder.events[0].OrderID)
		assert.Equal(t, intent.UserID, recorder.events[0].UserID)
		assert.Equal(t, "buyer@example.com", recorder.events[0].CustomerEmail)
	})

	t.Run("insufficient confirmations yield partial state", func(t *testing.T) {
		repo := newFakeRepository()
		intent := pendingMoneroIntent("pay-2")
		repo.add(intent)
		svc, recorder := newTestService(repo)

		evidence := moneroEvidence(`{"event_id":"evt-2","payment_id":"pay-2","status":"paid","confirmations":3,"amount_received":"0.5"}`)
		rec, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, evidence)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusPartiallyConfirmed, rec.Status)
		assert.Equal(t, domain.StatusPartiallyConfirmed, intent.Status)
		assert.Empty(t, recorder.events)
	})

	t.Run("tampered body is rejected before any processing", func(t *testing.T) {
		repo := newFakeRepository()
		repo.add(pendingMoneroIntent("pay-3"))
		svc, recorder := newTestService(repo)

		body := []byte(`{"event_id":"evt-3","payment_id":"pay-3","status":"paid","confirmations":10}`)
		evidence := provider.WebhookEvidence{
			RawBody:   body,
			Signature: signIPN([]byte(`different body`)),
		}
		_, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, evidence)
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindAuthenticity))
		assert.Empty(t, repo.webhookEvents)
		assert.Empty(t, recorder.events)
	})

	t.Run("redelivered event id is skipped", func(t *testing.T) {
		repo := newFakeRepository()
		repo.add(pendingMoneroIntent("pay-4"))
		svc, _ := newTestService(repo)

		evidence := moneroEvidence(`{"event_id":"evt-4","payment_id":"pay-4","status":"paid","confirmations":10,"amount_received":"0.5"}`)
		_, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, evidence)
		require.NoError(t, err)

		_, err = svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, evidence)
		assert.ErrorIs(t, err, ErrWebhookEventExists)
	})

	t.Run("distinct event for terminal intent confirms at most once", func(t *testing.T) {
		repo := newFakeRepository()
		intent := pendingMoneroIntent("pay-5")
		repo.add(intent)
		svc, recorder := newTestService(repo)

		first := moneroEvidence(`{"event_id":"evt-5a","payment_id":"pay-5","status":"paid","confirmations":10,"amount_received":"0.5"}`)
		_, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, first)
		require.NoError(t, err)

		second := moneroEvidence(`{"event_id":"evt-5b","payment_id":"pay-5","status":"paid","confirmations":12,"amount_received":"0.5"}`)
		_, err = svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, second)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusConfirmed, intent.Status)
		assert.Equal(t, 12, intent.Confirmations)
		require.Len(t, recorder.events, 1)
	})

	t.Run("terminal intent never regresses", func(t *testing.T) {
		repo := newFakeRepository()
		intent := pendingMoneroIntent("pay-6")
		intent.Status = domain.StatusConfirmed
		repo.add(intent)
		svc, _ := newTestService(repo)

		evidence := moneroEvidence(`{"event_id":"evt-6","payment_id":"pay-6","status":"expired","confirmations":0}`)
		_, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, evidence)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, intent.Status)
	})

	t.Run("clean delivery clears a stale action flag", func(t *testing.T) {
		repo := newFakeRepository()
		intent := pendingMoneroIntent("pay-9")
		repo.add(intent)
		svc, _ := newTestService(repo)

		unknown := moneroEvidence(`{"event_id":"evt-9a","payment_id":"pay-9","status":"reviewing","confirmations":0}`)
		_, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, unknown)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, intent.Status)
		assert.True(t, intent.RequiresAction)

		clean := moneroEvidence(`{"event_id":"evt-9b","payment_id":"pay-9","status":"waiting","confirmations":0}`)
		_, err = svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, clean)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, intent.Status)
		assert.False(t, intent.RequiresAction)
	})

	t.Run("unknown reference surfaces not found", func(t *testing.T) {
		repo := newFakeRepository()
		svc, _ := newTestService(repo)

		evidence := moneroEvidence(`{"event_id":"evt-7","payment_id":"pay-unknown","status":"paid","confirmations":10}`)
		_, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, evidence)
		assert.ErrorIs(t, err, ErrIntentNotFound)
	})

	t.Run("malformed body is a validation failure", func(t *testing.T) {
		repo := newFakeRepository()
		svc, _ := newTestService(repo)

		evidence := moneroEvidence(`{"payment_id":`)
		_, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, evidence)
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})

	t.Run("bitcoin has no webhook path", func(t *testing.T) {
		repo := newFakeRepository()
		svc, _ := newTestService(repo)

		_, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderBitcoin, provider.WebhookEvidence{RawBody: []byte("{}")})
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})

	t.Run("missing event id falls back to derived id", func(t *testing.T) {
		repo := newFakeRepository()
		intent := pendingMoneroIntent("pay-8")
		repo.add(intent)
		svc, _ := newTestService(repo)

		evidence := moneroEvidence(`{"payment_id":"pay-8","status":"waiting","confirmations":1}`)
		_, err := svc.ReconcileIncomingEvent(ctx, domain.ProviderMonero, evidence)
		require.NoError(t, err)
		assert.True(t, repo.webhookEvents["monero:"+fmt.Sprintf("%s-%s-%d", "pay-8", "waiting", 1)])
	})
}

func TestPaypalEventStatus(t *testing.T) {
	assert.Equal(t, "paid", paypalEventStatus("PAYMENT.CAPTURE.COMPLETED"))
	assert.Equal(t, "paid", paypalEventStatus("CHECKOUT.ORDER.COMPLETED"))
	assert.Equal(t, "cancelled", paypalEventStatus("PAYMENT.CAPTURE.DENIED"))
	assert.Equal(t, "pending", paypalEventStatus("CHECKOUT.ORDER.APPROVED"))
	assert.Equal(t, "SOMETHING.NEW", paypalEventStatus("SOMETHING.NEW"))
}

func TestPaypalRawStatus(t *testing.T) {
	assert.Equal(t, "paid", paypalRawStatus("COMPLETED"))
	assert.Equal(t, "cancelled", paypalRawStatus("VOIDED"))
	assert.Equal(t, "pending", paypalRawStatus("APPROVED"))
	assert.Equal(t, "PARTIALLY_REFUNDED", paypalRawStatus("PARTIALLY_REFUNDED"))
}
