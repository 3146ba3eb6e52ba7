package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopstack/server/internal/infra/events"
	"github.com/shopstack/server/internal/module/payment/domain"
	"github.com/shopstack/server/internal/module/payment/provider"
	apperrors "github.com/shopstack/server/internal/shared/errors"
	"github.com/shopstack/server/internal/utils/metrics"
	"go.uber.org/zap"
)

const cryptoTolerancePercent = 1

// Order is the order aggregate's view handed to the payment layer. The
// order store itself is an external collaborator; only the fields the
// gateways need cross this boundary.
type Order struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Total         decimal.Decimal
	Currency      string
	CustomerEmail string
}

// Service orchestrates the gateway adapters against the canonical
// payment lifecycle. Gateway calls happen outside any database
// transaction: an external HTTP call must never hold a transaction open.
type Service struct {
	repo     Repository
	registry *Registry
	bus      *events.Bus
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewService creates a new payment service.
func NewService(repo Repository, registry *Registry, bus *events.Bus, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		bus:      bus,
		logger:   logger,
		metrics:  m,
	}
}

// CreatePaymentForOrder creates a payment intent for the order with the
// chosen provider. The returned intent is persisted and pending.
func (s *Service) CreatePaymentForOrder(ctx context.Context, order Order, prov domain.Provider) (*PaymentIntent, error) {
	intent := &PaymentIntent{
		ID:              uuid.New(),
		OrderID:         order.ID,
		UserID:          order.UserID,
		Provider:        prov,
		AmountRequested: order.Total,
		Currency:        order.Currency,
		CustomerEmail:   order.CustomerEmail,
		Status:          domain.StatusPending,
	}

	switch prov {
	case domain.ProviderPayPal:
		created, err := s.registry.PayPal().CreateOrder(ctx, order.Total, order.Currency, order.ID.String())
		if err != nil {
			return nil, err
		}
		intent.ProviderReference = created.ID

	case domain.ProviderBitcoin:
		pay, err := s.registry.Bitcoin().CreatePayment(ctx, order.Total)
		if err != nil {
			return nil, err
		}
		intent.ProviderReference = pay.Address
		intent.CryptoAmount = pay.CryptoAmount
		intent.CryptoCurrency = "BTC"
		intent.RateUsed = pay.RateUsed
		rateTS := pay.RateTimestamp
		intent.RateTimestamp = &rateTS
		expires := pay.ExpiresAt
		intent.ExpiresAt = &expires

	case domain.ProviderMonero:
		req, err := s.registry.Monero().CreatePaymentRequest(ctx, provider.CreatePaymentRequestParams{
			OrderID:       order.ID.String(),
			Amount:        order.Total,
			Currency:      order.Currency,
			CustomerEmail: order.CustomerEmail,
		})
		if err != nil {
			return nil, err
		}
		intent.ProviderReference = req.PaymentID
		intent.CryptoCurrency = "XMR"
		expires := req.ExpiresAt
		intent.ExpiresAt = &expires

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, prov)
	}

	if err := s.repo.CreateIntent(ctx, intent); err != nil {
		return nil, err
	}

	s.logger.Info("payment intent created",
		zap.String("intent_id", intent.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("provider", string(prov)),
		zap.String("amount", order.Total.String()),
	)
	return intent, nil
}

// GetIntent loads a payment intent by id.
func (s *Service) GetIntent(ctx context.Context, id uuid.UUID) (*PaymentIntent, error) {
	return s.repo.GetIntent(ctx, id)
}

// ListIntentsByOrder lists all payment intents attempted for an order,
// newest first. An order retried across providers has one intent per
// attempt.
func (s *Service) ListIntentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*PaymentIntent, error) {
	return s.repo.ListIntentsByOrder(ctx, orderID)
}

// ReconcileIncomingEvent verifies an inbound webhook delivery and
// reconciles it into the canonical lifecycle. Verification failures fail
// closed: the event is discarded and never processed.
func (s *Service) ReconcileIncomingEvent(ctx context.Context, prov domain.Provider, evidence provider.WebhookEvidence) (Reconciliation, error) {
	verifier, err := s.registry.Verifier(prov)
	if err != nil {
		return Reconciliation{}, err
	}

	verified := verifier.VerifyWebhook(ctx, evidence)
	if s.metrics != nil {
		result := "ok"
		if !verified {
			result = "rejected"
		}
		s.metrics.WebhookVerificationsTotal.WithLabelValues(string(prov), result).Inc()
	}
	if !verified {
		return Reconciliation{}, apperrors.Wrap(apperrors.KindAuthenticity, "WEBHOOK_REJECTED",
			"webhook signature verification failed", ErrInvalidWebhookSignature)
	}

	eventID, reference, raw, err := s.parseEvidence(prov, evidence)
	if err != nil {
		return Reconciliation{}, err
	}

	exists, err := s.repo.WebhookEventExists(ctx, string(prov), eventID)
	if err != nil {
		// Better to process twice than to miss a delivery: the status
		// transition guard below makes a duplicate harmless.
		s.logger.Error("webhook dedup check failed", zap.Error(err))
	}
	if exists {
		s.logger.Info("webhook event already processed",
			zap.String("provider", string(prov)),
			zap.String("event_id", eventID),
		)
		return Reconciliation{}, ErrWebhookEventExists
	}

	if err := s.repo.CreateWebhookEvent(ctx, &WebhookEvent{
		Provider:  string(prov),
		EventID:   eventID,
		Reference: reference,
		Data:      string(evidence.RawBody),
	}); err != nil {
		s.logger.Error("failed to store webhook event", zap.Error(err))
	}

	rec, procErr := s.reconcileReference(ctx, prov, reference, raw)

	if err := s.repo.MarkWebhookEventProcessed(ctx, string(prov), eventID, procErr); err != nil {
		s.logger.Error("failed to mark webhook event processed", zap.Error(err))
	}
	return rec, procErr
}

// RefreshIntent polls the provider for the current payment state and
// reconciles it. This is the confirmation path for the poll-driven
// bitcoin gateway, and a recovery path for missed monero webhooks.
func (s *Service) RefreshIntent(ctx context.Context, intentID uuid.UUID) (Reconciliation, error) {
	intent, err := s.repo.GetIntent(ctx, intentID)
	if err != nil {
		return Reconciliation{}, err
	}

	var raw RawEvent
	switch intent.Provider {
	case domain.ProviderBitcoin:
		status, err := s.registry.Bitcoin().GetAddressStatus(ctx, intent.ProviderReference)
		if err != nil {
			return Reconciliation{}, err
		}
		raw = RawEvent{
			Status:                s.bitcoinRawStatus(intent, status),
			Confirmations:         status.Confirmations,
			AmountRequested:       intent.CryptoAmount,
			AmountReceived:        status.AmountReceived,
			RequiredConfirmations: s.registry.Bitcoin().RequiredConfirmations(),
			TolerancePercent:      cryptoTolerancePercent,
		}

	case domain.ProviderMonero:
		status, err := s.registry.Monero().GetPaymentStatus(ctx, intent.ProviderReference)
		if err != nil {
			return Reconciliation{}, err
		}
		raw = RawEvent{
			Status:                status.Status,
			Confirmations:         status.Confirmations,
			AmountRequested:       intent.CryptoAmount,
			AmountReceived:        status.AmountReceived,
			RequiredConfirmations: s.registry.Monero().RequiredConfirmations(),
			TolerancePercent:      cryptoTolerancePercent,
		}

	case domain.ProviderPayPal:
		details, err := s.registry.PayPal().GetOrderDetails(ctx, intent.ProviderReference)
		if err != nil {
			return Reconciliation{}, err
		}
		raw = RawEvent{
			Status:          paypalRawStatus(details.Status),
			AmountRequested: intent.AmountRequested,
			AmountReceived:  details.Amount,
		}

	default:
		return Reconciliation{}, fmt.Errorf("%w: %q", ErrUnknownProvider, intent.Provider)
	}

	rec := Reconcile(raw)
	return rec, s.applyReconciliation(ctx, intent, rec, raw)
}

// bitcoinRawStatus derives a raw status token for the address-based
// gateway, which reports balances rather than statuses.
func (s *Service) bitcoinRawStatus(intent *PaymentIntent, status *provider.AddressStatus) string {
	btc := s.registry.Bitcoin()
	switch {
	case status.AmountReceived.Sign() > 0 && btc.IsSufficient(status.AmountReceived, intent.CryptoAmount):
		return "paid"
	case status.AmountReceived.Sign() > 0:
		return "underpaid"
	case intent.ExpiresAt != nil && btc.IsExpired(*intent.ExpiresAt):
		return "expired"
	default:
		return "pending"
	}
}

// paypalRawStatus maps the checkout order status vocabulary onto the
// reconciler's raw tokens.
func paypalRawStatus(status string) string {
	switch status {
	case "COMPLETED":
		return "paid"
	case "VOIDED":
		return "cancelled"
	case "CREATED", "SAVED", "APPROVED", "PAYER_ACTION_REQUIRED":
		return "pending"
	default:
		return status
	}
}

func (s *Service) reconcileReference(ctx context.Context, prov domain.Provider, reference string, raw RawEvent) (Reconciliation, error) {
	intent, err := s.repo.GetIntentByProviderReference(ctx, string(prov), reference)
	if err != nil {
		return Reconciliation{}, err
	}

	switch prov {
	case domain.ProviderBitcoin, domain.ProviderMonero:
		raw.AmountRequested = intent.CryptoAmount
		raw.TolerancePercent = cryptoTolerancePercent
	default:
		raw.AmountRequested = intent.AmountRequested
	}

	rec := Reconcile(raw)
	return rec, s.applyReconciliation(ctx, intent, rec, raw)
}

// applyReconciliation persists a reconciled status under the transition
// guard: terminal states are never left, and the confirmed event fires
// only on the transition into the terminal success state, so two
// near-simultaneous deliveries for the same reference trigger completion
// at most once.
func (s *Service) applyReconciliation(ctx context.Context, intent *PaymentIntent, rec Reconciliation, raw RawEvent) error {
	if intent.Status == rec.Status {
		// Nothing to transition; keep confirmation progress and the
		// action flag fresh. A clean delivery clears a flag left by an
		// earlier unknown-status event.
		changed := false
		if raw.Confirmations > intent.Confirmations {
			intent.Confirmations = raw.Confirmations
			changed = true
		}
		if intent.RequiresAction != rec.RequiresAction {
			intent.RequiresAction = rec.RequiresAction
			changed = true
		}
		if changed {
			return s.repo.UpdateIntent(ctx, intent)
		}
		return nil
	}

	if !intent.Status.CanTransitionTo(rec.Status) {
		s.logger.Warn("ignoring reconciliation against terminal or invalid transition",
			zap.String("intent_id", intent.ID.String()),
			zap.String("from", string(intent.Status)),
			zap.String("to", string(rec.Status)),
		)
		return nil
	}

	intent.Status = rec.Status
	intent.Confirmations = raw.Confirmations
	intent.RequiresAction = rec.RequiresAction
	if raw.AmountReceived.Sign() > 0 {
		intent.AmountReceived = raw.AmountReceived
	}
	if rec.Status.IsSuccess() {
		now := time.Now()
		intent.ConfirmedAt = &now
	}

	if err := s.repo.UpdateIntent(ctx, intent); err != nil {
		return err
	}

	s.logger.Info("payment intent reconciled",
		zap.String("intent_id", intent.ID.String()),
		zap.String("provider", string(intent.Provider)),
		zap.String("status", string(rec.Status)),
		zap.String("raw_status", rec.RawStatus),
		zap.Int("confirmations", raw.Confirmations),
		zap.Bool("requires_action", rec.RequiresAction),
	)

	if rec.Status.IsSuccess() && s.bus != nil {
		s.bus.Publish(NewConfirmedEvent(intent))
	}
	return nil
}

// parseEvidence decodes a verified webhook body into the event id, the
// provider reference it points at, and a raw event. Decoding happens
// once, here at the adapter boundary; optional fields default rather
// than erroring.
func (s *Service) parseEvidence(prov domain.Provider, evidence provider.WebhookEvidence) (eventID, reference string, raw RawEvent, err error) {
	switch prov {
	case domain.ProviderPayPal:
		var event struct {
			ID        string `json:"id"`
			EventType string `json:"event_type"`
			Resource  struct {
				ID                string `json:"id"`
				Status            string `json:"status"`
				SupplementaryData struct {
					RelatedIDs struct {
						OrderID string `json:"order_id"`
					} `json:"related_ids"`
				} `json:"supplementary_data"`
				Amount struct {
					Value string `json:"value"`
				} `json:"amount"`
			} `json:"resource"`
		}
		if err := json.Unmarshal(evidence.RawBody, &event); err != nil {
			return "", "", RawEvent{}, apperrors.Wrap(apperrors.KindValidation, "MALFORMED_WEBHOOK",
				"malformed paypal webhook payload", err)
		}
		reference = event.Resource.SupplementaryData.RelatedIDs.OrderID
		if reference == "" {
			reference = event.Resource.ID
		}
		raw = RawEvent{Status: paypalEventStatus(event.EventType)}
		if amt, perr := decimal.NewFromString(event.Resource.Amount.Value); perr == nil {
			raw.AmountReceived = amt
		}
		return event.ID, reference, raw, nil

	case domain.ProviderMonero:
		var ipn struct {
			EventID        string          `json:"event_id"`
			PaymentID      string          `json:"payment_id"`
			Status         string          `json:"status"`
			Confirmations  *int            `json:"confirmations"`
			AmountReceived decimal.Decimal `json:"amount_received"`
		}
		if err := json.Unmarshal(evidence.RawBody, &ipn); err != nil {
			return "", "", RawEvent{}, apperrors.Wrap(apperrors.KindValidation, "MALFORMED_WEBHOOK",
				"malformed monero webhook payload", err)
		}
		confirmations := 0
		if ipn.Confirmations != nil {
			confirmations = *ipn.Confirmations
		}
		eventID = ipn.EventID
		if eventID == "" {
			eventID = fmt.Sprintf("%s-%s-%d", ipn.PaymentID, ipn.Status, confirmations)
		}
		raw = RawEvent{
			Status:                ipn.Status,
			Confirmations:         confirmations,
			AmountReceived:        ipn.AmountReceived,
			RequiredConfirmations: s.registry.Monero().RequiredConfirmations(),
		}
		return eventID, ipn.PaymentID, raw, nil

	default:
		return "", "", RawEvent{}, fmt.Errorf("%w: %q", ErrUnknownProvider, prov)
	}
}

// paypalEventStatus maps webhook event types onto the reconciler's raw
// tokens.
func paypalEventStatus(eventType string) string {
	switch eventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.COMPLETED":
		return "paid"
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		return "cancelled"
	case "CHECKOUT.ORDER.APPROVED":
		return "pending"
	default:
		return eventType
	}
}
