package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopstack/server/internal/module/payment/domain"
	"github.com/shopstack/server/internal/module/payment/provider"
	apperrors "github.com/shopstack/server/internal/shared/errors"
	"github.com/shopstack/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// WebhookHandler receives inbound provider notifications. These routes
// are unauthenticated by design: authenticity is established per event by
// the provider's verifier, never by the transport. Response codes signal
// acceptance of the delivery only, not payment state.
type WebhookHandler struct {
	service *Service
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service *Service, logger *zap.Logger, m *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger,
		metrics: m,
	}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/paypal", h.HandlePayPalWebhook)
	r.POST("/monero", h.HandleMoneroWebhook)
}

// HandlePayPalWebhook handles incoming checkout webhook events.
func (h *WebhookHandler) HandlePayPalWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	evidence := provider.WebhookEvidence{
		RawBody: payload,
		Headers: map[string]string{
			"Paypal-Auth-Algo":         c.GetHeader("Paypal-Auth-Algo"),
			"Paypal-Cert-Url":          c.GetHeader("Paypal-Cert-Url"),
			"Paypal-Transmission-Id":   c.GetHeader("Paypal-Transmission-Id"),
			"Paypal-Transmission-Sig":  c.GetHeader("Paypal-Transmission-Sig"),
			"Paypal-Transmission-Time": c.GetHeader("Paypal-Transmission-Time"),
		},
	}

	h.process(c, domain.ProviderPayPal, evidence)
}

// HandleMoneroWebhook handles incoming IPN callbacks from the
// payment-request gateway.
func (h *WebhookHandler) HandleMoneroWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	evidence := provider.WebhookEvidence{
		RawBody:   payload,
		Signature: c.GetHeader("X-Signature"),
	}

	h.process(c, domain.ProviderMonero, evidence)
}

func (h *WebhookHandler) process(c *gin.Context, prov domain.Provider, evidence provider.WebhookEvidence) {
	if h.metrics != nil {
		h.metrics.WebhookEventsTotal.WithLabelValues(string(prov), "received").Inc()
	}

	rec, err := h.service.ReconcileIncomingEvent(c.Request.Context(), prov, evidence)
	switch {
	case errors.Is(err, ErrWebhookEventExists):
		c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
		return
	case apperrors.IsKind(err, apperrors.KindAuthenticity):
		h.logger.Warn("rejected unverified webhook", zap.String("provider", string(prov)))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	case apperrors.IsKind(err, apperrors.KindValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	case errors.Is(err, ErrIntentNotFound):
		// Unknown reference. Acknowledge so the provider stops retrying a
		// delivery we can never match.
		h.logger.Warn("webhook for unknown payment reference",
			zap.String("provider", string(prov)),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	case err != nil:
		h.logger.Error("failed to process webhook event",
			zap.String("provider", string(prov)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed", "payment_status": string(rec.Status)})
}
