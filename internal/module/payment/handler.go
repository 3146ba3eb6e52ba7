package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apperrors "github.com/shopstack/server/internal/shared/errors"
)

// Handler handles HTTP requests for payments.
type Handler struct {
	service *Service
}

// NewHandler creates a new payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the payment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("", h.CreatePayment)
		payments.GET("", h.ListPayments)
		payments.GET("/:id", h.GetPayment)
		payments.POST("/:id/refresh", h.RefreshPayment)
	}
}

// CreatePayment creates a payment intent for an order with the chosen
// provider.
func (h *Handler) CreatePayment(c *gin.Context) {
	userID := getUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	order := Order{
		ID:            req.OrderID,
		UserID:        userID,
		Total:         req.Amount,
		Currency:      req.Currency,
		CustomerEmail: req.CustomerEmail,
	}
	intent, err := h.service.CreatePaymentForOrder(c.Request.Context(), order, req.Provider)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, intent.ToResponse())
}

// ListPayments lists the caller's payment intents for an order. Intents
// created by other users are filtered out, not surfaced as an error.
func (h *Handler) ListPayments(c *gin.Context) {
	userID := getUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	orderID, err := uuid.Parse(c.Query("order_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	intents, err := h.service.ListIntentsByOrder(c.Request.Context(), orderID)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	responses := make([]IntentResponse, 0, len(intents))
	for _, intent := range intents {
		if intent.UserID != userID {
			continue
		}
		responses = append(responses, intent.ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"payments": responses})
}

// GetPayment returns a payment intent by id.
func (h *Handler) GetPayment(c *gin.Context) {
	userID := getUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	intent, err := h.service.GetIntent(c.Request.Context(), id)
	if err != nil {
		handlePaymentError(c, err)
		return
	}
	if intent.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	c.JSON(http.StatusOK, intent.ToResponse())
}

// RefreshPayment polls the provider for the current payment state and
// reconciles it. This is how address-based crypto payments confirm, since
// that gateway sends no webhooks.
func (h *Handler) RefreshPayment(c *gin.Context) {
	userID := getUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	intent, err := h.service.GetIntent(c.Request.Context(), id)
	if err != nil {
		handlePaymentError(c, err)
		return
	}
	if intent.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	if _, err := h.service.RefreshIntent(c.Request.Context(), id); err != nil {
		handlePaymentError(c, err)
		return
	}

	refreshed, err := h.service.GetIntent(c.Request.Context(), id)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, refreshed.ToResponse())
}

// --- Helpers ---

func getUserID(c *gin.Context) uuid.UUID {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}

func handlePaymentError(c *gin.Context, err error) {
	if errors.Is(err, ErrIntentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment_not_found"})
		return
	}
	if errors.Is(err, ErrUnknownProvider) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_provider"})
		return
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": appErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
