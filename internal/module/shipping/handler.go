package shipping

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrShipmentNotFound is returned when the carrier has no record of the
// tracking number.
var ErrShipmentNotFound = errors.New("shipment not found")

// Handler handles HTTP requests for shipment tracking.
type Handler struct {
	cache *TrackingCache
}

// NewHandler creates a new shipping handler.
func NewHandler(cache *TrackingCache) *Handler {
	return &Handler{cache: cache}
}

// RegisterRoutes registers the shipping routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/shipments/:tracking_number", h.GetTracking)
}

// GetTracking returns the tracking status for a shipment.
func (h *Handler) GetTracking(c *gin.Context) {
	trackingNumber := c.Param("tracking_number")
	if trackingNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tracking number required"})
		return
	}

	status, err := h.cache.Get(c.Request.Context(), trackingNumber)
	if err != nil {
		if errors.Is(err, ErrShipmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "shipment_not_found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "carrier_unavailable"})
		return
	}

	c.JSON(http.StatusOK, status)
}
