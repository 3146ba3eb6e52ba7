package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// CarrierConfig holds carrier API configuration.
type CarrierConfig struct {
	BaseURL string
	APIKey  string
}

// CarrierClient fetches live tracking state from the carrier aggregator
// API. Lookups normally go through the TrackingCache.
type CarrierClient struct {
	cfg    CarrierConfig
	client *http.Client
}

// NewCarrierClient creates a new carrier client.
func NewCarrierClient(cfg CarrierConfig, client *http.Client) *CarrierClient {
	return &CarrierClient{cfg: cfg, client: client}
}

// FetchStatus looks up a tracking number at the carrier. It satisfies
// FetchFunc for the tracking cache.
func (c *CarrierClient) FetchStatus(ctx context.Context, trackingNumber string) (*TrackingStatus, error) {
	endpoint := fmt.Sprintf("%s/v1/trackings/%s", c.cfg.BaseURL, url.PathEscape(trackingNumber))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carrier lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrShipmentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("carrier lookup: status %d", resp.StatusCode)
	}

	var body struct {
		TrackingNumber string    `json:"tracking_number"`
		Carrier        string    `json:"carrier"`
		Status         string    `json:"status"`
		LastLocation   string    `json:"last_location"`
		UpdatedAt      time.Time `json:"updated_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode carrier response: %w", err)
	}

	return &TrackingStatus{
		TrackingNumber: body.TrackingNumber,
		Carrier:        body.Carrier,
		Status:         body.Status,
		LastLocation:   body.LastLocation,
		UpdatedAt:      body.UpdatedAt,
	}, nil
}
