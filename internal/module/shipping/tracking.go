package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TrackingStatus is a carrier's view of a shipment.
type TrackingStatus struct {
	TrackingNumber string    `json:"tracking_number"`
	Carrier        string    `json:"carrier"`
	Status         string    `json:"status"`
	LastLocation   string    `json:"last_location,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FetchFunc loads a tracking status from the carrier on cache miss.
type FetchFunc func(ctx context.Context, trackingNumber string) (*TrackingStatus, error)

// TrackingCacheConfig contains cache configuration.
type TrackingCacheConfig struct {
	Prefix string
	TTL    time.Duration
}

// DefaultTrackingCacheConfig returns the default cache configuration.
func DefaultTrackingCacheConfig() *TrackingCacheConfig {
	return &TrackingCacheConfig{
		Prefix: "tracking:",
		TTL:    10 * time.Minute,
	}
}

// TrackingCache caches carrier tracking lookups in redis. Carrier APIs
// are slow and rate limited; shipment state moves on the order of hours,
// so a short TTL loses nothing.
type TrackingCache struct {
	client redis.UniversalClient
	fetch  FetchFunc
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewTrackingCache creates a new tracking cache.
func NewTrackingCache(client redis.UniversalClient, fetch FetchFunc, config *TrackingCacheConfig, logger *zap.Logger) *TrackingCache {
	if config == nil {
		config = DefaultTrackingCacheConfig()
	}
	return &TrackingCache{
		client: client,
		fetch:  fetch,
		prefix: config.Prefix,
		ttl:    config.TTL,
		logger: logger,
	}
}

// Get returns the tracking status, from cache when fresh. A redis
// failure falls through to the carrier rather than failing the lookup.
func (c *TrackingCache) Get(ctx context.Context, trackingNumber string) (*TrackingStatus, error) {
	key := c.prefix + trackingNumber

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var status TrackingStatus
		if err := json.Unmarshal(data, &status); err == nil {
			return &status, nil
		}
		c.logger.Warn("corrupt cached tracking entry, refetching",
			zap.String("tracking_number", trackingNumber),
		)
	} else if err != redis.Nil {
		c.logger.Warn("tracking cache read failed", zap.Error(err))
	}

	status, err := c.fetch(ctx, trackingNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch tracking status: %w", err)
	}

	if buf, err := json.Marshal(status); err == nil {
		if err := c.client.Set(ctx, key, buf, c.ttl).Err(); err != nil {
			c.logger.Warn("tracking cache write failed", zap.Error(err))
		}
	}
	return status, nil
}

// Invalidate drops the cached entry for a tracking number.
func (c *TrackingCache) Invalidate(ctx context.Context, trackingNumber string) error {
	return c.client.Del(ctx, c.prefix+trackingNumber).Err()
}
