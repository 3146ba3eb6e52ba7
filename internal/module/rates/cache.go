package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopstack/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// Cache caches oracle rates per pair with a TTL, and serves a bounded
// stale fallback when the oracle is unreachable. Crypto gateways must
// never block order placement on oracle flakiness while a recent-enough
// rate exists, but an indefinitely stale rate risks mispricing, so a
// second, longer staleness ceiling bounds the fallback.
//
// Reads take the fast path without network I/O while the cached rate is
// within its TTL. Concurrent refreshes for the same pair are tolerated
// rather than coalesced: both writers store a freshly valid rate, so
// last-writer-wins is harmless.
type Cache struct {
	fetcher Fetcher
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	windows map[Pair]*ExchangeRate

	ttls       map[Pair]time.Duration
	defaultTTL time.Duration
	ceiling    time.Duration

	now func() time.Time
}

// CacheConfig configures a rate cache.
type CacheConfig struct {
	// TTLs holds the per-pair validity window; pairs not listed use
	// DefaultTTL.
	TTLs       map[Pair]time.Duration
	DefaultTTL time.Duration
	// StalenessCeiling bounds how old a rate may be and still serve as a
	// fallback when the oracle fails. Distinct from, and longer than,
	// the TTL.
	StalenessCeiling time.Duration
}

// NewCache creates a new rate cache backed by the given fetcher.
func NewCache(fetcher Fetcher, cfg CacheConfig, logger *zap.Logger, m *metrics.Metrics) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 15 * time.Minute
	}
	if cfg.StalenessCeiling <= 0 {
		cfg.StalenessCeiling = time.Hour
	}
	return &Cache{
		fetcher:    fetcher,
		logger:     logger,
		metrics:    m,
		windows:    make(map[Pair]*ExchangeRate),
		ttls:       cfg.TTLs,
		defaultTTL: cfg.DefaultTTL,
		ceiling:    cfg.StalenessCeiling,
		now:        time.Now,
	}
}

// TTL returns the validity window for the pair.
func (c *Cache) TTL(pair Pair) time.Duration {
	if ttl, ok := c.ttls[pair]; ok {
		return ttl
	}
	return c.defaultTTL
}

// GetRate returns the cached rate when it is still valid, refreshes it
// from the oracle otherwise, and falls back to a bounded stale rate when
// the refresh fails. Returns ErrRateUnavailable when no usable rate
// exists at all.
func (c *Cache) GetRate(ctx context.Context, pair Pair) (Rate, error) {
	now := c.now()

	c.mu.RLock()
	current := c.windows[pair]
	c.mu.RUnlock()

	if current != nil && now.Before(current.ValidUntil) {
		c.countLookup(pair, "hit")
		return Rate{Rate: current.Rate, AsOf: current.ObservedAt, FromCache: true}, nil
	}

	fetched, err := c.fetcher.FetchRate(ctx, pair)
	if err != nil {
		if current != nil && now.Before(current.ObservedAt.Add(c.ceiling)) {
			c.countLookup(pair, "stale_fallback")
			c.logger.Warn("oracle fetch failed, serving stale rate",
				zap.String("pair", pair.String()),
				zap.Time("observed_at", current.ObservedAt),
				zap.Error(err),
			)
			return Rate{Rate: current.Rate, AsOf: current.ObservedAt, FromCache: true, Expired: true}, nil
		}
		c.countLookup(pair, "unavailable")
		return Rate{}, fmt.Errorf("%w for %s: %v", ErrRateUnavailable, pair, err)
	}

	entry := &ExchangeRate{
		Rate:       fetched,
		ObservedAt: now,
		ValidUntil: now.Add(c.TTL(pair)),
	}

	// Whole-entry replacement; a racing refresh also wrote a fresh rate.
	c.mu.Lock()
	c.windows[pair] = entry
	c.mu.Unlock()

	c.countLookup(pair, "refreshed")
	return Rate{Rate: entry.Rate, AsOf: entry.ObservedAt, FromCache: false}, nil
}

func (c *Cache) countLookup(pair Pair, outcome string) {
	if c.metrics != nil {
		c.metrics.RateLookupsTotal.WithLabelValues(pair.String(), outcome).Inc()
	}
}
