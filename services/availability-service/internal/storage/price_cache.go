package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/quote"
	"github.com/redis/go-redis/v9"
)

// PriceCache is a read-through Redis cache in front of a PricingLookup.
// Only found prices are cached; Redis errors fall through to the lookup.
type PriceCache struct {
	rdb    redis.Cmdable
	next   quote.PricingLookup
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

type cachedPrice struct {
	DurationMinutes int `json:"duration_minutes"`
	PriceCents      int `json:"price_cents"`
}

func NewPriceCache(rdb redis.Cmdable, next quote.PricingLookup, ttl time.Duration, logger *slog.Logger) *PriceCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceCache{rdb: rdb, next: next, ttl: ttl, prefix: "price", logger: logger}
}

func (c *PriceCache) FindActivePrice(ctx context.Context, vehicleSize, serviceType string) (quote.Price, bool, error) {
	key := c.key(vehicleSize, serviceType)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cp cachedPrice
		if jerr := json.Unmarshal(raw, &cp); jerr == nil {
			return quote.Price{DurationMinutes: cp.DurationMinutes, PriceCents: cp.PriceCents}, true, nil
		}
		c.logger.Warn("discarding undecodable cached price", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("price cache read failed", "err", err, "key", key)
	}

	p, ok, err := c.next.FindActivePrice(ctx, vehicleSize, serviceType)
	if err != nil || !ok {
		return p, ok, err
	}

	payload, err := json.Marshal(cachedPrice{DurationMinutes: p.DurationMinutes, PriceCents: p.PriceCents})
	if err == nil {
		err = c.rdb.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("price cache write failed", "err", err, "key", key)
	}
	return p, true, nil
}

// Invalidate drops the cached entry for a pair.
func (c *PriceCache) Invalidate(ctx context.Context, vehicleSize, serviceType string) error {
	return c.rdb.Del(ctx, c.key(vehicleSize, serviceType)).Err()
}

func (c *PriceCache) key(vehicleSize, serviceType string) string {
	return c.prefix + ":" + url.PathEscape(vehicleSize) + ":" + url.PathEscape(serviceType)
}
