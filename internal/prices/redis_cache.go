package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

const keyPrefix = "perf:prices"

// CachedProvider keeps price lookups in Redis so that runs close together
// share upstream fetches. Redis failures fall through to the wrapped provider.
type CachedProvider struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachedProvider wraps next with a Redis cache
func NewCachedProvider(next Provider, client *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "price_cache").Logger(),
	}
}

// GetPriceHistory returns the cached series for (ticker, days) or fetches it
func (c *CachedProvider) GetPriceHistory(ctx context.Context, ticker string, days int) ([]models.PricePoint, error) {
	key := fmt.Sprintf("%s:history:%s:%d", keyPrefix, strings.ToUpper(ticker), days)

	var points []models.PricePoint
	if c.load(ctx, key, &points) {
		return points, nil
	}

	points, err := c.next.GetPriceHistory(ctx, ticker, days)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, points)
	return points, nil
}

// GetCurrentPrice returns the cached latest price or fetches it
func (c *CachedProvider) GetCurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	key := fmt.Sprintf("%s:current:%s", keyPrefix, strings.ToUpper(ticker))

	var price decimal.Decimal
	if c.load(ctx, key, &price) {
		return price, nil
	}

	price, err := c.next.GetCurrentPrice(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	if price.IsPositive() {
		c.store(ctx, key, price)
	}
	return price, nil
}

// Invalidate drops every cached entry of ticker
func (c *CachedProvider) Invalidate(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(ticker)
	keys := []string{fmt.Sprintf("%s:current:%s", keyPrefix, ticker)}

	iter := c.client.Scan(ctx, 0, fmt.Sprintf("%s:history:%s:*", keyPrefix, ticker), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan price cache: %w", err)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate price cache: %w", err)
	}
	return nil
}

func (c *CachedProvider) load(ctx context.Context, key string, dest interface{}) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Price cache read failed")
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cache entry")
		return false
	}
	return true
}

func (c *CachedProvider) store(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Price cache write failed")
	}
}
