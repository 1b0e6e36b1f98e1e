package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/trogers1052/recommendation-performance/internal/api"
	"github.com/trogers1052/recommendation-performance/internal/config"
	"github.com/trogers1052/recommendation-performance/internal/database"
	"github.com/trogers1052/recommendation-performance/internal/kafka"
	"github.com/trogers1052/recommendation-performance/internal/performance"
	"github.com/trogers1052/recommendation-performance/internal/prices"
)

// wiring holds the components shared by the serve and evaluate commands
type wiring struct {
	service  *performance.Service
	cache    api.CacheInvalidator
	producer *kafka.Producer
	redis    *redis.Client
}

func wire(ctx context.Context, cfg *config.Config, db *database.DB, log zerolog.Logger) (*wiring, error) {
	w := &wiring{}

	provider, err := prices.New(cfg.Prices, db, log)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled {
		w.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := w.redis.Ping(ctx).Err(); err != nil {
			// the cache falls through to the provider while Redis is down
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, continuing")
		}
		cached := prices.NewCachedProvider(provider, w.redis, cfg.Redis.PriceTTL, log)
		provider = cached
		w.cache = cached
	}

	var opts []performance.Option
	if cfg.Kafka.Enabled {
		w.producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PerformanceTopic)
		opts = append(opts, performance.WithEventPublisher(w.producer))
	}

	w.service = performance.NewService(cfg.Performance, db, provider, log, opts...)

	log.Info().
		Bool("enabled", cfg.Performance.Enabled).
		Ints("horizons", cfg.Performance.Horizons).
		Str("price_source", cfg.Prices.Source).
		Bool("redis", cfg.Redis.Enabled).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Performance service configured")
	return w, nil
}

// Close releases the producer and Redis client
func (w *wiring) Close() error {
	var firstErr error
	if w.producer != nil {
		if err := w.producer.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close kafka producer: %w", err)
		}
	}
	if w.redis != nil {
		if err := w.redis.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close redis client: %w", err)
		}
	}
	return firstErr
}
