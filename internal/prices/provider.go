package prices

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/config"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// Provider is the price source contract shared by every implementation here
type Provider interface {
	GetPriceHistory(ctx context.Context, ticker string, days int) ([]models.PricePoint, error)
	GetCurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// New builds the provider selected by cfg.Source. store backs the database source.
func New(cfg config.PriceConfig, store PriceStore, log zerolog.Logger) (Provider, error) {
	switch cfg.Source {
	case config.PriceSourceDatabase:
		return NewDatabaseProvider(store), nil
	case config.PriceSourceHTTP:
		return NewClient(cfg.ServiceURL,
			WithRateLimit(cfg.RateLimit),
			WithLogger(log.With().Str("component", "price_client").Logger()),
		), nil
	case config.PriceSourceSynthetic:
		log.Warn().Msg("Using synthetic prices; evaluations will not reflect the market")
		return NewSyntheticProvider(), nil
	default:
		return nil, fmt.Errorf("unknown price source: %s", cfg.Source)
	}
}
