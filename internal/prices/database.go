// Package prices provides the price sources the evaluator reads from.
package prices

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// PriceStore is the read side of the daily price table
type PriceStore interface {
	GetPriceDataRange(ctx context.Context, symbol string, startDate, endDate time.Time) ([]*models.PriceDataDaily, error)
	GetLatestPriceData(ctx context.Context, symbol string) (*models.PriceDataDaily, error)
}

// DatabaseProvider serves daily closes from price_data_daily
type DatabaseProvider struct {
	store PriceStore
	now   func() time.Time
}

// NewDatabaseProvider creates a provider over store
func NewDatabaseProvider(store PriceStore) *DatabaseProvider {
	return &DatabaseProvider{store: store, now: time.Now}
}

// GetPriceHistory returns the daily closes of the last days days, oldest first
func (p *DatabaseProvider) GetPriceHistory(ctx context.Context, ticker string, days int) ([]models.PricePoint, error) {
	end := models.DayOf(p.now())
	start := end.AddDate(0, 0, -days)

	bars, err := p.store.GetPriceDataRange(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	points := make([]models.PricePoint, 0, len(bars))
	for _, bar := range bars {
		points = append(points, models.PricePoint{Price: bar.Close, Timestamp: bar.Date})
	}
	return points, nil
}

// GetCurrentPrice returns the latest stored close, or zero for unknown tickers
func (p *DatabaseProvider) GetCurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	bar, err := p.store.GetLatestPriceData(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	if bar == nil {
		return decimal.Zero, nil
	}
	return bar.Close, nil
}
