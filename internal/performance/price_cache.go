package performance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trogers1052/recommendation-performance/internal/models"
)

// PriceCache memoizes price histories for the duration of one evaluation
// invocation. A ticker is fetched again only when a longer look-back is
// requested than the one already held. Failures are remembered too, so a
// broken ticker costs one timeout per run.
type PriceCache struct {
	provider PriceProvider
	timeout  time.Duration

	mu      sync.Mutex
	entries map[string]*seriesEntry
	fetches int
}

type seriesEntry struct {
	mu     sync.Mutex
	days   int
	points []models.PricePoint
	err    error
}

// NewPriceCache creates an empty cache in front of provider. Each fetch is
// bounded by timeout.
func NewPriceCache(provider PriceProvider, timeout time.Duration) *PriceCache {
	return &PriceCache{
		provider: provider,
		timeout:  timeout,
		entries:  make(map[string]*seriesEntry),
	}
}

// History returns at least days of history for ticker, oldest point first
func (c *PriceCache) History(ctx context.Context, ticker string, days int) ([]models.PricePoint, error) {
	key := strings.ToUpper(ticker)

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &seriesEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.days >= days {
		return entry.points, entry.err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	points, err := c.provider.GetPriceHistory(fetchCtx, key, days)

	c.mu.Lock()
	c.fetches++
	c.mu.Unlock()

	if err != nil {
		entry.days = days
		entry.points = nil
		entry.err = err
		return nil, err
	}

	sorted := make([]models.PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	entry.days = days
	entry.points = sorted
	entry.err = nil
	return sorted, nil
}

// Fetches returns how many provider calls the cache has made
func (c *PriceCache) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

// FirstPriceOnOrAfter returns the earliest point at or after target in an
// ascending series
func FirstPriceOnOrAfter(series []models.PricePoint, target time.Time) (models.PricePoint, bool) {
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(target)
	})
	if i == len(series) {
		return models.PricePoint{}, false
	}
	return series[i], true
}
