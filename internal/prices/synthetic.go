package prices

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// SyntheticProvider generates deterministic daily closes for demos and local
// runs. A ticker's price on a given day depends only on the ticker and the
// day, so repeated evaluations see the same series. Weekends have no prices.
type SyntheticProvider struct {
	now func() time.Time
}

// NewSyntheticProvider creates a synthetic price source
func NewSyntheticProvider() *SyntheticProvider {
	return &SyntheticProvider{now: time.Now}
}

// GetPriceHistory returns weekday closes for the last days days, oldest first
func (p *SyntheticProvider) GetPriceHistory(ctx context.Context, ticker string, days int) ([]models.PricePoint, error) {
	ticker = strings.ToUpper(ticker)
	end := models.DayOf(p.now())

	points := make([]models.PricePoint, 0, days)
	for d := days; d >= 0; d-- {
		date := end.AddDate(0, 0, -d)
		if isWeekend(date) {
			continue
		}
		points = append(points, models.PricePoint{Price: p.priceOn(ticker, date), Timestamp: date})
	}
	return points, nil
}

// GetCurrentPrice returns today's synthetic close
func (p *SyntheticProvider) GetCurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	return p.priceOn(strings.ToUpper(ticker), models.DayOf(p.now())), nil
}

func (p *SyntheticProvider) priceOn(ticker string, date time.Time) decimal.Decimal {
	seed := hashOf(ticker, 0)
	base := 20 + float64(seed%48000)/100 // 20.00 .. 499.99
	phase := float64(seed>>16%628) / 100

	dayIndex := float64(date.Unix() / 86400)
	trend := 0.15 * math.Sin(dayIndex/20+phase)
	noise := float64(hashOf(ticker, date.Unix())%2001)/1000 - 1 // -1 .. 1

	price := base * (1 + trend + 0.03*noise)
	return decimal.NewFromFloat(price).Round(2)
}

func hashOf(ticker string, salt int64) uint64 {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(salt))
	h.Write(buf[:])
	return h.Sum64()
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
