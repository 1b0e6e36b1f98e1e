package performance

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// Backfiller creates snapshots for recommendations that never got one
type Backfiller struct {
	snapshots       SnapshotStore
	source          RecommendationSource
	prices          PriceProvider
	priceTimeout    time.Duration
	defaultCurrency string
	log             zerolog.Logger
}

// NewBackfiller creates a backfiller. prices is the last-resort entry price source.
func NewBackfiller(snapshots SnapshotStore, source RecommendationSource, prices PriceProvider, priceTimeout time.Duration, defaultCurrency string, log zerolog.Logger) *Backfiller {
	return &Backfiller{
		snapshots:       snapshots,
		source:          source,
		prices:          prices,
		priceTimeout:    priceTimeout,
		defaultCurrency: defaultCurrency,
		log:             log.With().Str("component", "backfill").Logger(),
	}
}

// BackfillUser snapshots every recommendation of userID without a snapshot.
// Recommendations whose entry price cannot be resolved are skipped and
// counted; they are picked up again by the next run.
func (b *Backfiller) BackfillUser(ctx context.Context, userID string) (models.BackfillResult, error) {
	var result models.BackfillResult

	recs, err := b.source.ListRecommendationsWithoutSnapshot(ctx, userID)
	if err != nil {
		return result, err
	}

	for _, rec := range recs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		snapshot, err := b.Snapshot(ctx, rec, models.EntryHint{})
		if err != nil {
			result.Skipped++
			b.log.Warn().Err(err).
				Str("recommendation_id", rec.ID).
				Str("ticker", rec.Ticker).
				Msg("Skipping recommendation")
			continue
		}
		if snapshot == nil {
			// Another run snapshotted it first.
			continue
		}
		result.Created++
	}

	if len(recs) > 0 {
		b.log.Info().
			Str("user_id", userID).
			Int("created", result.Created).
			Int("skipped", result.Skipped).
			Msg("Backfill complete")
	}
	return result, nil
}

// Snapshot resolves the entry price of rec and stores a pending snapshot.
// Values set on hint take precedence over lookups. It returns nil without
// error when the recommendation already has a snapshot.
func (b *Backfiller) Snapshot(ctx context.Context, rec *models.Recommendation, hint models.EntryHint) (*models.RecommendationSnapshot, error) {
	action, ok := NormalizeAction(rec.Action)
	if !ok {
		return nil, fmt.Errorf("unknown action %q", rec.Action)
	}
	ticker := strings.ToUpper(strings.TrimSpace(rec.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("recommendation %s has no ticker", rec.ID)
	}

	entry, err := b.resolveEntry(ctx, rec, ticker, hint)
	if err != nil {
		return nil, err
	}

	generatedAt := rec.GeneratedAt.UTC()
	recID := rec.ID
	snapshot := &models.RecommendationSnapshot{
		UserID:           rec.UserID,
		RecommendationID: &recID,
		HoldingID:        rec.LinkedHoldingID,
		IdeaID:           entry.IdeaID,
		Ticker:           ticker,
		Action:           action,
		Confidence:       clampConfidence(rec.Confidence),
		ConfidenceBucket: ConfidenceBucket(rec.Confidence),
		EntryPrice:       entry.Price,
		Currency:         entry.Currency,
		RiskLevel:        entry.RiskLevel,
		GeneratedAt:      generatedAt,
		GeneratedDate:    models.DayOf(generatedAt),
		Status:           models.StatusPending,
	}

	created, err := b.snapshots.CreateSnapshot(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}
	return snapshot, nil
}

// resolveEntry fills the gaps of hint from the linked holding, then the
// latest idea for the ticker, then a live price
func (b *Backfiller) resolveEntry(ctx context.Context, rec *models.Recommendation, ticker string, hint models.EntryHint) (models.EntryHint, error) {
	entry := hint

	var holding *models.Holding
	if rec.LinkedHoldingID != nil && *rec.LinkedHoldingID != "" {
		h, err := b.source.GetHolding(ctx, rec.UserID, *rec.LinkedHoldingID)
		if err != nil {
			return entry, err
		}
		holding = h
	}

	idea, err := b.source.GetLatestIdeaByTicker(ctx, rec.UserID, ticker)
	if err != nil {
		return entry, err
	}

	if !entry.Price.IsPositive() && holding != nil && holding.CurrentPrice.IsPositive() {
		entry.Price = holding.CurrentPrice
	}
	if !entry.Price.IsPositive() && idea != nil && idea.CurrentPrice.IsPositive() {
		entry.Price = idea.CurrentPrice
	}
	if !entry.Price.IsPositive() && b.prices != nil {
		entry.Price = b.livePrice(ctx, ticker)
	}
	if !entry.Price.IsPositive() {
		return entry, fmt.Errorf("no entry price for %s", ticker)
	}

	if entry.Currency == "" && holding != nil {
		entry.Currency = holding.Currency
	}
	if entry.Currency == "" && idea != nil {
		entry.Currency = idea.Currency
	}
	if entry.Currency == "" {
		entry.Currency = b.defaultCurrency
	}
	entry.Currency = strings.ToUpper(entry.Currency)

	if entry.RiskLevel == "" && idea != nil {
		entry.RiskLevel = idea.RiskLevel
	}
	if entry.IdeaID == nil && idea != nil {
		id := idea.ID
		entry.IdeaID = &id
	}
	return entry, nil
}

func (b *Backfiller) livePrice(ctx context.Context, ticker string) decimal.Decimal {
	fetchCtx, cancel := context.WithTimeout(ctx, b.priceTimeout)
	defer cancel()

	price, err := b.prices.GetCurrentPrice(fetchCtx, ticker)
	if err != nil {
		b.log.Debug().Err(err).Str("ticker", ticker).Msg("Live price lookup failed")
		return decimal.Zero
	}
	return price
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
