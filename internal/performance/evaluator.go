package performance

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// Evaluator scores open snapshots against realized prices
type Evaluator struct {
	snapshots   SnapshotStore
	evaluations EvaluationStore
	publisher   EventPublisher
	horizons    []int
	log         zerolog.Logger
}

// NewEvaluator creates an evaluator for the given horizons. publisher may be nil.
func NewEvaluator(snapshots SnapshotStore, evaluations EvaluationStore, publisher EventPublisher, horizons []int, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		snapshots:   snapshots,
		evaluations: evaluations,
		publisher:   publisher,
		horizons:    horizons,
		log:         log.With().Str("component", "evaluator").Logger(),
	}
}

// EvaluateUser processes every pending or stale snapshot of one user and adds
// its counters to result. Failures on a single snapshot are logged and counted;
// only a failure to load the user's snapshots is returned.
func (e *Evaluator) EvaluateUser(ctx context.Context, userID string, now time.Time, cache *PriceCache, result *models.EvaluationRunResult) error {
	snapshots, err := e.snapshots.ListOpenSnapshots(ctx, userID)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		return nil
	}

	ids := make([]string, len(snapshots))
	for i, s := range snapshots {
		ids[i] = s.ID
	}
	existing, err := e.evaluations.GetEvaluationsBySnapshotIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, s := range snapshots {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.SnapshotsChecked++

		byHorizon := make(map[int]*models.RecommendationEvaluation, len(e.horizons))
		for _, ev := range existing[s.ID] {
			byHorizon[ev.HorizonDays] = ev
		}

		if err := e.evaluateSnapshot(ctx, s, byHorizon, now, cache, result); err != nil {
			result.Errors++
			e.log.Error().Err(err).
				Str("snapshot_id", s.ID).
				Str("ticker", s.Ticker).
				Msg("Failed to evaluate snapshot")
			continue
		}

		status := FoldStatus(e.horizons, byHorizon)
		switch status {
		case models.StatusPending:
			result.Pending++
		case models.StatusScored:
			result.Scored++
		case models.StatusStale:
			result.Stale++
		}

		if status == s.Status {
			continue
		}
		if err := e.snapshots.UpdateSnapshotStatus(ctx, s.ID, status); err != nil {
			result.Errors++
			e.log.Error().Err(err).Str("snapshot_id", s.ID).Msg("Failed to update snapshot status")
			continue
		}
		e.publishStatus(ctx, s, status)
		s.Status = status
	}
	return nil
}

// evaluateSnapshot resolves every due horizon of s, updating byHorizon in place
func (e *Evaluator) evaluateSnapshot(ctx context.Context, s *models.RecommendationSnapshot, byHorizon map[int]*models.RecommendationEvaluation, now time.Time, cache *PriceCache, result *models.EvaluationRunResult) error {
	entry, _ := s.EntryPrice.Float64()
	generated := models.DayOf(s.GeneratedDate)

	var series []models.PricePoint
	fetched := false

	for _, h := range e.horizons {
		target := generated.AddDate(0, 0, h)
		if now.Before(target) {
			continue
		}
		current := byHorizon[h]
		if current.Settled() {
			continue
		}

		if !fetched {
			days := int(now.Sub(generated).Hours()/24) + 2
			points, err := cache.History(ctx, s.Ticker, days)
			if err != nil {
				// Transient: the next run retries.
				result.PriceErrors++
				e.log.Warn().Err(err).
					Str("ticker", s.Ticker).
					Str("snapshot_id", s.ID).
					Msg("Price history unavailable, leaving horizons pending")
				return nil
			}
			series = points
			fetched = true
		}

		point, found := FirstPriceOnOrAfter(series, target)
		if found && point.Price.IsPositive() {
			exit, _ := point.Price.Float64()
			ret := CalculateReturnPct(s.Action, entry, exit)
			win := IsWinningOutcome(s.Action, ret)
			ev := &models.RecommendationEvaluation{
				SnapshotID:  s.ID,
				HorizonDays: h,
				TargetDate:  target,
				EvaluatedAt: now,
				ExitPrice:   decimal.NewNullDecimal(point.Price),
				ReturnPct:   &ret,
				IsWin:       &win,
				DataQuality: models.DataQualityOK,
			}
			written, err := e.evaluations.UpsertEvaluation(ctx, ev)
			if err != nil {
				return err
			}
			if written {
				result.EvaluationsRecorded++
			}
			byHorizon[h] = ev
			continue
		}

		if now.Sub(target) <= GracePeriod {
			continue
		}
		if current != nil && current.DataQuality == models.DataQualityMissing {
			continue
		}

		ev := &models.RecommendationEvaluation{
			SnapshotID:  s.ID,
			HorizonDays: h,
			TargetDate:  target,
			EvaluatedAt: now,
			DataQuality: models.DataQualityMissing,
		}
		written, err := e.evaluations.UpsertEvaluation(ctx, ev)
		if err != nil {
			return err
		}
		if written {
			result.EvaluationsMissing++
			byHorizon[h] = ev
		}
		e.log.Debug().
			Str("snapshot_id", s.ID).
			Str("ticker", s.Ticker).
			Int("horizon_days", h).
			Msg("No exit price after grace period, marked missing")
	}
	return nil
}

func (e *Evaluator) publishStatus(ctx context.Context, s *models.RecommendationSnapshot, status string) {
	if e.publisher == nil {
		return
	}
	change := models.StatusChange{
		SnapshotID: s.ID,
		UserID:     s.UserID,
		Ticker:     s.Ticker,
		From:       s.Status,
		To:         status,
	}
	if err := e.publisher.PublishStatusChanged(ctx, change); err != nil {
		e.log.Warn().Err(err).Str("snapshot_id", s.ID).Msg("Failed to publish status change")
	}
}
