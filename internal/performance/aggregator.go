package performance

import (
	"math"
	"sort"

	"github.com/trogers1052/recommendation-performance/internal/models"
)

// RiskUnknown groups scoreboard rows without a risk level
const RiskUnknown = "unknown"

// BuildOverview summarizes loaded evaluation records. Every horizon appears in
// the result, empty ones with zero counts.
func BuildOverview(counts models.StatusCounts, records []*models.EvaluationRecord, horizons []int) *models.Overview {
	overview := &models.Overview{
		Snapshots:   counts,
		Horizons:    make([]models.HorizonStats, 0, len(horizons)),
		Calibration: []models.CalibrationBucket{},
	}

	byHorizon := make(map[int]*outcomeAccumulator, len(horizons))
	for _, h := range horizons {
		byHorizon[h] = &outcomeAccumulator{}
	}

	type calibration struct {
		acc         outcomeAccumulator
		confidences []float64
	}
	buckets := make(map[string]*calibration)

	for _, rec := range records {
		switch rec.DataQuality {
		case models.DataQualityOK:
			overview.DataQuality.OK++
		case models.DataQualityMissing:
			overview.DataQuality.Missing++
		}
		if !settled(rec) {
			continue
		}

		acc, ok := byHorizon[rec.HorizonDays]
		if !ok {
			continue
		}
		acc.add(rec)

		if rec.HorizonDays != CalibrationHorizon {
			continue
		}
		b, ok := buckets[rec.ConfidenceBucket]
		if !ok {
			b = &calibration{}
			buckets[rec.ConfidenceBucket] = b
		}
		b.acc.add(rec)
		b.confidences = append(b.confidences, rec.Confidence)
	}

	for _, h := range horizons {
		overview.Horizons = append(overview.Horizons, models.HorizonStats{
			HorizonDays:  h,
			OutcomeStats: byHorizon[h].stats(),
		})
	}

	for label, b := range buckets {
		overview.Calibration = append(overview.Calibration, models.CalibrationBucket{
			Bucket:        label,
			AvgConfidence: mean(b.confidences),
			OutcomeStats:  b.acc.stats(),
		})
	}
	sort.Slice(overview.Calibration, func(i, j int) bool {
		fi := BucketFloor(overview.Calibration[i].Bucket)
		fj := BucketFloor(overview.Calibration[j].Bucket)
		if fi != fj {
			return fi < fj
		}
		return overview.Calibration[i].Bucket < overview.Calibration[j].Bucket
	})

	return overview
}

// BuildScoreboard groups the settled records of one horizon by action, risk
// level and confidence bucket
func BuildScoreboard(records []*models.EvaluationRecord, horizon int) *models.Scoreboard {
	byAction := make(map[string]*outcomeAccumulator)
	byRisk := make(map[string]*outcomeAccumulator)
	byConfidence := make(map[string]*outcomeAccumulator)

	for _, rec := range records {
		if rec.HorizonDays != horizon || !settled(rec) {
			continue
		}
		risk := rec.RiskLevel
		if risk == "" {
			risk = RiskUnknown
		}
		accumulate(byAction, rec.Action, rec)
		accumulate(byRisk, risk, rec)
		accumulate(byConfidence, rec.ConfidenceBucket, rec)
	}

	return &models.Scoreboard{
		HorizonDays:  horizon,
		ByAction:     rankGroups(byAction),
		ByRisk:       rankGroups(byRisk),
		ByConfidence: rankGroups(byConfidence),
	}
}

// BuildOutcomePage attaches evaluations to a page of snapshots
func BuildOutcomePage(snapshots []*models.RecommendationSnapshot, evaluations map[string][]*models.RecommendationEvaluation, total int, filter models.OutcomeFilter) *models.OutcomePage {
	page := &models.OutcomePage{
		Items: make([]*models.Outcome, 0, len(snapshots)),
		Page:  filter.Page,
		Limit: filter.Limit,
		Total: total,
	}
	if filter.Limit > 0 {
		page.TotalPages = int(math.Ceil(float64(total) / float64(filter.Limit)))
	}

	for _, s := range snapshots {
		item := &models.Outcome{
			RecommendationSnapshot: s,
			Evaluations:            make(map[int]*models.RecommendationEvaluation),
		}
		for _, e := range evaluations[s.ID] {
			item.Evaluations[e.HorizonDays] = e
		}
		page.Items = append(page.Items, item)
	}
	return page
}

// OutcomeResult classifies a snapshot's evaluation at one horizon as win,
// loss or pending
func OutcomeResult(e *models.RecommendationEvaluation) string {
	if e == nil || e.IsWin == nil || e.DataQuality != models.DataQualityOK {
		return models.ResultPending
	}
	if *e.IsWin {
		return models.ResultWin
	}
	return models.ResultLoss
}

func accumulate(groups map[string]*outcomeAccumulator, key string, rec *models.EvaluationRecord) {
	acc, ok := groups[key]
	if !ok {
		acc = &outcomeAccumulator{}
		groups[key] = acc
	}
	acc.add(rec)
}

// rankGroups orders groups by win rate, then average return, then count,
// descending. Key breaks the remaining ties.
func rankGroups(groups map[string]*outcomeAccumulator) []models.GroupStats {
	out := make([]models.GroupStats, 0, len(groups))
	for key, acc := range groups {
		out = append(out, models.GroupStats{Key: key, OutcomeStats: acc.stats()})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}
		ra, rb := valueOr(a.AvgReturn), valueOr(b.AvgReturn)
		if ra != rb {
			return ra > rb
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Key < b.Key
	})
	return out
}

func valueOr(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}
