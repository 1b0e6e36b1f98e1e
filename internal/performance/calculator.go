package performance

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/trogers1052/recommendation-performance/internal/models"
)

const (
	// HoldWinThreshold is the largest absolute move, in percentage points, at
	// which a hold recommendation still counts as a win
	HoldWinThreshold = 2.0

	// GracePeriod is how long after a target date a missing price is tolerated
	// before the horizon is recorded as missing
	GracePeriod = 72 * time.Hour

	// CalibrationHorizon is the horizon the calibration table is built from
	CalibrationHorizon = 7
)

// CalculateReturnPct returns the percentage return of a recommendation from
// entry to exit. Sell returns are inverted: a sell is right when the price
// falls. Degenerate prices yield 0.
func CalculateReturnPct(action string, entryPrice, exitPrice float64) float64 {
	if entryPrice <= 0 || math.IsNaN(entryPrice) || math.IsInf(entryPrice, 0) ||
		math.IsNaN(exitPrice) || math.IsInf(exitPrice, 0) {
		return 0
	}

	longReturn := (exitPrice - entryPrice) * 100 / entryPrice
	if action == models.ActionSell {
		return -longReturn
	}
	return longReturn
}

// IsWinningOutcome classifies a return. A hold wins while the price stays
// within HoldWinThreshold; buy and sell win on any positive return.
func IsWinningOutcome(action string, returnPct float64) bool {
	if action == models.ActionHold {
		return math.Abs(returnPct) <= HoldWinThreshold
	}
	return returnPct > 0
}

// ConfidenceBucket maps a confidence to its 10-point bucket label. 100 is a
// bucket of its own.
func ConfidenceBucket(confidence float64) string {
	if math.IsNaN(confidence) || confidence < 0 {
		confidence = 0
	}
	if confidence >= 100 {
		return "100-100"
	}
	floor := int(math.Floor(confidence/10)) * 10
	return fmt.Sprintf("%d-%d", floor, floor+9)
}

// BucketFloor returns the lower bound of a bucket label, or -1 when the label
// is malformed
func BucketFloor(bucket string) int {
	lower, _, ok := strings.Cut(bucket, "-")
	if !ok {
		return -1
	}
	floor, err := strconv.Atoi(lower)
	if err != nil {
		return -1
	}
	return floor
}

// FoldStatus derives a snapshot status from its evaluations keyed by horizon:
// pending until every horizon has a row, then scored or, if any row is not
// ok, stale.
func FoldStatus(horizons []int, evaluations map[int]*models.RecommendationEvaluation) string {
	hasMissing := false
	for _, h := range horizons {
		e, ok := evaluations[h]
		if !ok || e == nil {
			return models.StatusPending
		}
		if e.DataQuality != models.DataQualityOK {
			hasMissing = true
		}
	}
	if hasMissing {
		return models.StatusStale
	}
	return models.StatusScored
}

// NormalizeAction lowercases an action and reports whether it is known
func NormalizeAction(action string) (string, bool) {
	a := strings.ToLower(strings.TrimSpace(action))
	switch a {
	case models.ActionBuy, models.ActionSell, models.ActionHold:
		return a, true
	}
	return a, false
}
