package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recommendation action constants
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Snapshot status constants
const (
	StatusPending = "pending"
	StatusScored  = "scored"
	StatusStale   = "stale"
)

// Evaluation data quality constants
const (
	DataQualityOK      = "ok"
	DataQualityMissing = "missing"
)

// RecommendationSnapshot is the immutable point-in-time record of a recommendation.
// Status is the only field that changes after creation.
type RecommendationSnapshot struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	RecommendationID *string         `json:"recommendation_id,omitempty"`
	HoldingID        *string         `json:"holding_id,omitempty"`
	IdeaID           *string         `json:"idea_id,omitempty"`
	Ticker           string          `json:"ticker"`
	Action           string          `json:"action"`
	Confidence       float64         `json:"confidence"`
	ConfidenceBucket string          `json:"confidence_bucket"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	Currency         string          `json:"currency"`
	RiskLevel        string          `json:"risk_level,omitempty"`
	GeneratedAt      time.Time       `json:"generated_at"`
	GeneratedDate    time.Time       `json:"generated_date"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// RecommendationEvaluation is the outcome of one snapshot at one horizon.
// (SnapshotID, HorizonDays) is unique.
type RecommendationEvaluation struct {
	ID          string              `json:"id"`
	SnapshotID  string              `json:"snapshot_id"`
	HorizonDays int                 `json:"horizon_days"`
	TargetDate  time.Time           `json:"target_date"`
	EvaluatedAt time.Time           `json:"evaluated_at"`
	ExitPrice   decimal.NullDecimal `json:"exit_price"`
	ReturnPct   *float64            `json:"return_pct"`
	IsWin       *bool               `json:"is_win"`
	DataQuality string              `json:"data_quality"`
}

// Settled reports whether the evaluation holds a final, known outcome.
func (e *RecommendationEvaluation) Settled() bool {
	return e != nil && e.DataQuality == DataQualityOK && e.ReturnPct != nil
}

// EvaluationRecord is an evaluation joined with the snapshot fields the
// aggregator groups by.
type EvaluationRecord struct {
	SnapshotID       string
	Ticker           string
	Action           string
	Confidence       float64
	ConfidenceBucket string
	RiskLevel        string
	HorizonDays      int
	DataQuality      string
	ReturnPct        *float64
	IsWin            *bool
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
