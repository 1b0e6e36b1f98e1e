package models

import "time"

// BackfillResult counts what a backfill pass did
type BackfillResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// EvaluationRunResult holds the counters of one evaluation invocation
type EvaluationRunResult struct {
	Scope               string         `json:"scope"`
	UsersProcessed      int            `json:"users_processed"`
	SnapshotsChecked    int            `json:"snapshots_checked"`
	EvaluationsRecorded int            `json:"evaluations_recorded"`
	EvaluationsMissing  int            `json:"evaluations_missing"`
	Pending             int            `json:"pending"`
	Scored              int            `json:"scored"`
	Stale               int            `json:"stale"`
	PriceErrors         int            `json:"price_errors"`
	Errors              int            `json:"errors"`
	Backfill            BackfillResult `json:"backfill"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
	Success             bool           `json:"success"`
}

// Merge adds the counters of other into r
func (r *EvaluationRunResult) Merge(other *EvaluationRunResult) {
	r.UsersProcessed += other.UsersProcessed
	r.SnapshotsChecked += other.SnapshotsChecked
	r.EvaluationsRecorded += other.EvaluationsRecorded
	r.EvaluationsMissing += other.EvaluationsMissing
	r.Pending += other.Pending
	r.Scored += other.Scored
	r.Stale += other.Stale
	r.PriceErrors += other.PriceErrors
	r.Errors += other.Errors
	r.Backfill.Created += other.Backfill.Created
	r.Backfill.Skipped += other.Backfill.Skipped
}

// StatusCounts tallies snapshots by status
type StatusCounts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Scored  int `json:"scored"`
	Stale   int `json:"stale"`
}

// OutcomeStats is the shared {count, winRate, avgReturn, medianReturn} block.
// WinRate is a percentage; AvgReturn and MedianReturn are nil for empty groups.
type OutcomeStats struct {
	Count        int      `json:"count"`
	WinRate      float64  `json:"win_rate"`
	AvgReturn    *float64 `json:"avg_return"`
	MedianReturn *float64 `json:"median_return"`
}

// HorizonStats are the outcome statistics at one horizon
type HorizonStats struct {
	HorizonDays int `json:"horizon_days"`
	OutcomeStats
}

// CalibrationBucket compares stated confidence with realized win rate
type CalibrationBucket struct {
	Bucket        string   `json:"bucket"`
	AvgConfidence *float64 `json:"avg_confidence"`
	OutcomeStats
}

// DataQualityCounts tallies evaluations by data quality
type DataQualityCounts struct {
	OK      int `json:"ok"`
	Missing int `json:"missing"`
}

// Overview is the summary payload of a user's recommendation performance
type Overview struct {
	Snapshots   StatusCounts        `json:"snapshots"`
	Horizons    []HorizonStats      `json:"horizons"`
	Calibration []CalibrationBucket `json:"calibration"`
	DataQuality DataQualityCounts   `json:"data_quality"`
}

// GroupStats are outcome statistics for one scoreboard group
type GroupStats struct {
	Key string `json:"key"`
	OutcomeStats
}

// Scoreboard slices outcomes at one horizon by action, risk and confidence
type Scoreboard struct {
	HorizonDays  int          `json:"horizon_days"`
	ByAction     []GroupStats `json:"by_action"`
	ByRisk       []GroupStats `json:"by_risk"`
	ByConfidence []GroupStats `json:"by_confidence"`
}

// Outcome is a snapshot with its evaluations keyed by horizon
type Outcome struct {
	*RecommendationSnapshot
	Evaluations map[int]*RecommendationEvaluation `json:"evaluations"`
}

// OutcomePage is one page of the outcome listing
type OutcomePage struct {
	Items      []*Outcome `json:"items"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	Total      int        `json:"total"`
	TotalPages int        `json:"total_pages"`
}
