package models

import "time"

// Event type constants
const (
	EventRecommendationGenerated = "RECOMMENDATION_GENERATED"
	EventEvaluationRunCompleted  = "EVALUATION_RUN_COMPLETED"
	EventSnapshotStatusChanged   = "SNAPSHOT_STATUS_CHANGED"
)

// RecommendationEvent is published by the recommendation provider whenever it
// generates a new recommendation
type RecommendationEvent struct {
	EventType     string             `json:"event_type"`
	Source        string             `json:"source"`
	SchemaVersion string             `json:"schema_version"`
	Timestamp     time.Time          `json:"timestamp"`
	Data          RecommendationData `json:"data"`
}

// RecommendationData contains the recommendation payload. Prices are strings
// to avoid float rounding on the wire.
type RecommendationData struct {
	RecommendationID string  `json:"recommendation_id"`
	UserID           string  `json:"user_id"`
	Ticker           string  `json:"ticker"`
	Action           string  `json:"action"`
	Confidence       float64 `json:"confidence"`
	HoldingID        string  `json:"holding_id,omitempty"`
	IdeaID           string  `json:"idea_id,omitempty"`
	EntryPrice       string  `json:"entry_price,omitempty"`
	Currency         string  `json:"currency,omitempty"`
	RiskLevel        string  `json:"risk_level,omitempty"`
	GeneratedAt      string  `json:"generated_at,omitempty"`
}

// PerformanceEvent is published after evaluation activity
type PerformanceEvent struct {
	EventType string               `json:"event_type"`
	Timestamp time.Time            `json:"timestamp"`
	Run       *EvaluationRunResult `json:"run,omitempty"`
	Status    *StatusChange        `json:"status,omitempty"`
}

// StatusChange describes a snapshot moving between statuses
type StatusChange struct {
	SnapshotID string `json:"snapshot_id"`
	UserID     string `json:"user_id"`
	Ticker     string `json:"ticker"`
	From       string `json:"from"`
	To         string `json:"to"`
}
