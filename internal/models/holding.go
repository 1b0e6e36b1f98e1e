package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a position in a user's portfolio, read for entry price resolution
type Holding struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Ticker       string          `json:"ticker"`
	Quantity     decimal.Decimal `json:"quantity"`
	CurrentPrice decimal.Decimal `json:"current_price,omitempty"`
	Currency     string          `json:"currency,omitempty"`
	RiskLevel    string          `json:"risk_level,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Idea is a generated investment idea. The most recent idea for a ticker
// supplies price, currency and risk metadata during backfill.
type Idea struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Ticker       string          `json:"ticker"`
	CurrentPrice decimal.Decimal `json:"current_price,omitempty"`
	Currency     string          `json:"currency,omitempty"`
	RiskLevel    string          `json:"risk_level,omitempty"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// Recommendation is the read-only view of an AI recommendation
type Recommendation struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Ticker          string    `json:"ticker"`
	Action          string    `json:"action"`
	Confidence      float64   `json:"confidence"`
	LinkedHoldingID *string   `json:"linked_holding_id,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// EntryHint carries price metadata already known when a recommendation is
// recorded at generation time. Zero values mean "resolve it".
type EntryHint struct {
	Price     decimal.Decimal
	Currency  string
	RiskLevel string
	IdeaID    *string
}
