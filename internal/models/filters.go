package models

import "time"

// Outcome result filter values
const (
	ResultWin     = "win"
	ResultLoss    = "loss"
	ResultPending = "pending"
)

// DateRange bounds snapshots by generated date, both ends inclusive.
// Nil ends are open.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Valid reports whether From is not after To
func (r DateRange) Valid() bool {
	if r.From == nil || r.To == nil {
		return true
	}
	return !r.From.After(*r.To)
}

// OutcomeFilter selects snapshots for the outcome listing
type OutcomeFilter struct {
	Ticker  string    `json:"ticker,omitempty" validate:"omitempty,max=20"`
	Action  string    `json:"action,omitempty" validate:"omitempty,oneof=buy sell hold"`
	Horizon int       `json:"horizon" validate:"gte=1"`
	Result  string    `json:"result,omitempty" validate:"omitempty,oneof=win loss pending"`
	Page    int       `json:"page" validate:"gte=1"`
	Limit   int       `json:"limit" validate:"gte=1,lte=100"`
	Range   DateRange `json:"range"`
}

// Offset returns the row offset of the requested page
func (f OutcomeFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
