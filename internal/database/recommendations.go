package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// ListRecommendationsWithoutSnapshot retrieves a user's recommendations that
// have no snapshot yet, oldest first
func (db *DB) ListRecommendationsWithoutSnapshot(ctx context.Context, userID string) ([]*models.Recommendation, error) {
	query := `
		SELECT r.id, r.user_id, r.ticker, r.action, r.confidence, r.linked_holding_id, r.generated_at
		FROM recommendations r
		WHERE r.user_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM recommendation_snapshots s WHERE s.recommendation_id = r.id
		  )
		ORDER BY r.generated_at ASC, r.id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*models.Recommendation
	for rows.Next() {
		var r models.Recommendation
		var holdingID sql.NullString

		err := rows.Scan(&r.ID, &r.UserID, &r.Ticker, &r.Action, &r.Confidence, &holdingID, &r.GeneratedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		if holdingID.Valid {
			r.LinkedHoldingID = &holdingID.String
		}
		recs = append(recs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recommendations: %w", err)
	}
	return recs, nil
}

// GetHolding retrieves a user's holding. It returns nil without error when no
// holding matches.
func (db *DB) GetHolding(ctx context.Context, userID, holdingID string) (*models.Holding, error) {
	query := `
		SELECT id, user_id, ticker, quantity, current_price, currency, risk_level, updated_at
		FROM holdings
		WHERE id = $1 AND user_id = $2
	`
	var h models.Holding
	var currentPrice, currency, riskLevel sql.NullString

	err := db.conn.QueryRowContext(ctx, query, holdingID, userID).Scan(
		&h.ID, &h.UserID, &h.Ticker, &h.Quantity, &currentPrice, &currency, &riskLevel, &h.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}

	if currentPrice.Valid {
		h.CurrentPrice, _ = decimal.NewFromString(currentPrice.String)
	}
	if currency.Valid {
		h.Currency = currency.String
	}
	if riskLevel.Valid {
		h.RiskLevel = riskLevel.String
	}
	return &h, nil
}

// GetLatestIdeaByTicker retrieves the most recently generated idea for a
// ticker. It returns nil without error when the user has none.
func (db *DB) GetLatestIdeaByTicker(ctx context.Context, userID, ticker string) (*models.Idea, error) {
	query := `
		SELECT id, user_id, ticker, current_price, currency, risk_level, generated_at
		FROM ideas
		WHERE user_id = $1 AND UPPER(ticker) = UPPER($2)
		ORDER BY generated_at DESC
		LIMIT 1
	`
	var idea models.Idea
	var currentPrice, currency, riskLevel sql.NullString

	err := db.conn.QueryRowContext(ctx, query, userID, ticker).Scan(
		&idea.ID, &idea.UserID, &idea.Ticker, &currentPrice, &currency, &riskLevel, &idea.GeneratedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idea for %s: %w", ticker, err)
	}

	if currentPrice.Valid {
		idea.CurrentPrice, _ = decimal.NewFromString(currentPrice.String)
	}
	if currency.Valid {
		idea.Currency = currency.String
	}
	if riskLevel.Valid {
		idea.RiskLevel = riskLevel.String
	}
	return &idea, nil
}
