package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// UpsertEvaluation writes the evaluation for (snapshot, horizon). A row that
// already has data_quality = 'ok' is never overwritten; in that case written
// is false and e is left unchanged.
func (db *DB) UpsertEvaluation(ctx context.Context, e *models.RecommendationEvaluation) (bool, error) {
	query := `
		INSERT INTO recommendation_evaluations (
			id, snapshot_id, horizon_days, target_date, evaluated_at,
			exit_price, return_pct, is_win, data_quality
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (snapshot_id, horizon_days) DO UPDATE SET
			target_date = EXCLUDED.target_date,
			evaluated_at = EXCLUDED.evaluated_at,
			exit_price = EXCLUDED.exit_price,
			return_pct = EXCLUDED.return_pct,
			is_win = EXCLUDED.is_win,
			data_quality = EXCLUDED.data_quality
		WHERE recommendation_evaluations.data_quality <> 'ok'
		RETURNING id
	`
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}

	var storedID string
	err := db.conn.QueryRowContext(ctx, query,
		id, e.SnapshotID, e.HorizonDays, e.TargetDate.Format(dateLayout), e.EvaluatedAt,
		e.ExitPrice, e.ReturnPct, e.IsWin, e.DataQuality,
	).Scan(&storedID)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert evaluation for snapshot %s horizon %d: %w", e.SnapshotID, e.HorizonDays, err)
	}
	e.ID = storedID
	return true, nil
}

// GetEvaluationsBySnapshotIDs loads the evaluations of the given snapshots,
// grouped by snapshot ID
func (db *DB) GetEvaluationsBySnapshotIDs(ctx context.Context, snapshotIDs []string) (map[string][]*models.RecommendationEvaluation, error) {
	result := make(map[string][]*models.RecommendationEvaluation, len(snapshotIDs))
	if len(snapshotIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT id, snapshot_id, horizon_days, target_date, evaluated_at,
		       exit_price, return_pct, is_win, data_quality
		FROM recommendation_evaluations
		WHERE snapshot_id = ANY($1::uuid[])
		ORDER BY snapshot_id, horizon_days
	`
	rows, err := db.conn.QueryContext(ctx, query, pq.Array(snapshotIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.RecommendationEvaluation
		var returnPct sql.NullFloat64
		var isWin sql.NullBool

		err := rows.Scan(
			&e.ID, &e.SnapshotID, &e.HorizonDays, &e.TargetDate, &e.EvaluatedAt,
			&e.ExitPrice, &returnPct, &isWin, &e.DataQuality,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}

		if returnPct.Valid {
			e.ReturnPct = &returnPct.Float64
		}
		if isWin.Valid {
			e.IsWin = &isWin.Bool
		}
		e.TargetDate = models.DayOf(e.TargetDate)
		result[e.SnapshotID] = append(result[e.SnapshotID], &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evaluations: %w", err)
	}
	return result, nil
}

// ListEvaluationRecords returns a user's evaluations at the given horizons
// joined with the snapshot attributes used for grouping
func (db *DB) ListEvaluationRecords(ctx context.Context, userID string, horizons []int, r models.DateRange) ([]*models.EvaluationRecord, error) {
	where, args := snapshotRangeWhere(userID, r)
	args = append(args, pq.Array(horizons))
	query := fmt.Sprintf(`
		SELECT s.id, s.ticker, s.action, s.confidence, s.confidence_bucket, s.risk_level,
		       e.horizon_days, e.data_quality, e.return_pct, e.is_win
		FROM recommendation_evaluations e
		JOIN recommendation_snapshots s ON s.id = e.snapshot_id
		WHERE %s AND e.horizon_days = ANY($%d)
		ORDER BY s.generated_at ASC, s.id ASC, e.horizon_days ASC
	`, where, len(args))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation records: %w", err)
	}
	defer rows.Close()

	var records []*models.EvaluationRecord
	for rows.Next() {
		var rec models.EvaluationRecord
		var riskLevel sql.NullString
		var returnPct sql.NullFloat64
		var isWin sql.NullBool

		err := rows.Scan(
			&rec.SnapshotID, &rec.Ticker, &rec.Action, &rec.Confidence, &rec.ConfidenceBucket, &riskLevel,
			&rec.HorizonDays, &rec.DataQuality, &returnPct, &isWin,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation record: %w", err)
		}

		if riskLevel.Valid {
			rec.RiskLevel = riskLevel.String
		}
		if returnPct.Valid {
			rec.ReturnPct = &returnPct.Float64
		}
		if isWin.Valid {
			rec.IsWin = &isWin.Bool
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evaluation records: %w", err)
	}
	return records, nil
}
