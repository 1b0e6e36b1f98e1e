package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

const snapshotColumns = `
	s.id, s.user_id, s.recommendation_id, s.holding_id, s.idea_id, s.ticker, s.action,
	s.confidence, s.confidence_bucket, s.entry_price, s.currency, s.risk_level,
	s.generated_at, s.generated_date, s.status, s.created_at, s.updated_at`

// CreateSnapshot inserts a snapshot. It reports false without error when a
// snapshot for the same recommendation already exists.
func (db *DB) CreateSnapshot(ctx context.Context, s *models.RecommendationSnapshot) (bool, error) {
	query := `
		INSERT INTO recommendation_snapshots (
			id, user_id, recommendation_id, holding_id, idea_id, ticker, action,
			confidence, confidence_bucket, entry_price, currency, risk_level,
			generated_at, generated_date, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (recommendation_id) WHERE recommendation_id IS NOT NULL DO NOTHING
		RETURNING id
	`
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = models.StatusPending
	}
	now := time.Now().UTC()

	var id string
	err := db.conn.QueryRowContext(ctx, query,
		s.ID, s.UserID, s.RecommendationID, s.HoldingID, s.IdeaID, s.Ticker, s.Action,
		s.Confidence, s.ConfidenceBucket, s.EntryPrice, s.Currency, nullString(s.RiskLevel),
		s.GeneratedAt, s.GeneratedDate.Format(dateLayout), s.Status, now, now,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create snapshot: %w", err)
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	return true, nil
}

// GetSnapshotByID retrieves a snapshot by ID
func (db *DB) GetSnapshotByID(ctx context.Context, id string) (*models.RecommendationSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM recommendation_snapshots s WHERE s.id = $1`

	s, err := scanSnapshot(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return s, nil
}

// ListSnapshotsByStatus retrieves a user's snapshots in any of the given statuses,
// oldest first
func (db *DB) ListSnapshotsByStatus(ctx context.Context, userID string, statuses []string) ([]*models.RecommendationSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM recommendation_snapshots s
		WHERE s.user_id = $1 AND s.status = ANY($2)
		ORDER BY s.generated_at ASC, s.id ASC
	`
	return db.scanSnapshots(db.conn.QueryContext(ctx, query, userID, pq.Array(statuses)))
}

// ListOpenSnapshots retrieves a user's snapshots that still need evaluation
func (db *DB) ListOpenSnapshots(ctx context.Context, userID string) ([]*models.RecommendationSnapshot, error) {
	return db.ListSnapshotsByStatus(ctx, userID, []string{models.StatusPending, models.StatusStale})
}

// UpdateSnapshotStatus sets the status of a snapshot
func (db *DB) UpdateSnapshotStatus(ctx context.Context, id, status string) error {
	query := `UPDATE recommendation_snapshots SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := db.conn.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update snapshot status: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("snapshot not found: %s", id)
	}
	return nil
}

// ListUserIDsForEvaluation returns every user with open snapshots or with
// recommendations that have not been snapshotted yet
func (db *DB) ListUserIDsForEvaluation(ctx context.Context) ([]string, error) {
	query := `
		SELECT user_id FROM recommendation_snapshots WHERE status IN ('pending', 'stale')
		UNION
		SELECT r.user_id FROM recommendations r
		WHERE NOT EXISTS (SELECT 1 FROM recommendation_snapshots s WHERE s.recommendation_id = r.id)
		ORDER BY 1
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users for evaluation: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// CountSnapshotsByStatus tallies a user's snapshots by status
func (db *DB) CountSnapshotsByStatus(ctx context.Context, userID string, r models.DateRange) (models.StatusCounts, error) {
	where, args := snapshotRangeWhere(userID, r)
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE s.status = 'pending'),
			COUNT(*) FILTER (WHERE s.status = 'scored'),
			COUNT(*) FILTER (WHERE s.status = 'stale')
		FROM recommendation_snapshots s
		WHERE ` + where

	var counts models.StatusCounts
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&counts.Total, &counts.Pending, &counts.Scored, &counts.Stale,
	)
	if err != nil {
		return models.StatusCounts{}, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return counts, nil
}

// ListOutcomeSnapshots returns one page of snapshots matching the filter,
// newest first, together with the total number of matches
func (db *DB) ListOutcomeSnapshots(ctx context.Context, userID string, f models.OutcomeFilter) ([]*models.RecommendationSnapshot, int, error) {
	where, args := snapshotRangeWhere(userID, f.Range)

	if f.Ticker != "" {
		args = append(args, "%"+escapeLike(strings.ToUpper(f.Ticker))+"%")
		where += " AND UPPER(s.ticker) LIKE $" + strconv.Itoa(len(args))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		where += " AND s.action = $" + strconv.Itoa(len(args))
	}
	if f.Result != "" {
		args = append(args, f.Horizon)
		h := "$" + strconv.Itoa(len(args))
		settled := `SELECT 1 FROM recommendation_evaluations e
			WHERE e.snapshot_id = s.id AND e.horizon_days = ` + h + ` AND e.data_quality = 'ok'`
		switch f.Result {
		case models.ResultWin:
			where += " AND EXISTS (" + settled + " AND e.is_win = true)"
		case models.ResultLoss:
			where += " AND EXISTS (" + settled + " AND e.is_win = false)"
		case models.ResultPending:
			where += " AND NOT EXISTS (" + settled + " AND e.is_win IS NOT NULL)"
		}
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM recommendation_snapshots s WHERE ` + where
	if err := db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count outcomes: %w", err)
	}

	args = append(args, f.Limit, f.Offset())
	query := `
		SELECT ` + snapshotColumns + `
		FROM recommendation_snapshots s
		WHERE ` + where + `
		ORDER BY s.generated_at DESC, s.id ASC
		LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	snapshots, err := db.scanSnapshots(db.conn.QueryContext(ctx, query, args...))
	if err != nil {
		return nil, 0, err
	}
	return snapshots, total, nil
}

// snapshotRangeWhere builds the user and generated_date conditions shared by
// the read queries. Conditions reference the snapshot table as "s".
func snapshotRangeWhere(userID string, r models.DateRange) (string, []interface{}) {
	where := "s.user_id = $1"
	args := []interface{}{userID}
	if r.From != nil {
		args = append(args, r.From.Format(dateLayout))
		where += " AND s.generated_date >= $" + strconv.Itoa(len(args))
	}
	if r.To != nil {
		args = append(args, r.To.Format(dateLayout))
		where += " AND s.generated_date <= $" + strconv.Itoa(len(args))
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*models.RecommendationSnapshot, error) {
	var s models.RecommendationSnapshot
	var recommendationID, holdingID, ideaID, riskLevel sql.NullString

	err := row.Scan(
		&s.ID, &s.UserID, &recommendationID, &holdingID, &ideaID, &s.Ticker, &s.Action,
		&s.Confidence, &s.ConfidenceBucket, &s.EntryPrice, &s.Currency, &riskLevel,
		&s.GeneratedAt, &s.GeneratedDate, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if recommendationID.Valid {
		s.RecommendationID = &recommendationID.String
	}
	if holdingID.Valid {
		s.HoldingID = &holdingID.String
	}
	if ideaID.Valid {
		s.IdeaID = &ideaID.String
	}
	if riskLevel.Valid {
		s.RiskLevel = riskLevel.String
	}
	s.GeneratedDate = models.DayOf(s.GeneratedDate)
	return &s, nil
}

func (db *DB) scanSnapshots(rows *sql.Rows, err error) ([]*models.RecommendationSnapshot, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.RecommendationSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return snapshots, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
