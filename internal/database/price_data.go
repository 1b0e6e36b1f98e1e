package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

const priceDataColumns = `id, symbol, date, open, high, low, close, volume, vwap, created_at`

// CreatePriceDataBatch upserts daily bars in a single transaction
func (db *DB) CreatePriceDataBatch(ctx context.Context, prices []*models.PriceDataDaily) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_data_daily (symbol, date, open, high, low, close, volume, vwap, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			vwap = EXCLUDED.vwap
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range prices {
		symbol := strings.ToUpper(p.Symbol)
		_, err := stmt.ExecContext(ctx,
			symbol, p.Date.Format(dateLayout), p.Open, p.High, p.Low, p.Close, p.Volume, nullDecimal(p.VWAP), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert price data for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPriceDataRange retrieves price data for a symbol within a date range, oldest first
func (db *DB) GetPriceDataRange(ctx context.Context, symbol string, startDate, endDate time.Time) ([]*models.PriceDataDaily, error) {
	query := `
		SELECT ` + priceDataColumns + `
		FROM price_data_daily
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.QueryContext(ctx, query,
		strings.ToUpper(symbol), startDate.Format(dateLayout), endDate.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get price data range: %w", err)
	}
	defer rows.Close()

	var prices []*models.PriceDataDaily
	for rows.Next() {
		p, err := scanPriceData(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price data: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price data: %w", err)
	}
	return prices, nil
}

// GetLatestPriceData retrieves the most recent price data for a symbol. It
// returns nil without error when the symbol has no data.
func (db *DB) GetLatestPriceData(ctx context.Context, symbol string) (*models.PriceDataDaily, error) {
	query := `
		SELECT ` + priceDataColumns + `
		FROM price_data_daily
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT 1
	`
	p, err := scanPriceData(db.conn.QueryRowContext(ctx, query, strings.ToUpper(symbol)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price data: %w", err)
	}
	return p, nil
}

func scanPriceData(row rowScanner) (*models.PriceDataDaily, error) {
	var p models.PriceDataDaily
	var open, high, low, vwap sql.NullString

	err := row.Scan(
		&p.ID, &p.Symbol, &p.Date, &open, &high, &low, &p.Close, &p.Volume, &vwap, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if open.Valid {
		p.Open, _ = decimal.NewFromString(open.String)
	}
	if high.Valid {
		p.High, _ = decimal.NewFromString(high.String)
	}
	if low.Valid {
		p.Low, _ = decimal.NewFromString(low.String)
	}
	if vwap.Valid {
		p.VWAP, _ = decimal.NewFromString(vwap.String)
	}
	p.Date = models.DayOf(p.Date)
	return &p, nil
}

func nullDecimal(d decimal.Decimal) interface{} {
	if d.IsZero() {
		return nil
	}
	return d
}
