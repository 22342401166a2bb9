package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tunogya/seqprep/pkg/model"
)

const upsertCandle = `
	INSERT INTO candles (symbol, timeframe, open_time, close_time, open, high, low, close, volume, trades, vwap)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, timeframe, open_time) DO UPDATE SET
		close_time = EXCLUDED.close_time,
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		trades = EXCLUDED.trades,
		vwap = EXCLUDED.vwap
`

const selectCandle = `SELECT symbol, timeframe, open_time, close_time, open, high, low, close, volume, trades, vwap FROM candles`

// CandleRepo handles raw candle persistence
type CandleRepo struct {
	client *Client
}

// NewCandleRepo creates a new candle repository
func NewCandleRepo(client *Client) *CandleRepo {
	return &CandleRepo{client: client}
}

// InsertBatch upserts candles in a transaction
func (r *CandleRepo) InsertBatch(ctx context.Context, candles []model.Candle) error {
	return batch(ctx, r.client, upsertCandle, candles, func(stmt *sql.Stmt, c model.Candle) error {
		_, err := stmt.ExecContext(ctx,
			c.Symbol, c.Timeframe, c.OpenTime, c.CloseTime,
			c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades, c.VWAP,
		)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
		return nil
	})
}

// GetByTimeRange retrieves candles with open time in [start, end], oldest first
func (r *CandleRepo) GetByTimeRange(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]model.Candle, error) {
	rows, err := r.client.Query(ctx,
		selectCandle+` WHERE symbol = ? AND timeframe = ? AND open_time >= ? AND open_time <= ? ORDER BY open_time ASC`,
		symbol, timeframe, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetLatest retrieves the most recent N candles, oldest first
func (r *CandleRepo) GetLatest(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	rows, err := r.client.Query(ctx,
		selectCandle+` WHERE symbol = ? AND timeframe = ? ORDER BY open_time DESC LIMIT ?`,
		symbol, timeframe, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// Count returns the total number of candles for a symbol/timeframe
func (r *CandleRepo) Count(ctx context.Context, symbol, timeframe string) (int64, error) {
	var count int64
	row := r.client.QueryRow(ctx,
		"SELECT COUNT(*) FROM candles WHERE symbol = ? AND timeframe = ?",
		symbol, timeframe,
	)
	err := row.Scan(&count)
	return count, err
}

func scanCandles(rows *sql.Rows) ([]model.Candle, error) {
	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var closeTime sql.NullTime
		var trades sql.NullInt64
		var vwap sql.NullFloat64

		err := rows.Scan(
			&c.Symbol, &c.Timeframe, &c.OpenTime, &closeTime,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &trades, &vwap,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}

		c.CloseTime = closeTime.Time
		c.Trades = trades.Int64
		c.VWAP = vwap.Float64
		candles = append(candles, c)
	}
	return candles, rows.Err()
}
