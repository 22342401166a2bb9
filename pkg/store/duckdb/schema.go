package duckdb

import (
	"context"
	"fmt"
)

// CreateCandlesTable creates the raw kline table
const CreateCandlesTable = `
CREATE TABLE IF NOT EXISTS candles (
    symbol VARCHAR NOT NULL,
    timeframe VARCHAR NOT NULL,
    open_time TIMESTAMP NOT NULL,
    close_time TIMESTAMP,
    open DOUBLE,
    high DOUBLE,
    low DOUBLE,
    close DOUBLE,
    volume DOUBLE,
    trades BIGINT,
    vwap DOUBLE,
    PRIMARY KEY (symbol, timeframe, open_time)
);
`

// CreateObservationsTable stores series in long format, one row per field
const CreateObservationsTable = `
CREATE TABLE IF NOT EXISTS observations (
    series VARCHAR NOT NULL,
    ts TIMESTAMP NOT NULL,
    field_idx INTEGER NOT NULL,
    field VARCHAR NOT NULL,
    value DOUBLE,
    run_at TIMESTAMP NOT NULL,
    PRIMARY KEY (series, ts, field)
);
`

// CreateScalerParamsTable stores the fitted scaler per series
const CreateScalerParamsTable = `
CREATE TABLE IF NOT EXISTS scaler_params (
    series VARCHAR PRIMARY KEY,
    kind VARCHAR NOT NULL,
    params VARCHAR NOT NULL,
    fitted_at TIMESTAMP NOT NULL
);
`

// CreateSamplesTable indexes prepared windows
const CreateSamplesTable = `
CREATE TABLE IF NOT EXISTS samples (
    sample_id VARCHAR PRIMARY KEY,
    series VARCHAR NOT NULL,
    split VARCHAR NOT NULL,
    start_idx INTEGER NOT NULL,
    t_end TIMESTAMP NOT NULL,
    seq_length INTEGER NOT NULL,
    target VARCHAR NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_samples_t_end ON samples(t_end);
`

// CreateBaselineMetricsTable caches persistence-forecast metrics
const CreateBaselineMetricsTable = `
CREATE TABLE IF NOT EXISTS baseline_metrics (
    series VARCHAR NOT NULL,
    split VARCHAR NOT NULL,
    count INTEGER NOT NULL,
    mae DOUBLE,
    rmse DOUBLE,
    p10 DOUBLE,
    p50 DOUBLE,
    p90 DOUBLE,
    PRIMARY KEY (series, split)
);
`

// InitializeSchema creates all required tables
func InitializeSchema(ctx context.Context, c *Client) error {
	schemas := []string{
		CreateCandlesTable,
		CreateObservationsTable,
		CreateScalerParamsTable,
		CreateSamplesTable,
		CreateBaselineMetricsTable,
	}

	for _, schema := range schemas {
		if err := c.Exec(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// DropAllTables drops all tables (use with caution)
func DropAllTables(ctx context.Context, c *Client) error {
	tables := []string{"baseline_metrics", "samples", "scaler_params", "observations", "candles"}
	for _, table := range tables {
		if err := c.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
