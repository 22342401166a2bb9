package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tunogya/seqprep/pkg/baseline"
)

// MetricsRepo caches baseline metrics per series and split
type MetricsRepo struct {
	client *Client
}

// NewMetricsRepo creates a new metrics repository
func NewMetricsRepo(client *Client) *MetricsRepo {
	return &MetricsRepo{client: client}
}

// Upsert stores metrics for a series, replacing earlier rows of the same split
func (r *MetricsRepo) Upsert(ctx context.Context, series string, metrics []baseline.Metrics) error {
	return batch(ctx, r.client, `
		INSERT INTO baseline_metrics (series, split, count, mae, rmse, p10, p50, p90)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (series, split) DO UPDATE SET
			count = EXCLUDED.count,
			mae = EXCLUDED.mae,
			rmse = EXCLUDED.rmse,
			p10 = EXCLUDED.p10,
			p50 = EXCLUDED.p50,
			p90 = EXCLUDED.p90
	`, metrics, func(stmt *sql.Stmt, m baseline.Metrics) error {
		_, err := stmt.ExecContext(ctx, series, m.Split, m.Count, m.MAE, m.RMSE, m.P10, m.P50, m.P90)
		if err != nil {
			return fmt.Errorf("failed to insert metrics: %w", err)
		}
		return nil
	})
}

// List returns the metrics of a series in train, val, test order
func (r *MetricsRepo) List(ctx context.Context, series string) ([]baseline.Metrics, error) {
	rows, err := r.client.Query(ctx, `
		SELECT split, count, mae, rmse, p10, p50, p90
		FROM baseline_metrics
		WHERE series = ?
		ORDER BY CASE split WHEN 'train' THEN 0 WHEN 'val' THEN 1 WHEN 'test' THEN 2 ELSE 3 END
	`, series)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var out []baseline.Metrics
	for rows.Next() {
		var m baseline.Metrics
		if err := rows.Scan(&m.Split, &m.Count, &m.MAE, &m.RMSE, &m.P10, &m.P50, &m.P90); err != nil {
			return nil, fmt.Errorf("failed to scan metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
