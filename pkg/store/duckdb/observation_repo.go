package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tunogya/seqprep/pkg/model"
)

const upsertObservation = `
	INSERT INTO observations (series, ts, field_idx, field, value, run_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (series, ts, field) DO UPDATE SET
		field_idx = EXCLUDED.field_idx,
		value = EXCLUDED.value,
		run_at = EXCLUDED.run_at
`

const deleteObservations = `DELETE FROM observations WHERE series = ?`

// ObservationRepo persists raw series values in long format
type ObservationRepo struct {
	client *Client
}

// NewObservationRepo creates a new observation repository
func NewObservationRepo(client *Client) *ObservationRepo {
	return &ObservationRepo{client: client}
}

type observation struct {
	ts    time.Time
	idx   int
	field string
	value float64
}

// ReplaceSeries stores s under s.Name, removing every value a previous
// version of the series left behind, in one transaction
func (r *ObservationRepo) ReplaceSeries(ctx context.Context, s *model.Series) error {
	if err := s.Validate(); err != nil {
		return err
	}

	obs := make([]observation, 0, s.Len()*len(s.Fields))
	for i, row := range s.Values {
		for j, v := range row {
			obs = append(obs, observation{ts: s.Timestamps[i], idx: j, field: s.Fields[j], value: v})
		}
	}

	runAt := time.Now().UTC().Truncate(time.Microsecond)

	return r.client.inTx(ctx, func(tx *sql.Tx) error {
		var latest sql.NullTime
		if err := tx.QueryRowContext(ctx, "SELECT MAX(run_at) FROM observations WHERE series = ?", s.Name).Scan(&latest); err != nil {
			return fmt.Errorf("failed to read latest run: %w", err)
		}
		if latest.Valid && !runAt.After(latest.Time) {
			runAt = latest.Time.Add(time.Microsecond)
		}

		err := insertAll(ctx, tx, upsertObservation, obs, func(stmt *sql.Stmt, o observation) error {
			if _, err := stmt.ExecContext(ctx, s.Name, o.ts, o.idx, o.field, o.value, runAt); err != nil {
				return fmt.Errorf("failed to insert observation: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		// rows this call did not touch belong to an earlier version
		if _, err := tx.ExecContext(ctx, "DELETE FROM observations WHERE series = ? AND run_at <> ?", s.Name, runAt); err != nil {
			return fmt.Errorf("failed to delete stale observations: %w", err)
		}
		return nil
	})
}

// DeleteSeries removes every stored value of a series
func (r *ObservationRepo) DeleteSeries(ctx context.Context, name string) error {
	if err := r.client.Exec(ctx, deleteObservations, name); err != nil {
		return fmt.Errorf("failed to delete observations: %w", err)
	}
	return nil
}

// GetSeries rebuilds a stored series, oldest first, fields in insertion order
func (r *ObservationRepo) GetSeries(ctx context.Context, name string) (*model.Series, error) {
	rows, err := r.client.Query(ctx, `
		SELECT ts, field_idx, field, value
		FROM observations
		WHERE series = ?
		ORDER BY ts ASC, field_idx ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	s := &model.Series{Name: name}
	var row []float64
	for rows.Next() {
		var o observation
		if err := rows.Scan(&o.ts, &o.idx, &o.field, &o.value); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}

		if len(s.Timestamps) == 0 || !o.ts.Equal(s.Timestamps[len(s.Timestamps)-1]) {
			if row != nil {
				s.Values = append(s.Values, row)
			}
			s.Timestamps = append(s.Timestamps, o.ts)
			row = make([]float64, 0, len(s.Fields))
		}
		if len(s.Timestamps) == 1 {
			s.Fields = append(s.Fields, o.field)
		}
		row = append(row, o.value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if row != nil {
		s.Values = append(s.Values, row)
	}

	if s.Len() == 0 {
		return nil, fmt.Errorf("%w: series %q", ErrNotFound, name)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("stored series %q is inconsistent: %w", name, err)
	}
	return s, nil
}

// Count returns the number of distinct timestamps stored for a series
func (r *ObservationRepo) Count(ctx context.Context, name string) (int64, error) {
	var count int64
	row := r.client.QueryRow(ctx, "SELECT COUNT(DISTINCT ts) FROM observations WHERE series = ?", name)
	err := row.Scan(&count)
	return count, err
}
