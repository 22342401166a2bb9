package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tunogya/seqprep/pkg/model"
)

const upsertSample = `
	INSERT INTO samples (sample_id, series, split, start_idx, t_end, seq_length, target, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (sample_id) DO UPDATE SET
		split = EXCLUDED.split,
		start_idx = EXCLUDED.start_idx,
		seq_length = EXCLUDED.seq_length,
		target = EXCLUDED.target,
		created_at = EXCLUDED.created_at
`

// ErrStaleRun is returned when samples of a newer run are already stored
var ErrStaleRun = errors.New("a newer run of the series is already stored")

// SampleRepo handles prepared sample persistence. Input windows are not
// stored; they are rebuilt from observations.
type SampleRepo struct {
	client *Client
}

// NewSampleRepo creates a new sample repository
func NewSampleRepo(client *Client) *SampleRepo {
	return &SampleRepo{client: client}
}

// InsertBatch upserts samples in a transaction
func (r *SampleRepo) InsertBatch(ctx context.Context, samples []model.SampleRecord) error {
	return r.client.inTx(ctx, func(tx *sql.Tx) error {
		return insertSamples(ctx, tx, samples)
	})
}

// ReplaceRun stores samples of one prepare run and drops every sample of the
// series written by an earlier run. created_at is the run marker: all
// batches of a run carry the same runAt, so a run may arrive in several
// calls. A call older than the stored run returns ErrStaleRun.
func (r *SampleRepo) ReplaceRun(ctx context.Context, series string, runAt time.Time, samples []model.SampleRecord) error {
	// stored timestamps keep microseconds
	runAt = runAt.UTC().Truncate(time.Microsecond)

	rows := make([]model.SampleRecord, len(samples))
	for i, s := range samples {
		if s.Series != series {
			return fmt.Errorf("sample %s belongs to %q, not %q", s.SampleID, s.Series, series)
		}
		s.CreatedAt = runAt
		rows[i] = s
	}

	return r.client.inTx(ctx, func(tx *sql.Tx) error {
		var latest sql.NullTime
		row := tx.QueryRowContext(ctx, "SELECT MAX(created_at) FROM samples WHERE series = ?", series)
		if err := row.Scan(&latest); err != nil {
			return fmt.Errorf("failed to read latest run: %w", err)
		}
		if latest.Valid && latest.Time.After(runAt) {
			return fmt.Errorf("%w: series %q run %s", ErrStaleRun, series, runAt.Format(time.RFC3339Nano))
		}

		if err := insertSamples(ctx, tx, rows); err != nil {
			return err
		}
		// upsert first: deleting and re-adding a key in one transaction
		// trips DuckDB's unique index
		if _, err := tx.ExecContext(ctx, "DELETE FROM samples WHERE series = ? AND created_at < ?", series, runAt); err != nil {
			return fmt.Errorf("failed to delete previous samples: %w", err)
		}
		return nil
	})
}

// DeleteSeries removes every sample of a series
func (r *SampleRepo) DeleteSeries(ctx context.Context, series string) error {
	if err := r.client.Exec(ctx, "DELETE FROM samples WHERE series = ?", series); err != nil {
		return fmt.Errorf("failed to delete samples: %w", err)
	}
	return nil
}

func insertSamples(ctx context.Context, tx *sql.Tx, samples []model.SampleRecord) error {
	return insertAll(ctx, tx, upsertSample, samples, func(stmt *sql.Stmt, s model.SampleRecord) error {
		target, err := json.Marshal(s.Target)
		if err != nil {
			return fmt.Errorf("failed to marshal target: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			s.SampleID, s.Series, s.Split, s.Start, s.TEnd, s.SeqLength, string(target), s.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
		return nil
	})
}

// CountBySplit returns the number of samples per split for a series
func (r *SampleRepo) CountBySplit(ctx context.Context, series string) (map[string]int64, error) {
	rows, err := r.client.Query(ctx,
		"SELECT split, COUNT(*) FROM samples WHERE series = ? GROUP BY split",
		series,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count samples: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var split string
		var n int64
		if err := rows.Scan(&split, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[split] = n
	}
	return counts, rows.Err()
}

// GetBySplit returns the samples of one split ordered by target time
func (r *SampleRepo) GetBySplit(ctx context.Context, series, split string) ([]model.SampleRecord, error) {
	rows, err := r.client.Query(ctx, `
		SELECT sample_id, series, split, start_idx, t_end, seq_length, target, created_at
		FROM samples
		WHERE series = ? AND split = ?
		ORDER BY t_end ASC
	`, series, split)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []model.SampleRecord
	for rows.Next() {
		var s model.SampleRecord
		var target string
		err := rows.Scan(&s.SampleID, &s.Series, &s.Split, &s.Start, &s.TEnd, &s.SeqLength, &target, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if err := json.Unmarshal([]byte(target), &s.Target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal target: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
