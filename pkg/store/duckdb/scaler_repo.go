package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tunogya/seqprep/pkg/scale"
)

// ScalerRepo stores fitted scaler parameters, one set per series
type ScalerRepo struct {
	client *Client
}

// NewScalerRepo creates a new scaler repository
func NewScalerRepo(client *Client) *ScalerRepo {
	return &ScalerRepo{client: client}
}

// Save upserts the params for a series
func (r *ScalerRepo) Save(ctx context.Context, series string, p scale.Params) error {
	if !p.Fitted() {
		return scale.ErrNotFitted
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal scaler params: %w", err)
	}

	err = r.client.Exec(ctx, `
		INSERT INTO scaler_params (series, kind, params, fitted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (series) DO UPDATE SET
			kind = EXCLUDED.kind,
			params = EXCLUDED.params,
			fitted_at = EXCLUDED.fitted_at
	`, series, string(p.Kind), string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save scaler params: %w", err)
	}
	return nil
}

// Get loads the params for a series
func (r *ScalerRepo) Get(ctx context.Context, series string) (scale.Params, error) {
	var data string
	row := r.client.QueryRow(ctx, "SELECT params FROM scaler_params WHERE series = ?", series)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scale.Params{}, fmt.Errorf("%w: scaler params for %q", ErrNotFound, series)
		}
		return scale.Params{}, fmt.Errorf("failed to query scaler params: %w", err)
	}

	var p scale.Params
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return scale.Params{}, fmt.Errorf("failed to unmarshal scaler params: %w", err)
	}
	return p, nil
}
