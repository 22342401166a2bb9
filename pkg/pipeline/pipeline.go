// Package pipeline runs the preparation flow for a single series:
// fit the scaler, normalize, window and split chronologically.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tunogya/seqprep/pkg/logger"
	"github.com/tunogya/seqprep/pkg/model"
	"github.com/tunogya/seqprep/pkg/scale"
	"github.com/tunogya/seqprep/pkg/split"
	"github.com/tunogya/seqprep/pkg/window"
)

// Fit scopes
const (
	FitTrain = "train" // rows touched by training windows
	FitAll   = "all"   // the whole series
)

var ErrUnknownFitScope = errors.New("unknown fit scope")

// Config controls Prepare
type Config struct {
	SeqLength    int
	TestFraction float64
	ValFraction  float64
	Scaler       scale.Config
	FitScope     string
	TargetFields []string // empty means every field
	Workers      int
}

// Result is a prepared dataset
type Result struct {
	Series     *model.Series // normalized
	Params     scale.Params
	Sizes      split.Sizes
	Windows    *model.Windows[[]float64]
	Partition  model.Partition[[]float64]
	TargetCols []int
}

// Prepare normalizes s, builds every window and splits them chronologically.
// The scaler only sees the fitting range selected by cfg.FitScope.
func Prepare(ctx context.Context, s *model.Series, cfg Config, log *logger.Logger) (*Result, error) {
	if log == nil {
		log = logger.Nop()
	}
	start := time.Now()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := window.Check(s.Len(), cfg.SeqLength); err != nil {
		return nil, err
	}

	targetFields := cfg.TargetFields
	if len(targetFields) == 0 {
		targetFields = s.Fields
	}
	targetCols, err := s.FieldIndices(targetFields)
	if err != nil {
		return nil, err
	}

	sizes, err := split.ComputeSizes(window.Count(s.Len(), cfg.SeqLength), cfg.TestFraction, cfg.ValFraction)
	if err != nil {
		return nil, err
	}

	fitRows, err := fitRange(s, sizes, cfg)
	if err != nil {
		return nil, err
	}
	params, err := scale.Fit(fitRows, cfg.Scaler)
	if err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}

	scaled, err := params.Transform(s.Values)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize series: %w", err)
	}
	normalized := s.WithValues(scaled)

	all, err := window.MakeParallel(ctx, normalized.Values, cfg.SeqLength, cfg.Workers)
	if err != nil {
		return nil, err
	}
	all = window.SelectTargets(all, targetCols)

	result := &Result{
		Series:     normalized,
		Params:     params,
		Sizes:      sizes,
		Windows:    all,
		Partition:  split.Apply(all, sizes),
		TargetCols: targetCols,
	}

	log.Info("Prepared series",
		logger.String("series", s.Name),
		logger.Int("observations", s.Len()),
		logger.Int("seq_length", cfg.SeqLength),
		logger.Int("train", sizes.Train),
		logger.Int("val", sizes.Val),
		logger.Int("test", sizes.Test),
		logger.Int("fit_rows", len(fitRows)),
		logger.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func fitRange(s *model.Series, sizes split.Sizes, cfg Config) ([][]float64, error) {
	switch cfg.FitScope {
	case FitTrain, "":
		return s.Values[:sizes.Train+cfg.SeqLength], nil
	case FitAll:
		return s.Values, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFitScope, cfg.FitScope)
	}
}

// Records converts the partition into persistable sample records.
// TEnd is the timestamp of each window's target observation.
func (r *Result) Records(version int) []model.SampleRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	records := make([]model.SampleRecord, 0, r.Windows.Len())
	for _, part := range r.Partition.Named() {
		w := part.Windows
		for k := 0; k < w.Len(); k++ {
			tEnd := r.Series.Timestamps[w.TargetIndex(k)]
			records = append(records, model.SampleRecord{
				SampleID:  model.GenerateSampleID(r.Series.Name, tEnd, w.SeqLength, version),
				Series:    r.Series.Name,
				Split:     part.Name,
				Start:     w.Starts[k],
				TEnd:      tEnd,
				SeqLength: w.SeqLength,
				Inputs:    w.Inputs[k],
				Target:    w.Targets[k],
				CreatedAt: now,
			})
		}
	}
	return records
}

// RecordsBySplit is Records grouped by split name
func (r *Result) RecordsBySplit(version int) map[string][]model.SampleRecord {
	out := make(map[string][]model.SampleRecord, 3)
	for _, rec := range r.Records(version) {
		out[rec.Split] = append(out[rec.Split], rec)
	}
	return out
}
