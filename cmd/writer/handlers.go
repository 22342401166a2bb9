package main

import (
	"context"
	"errors"

	"github.com/tunogya/seqprep/pkg/logger"
	"github.com/tunogya/seqprep/pkg/queue/nats"
	"github.com/tunogya/seqprep/pkg/store/duckdb"
)

// handlers persists decoded queue messages into DuckDB
type handlers struct {
	candles *duckdb.CandleRepo
	obs     *duckdb.ObservationRepo
	scalers *duckdb.ScalerRepo
	samples *duckdb.SampleRepo
	metrics *duckdb.MetricsRepo
	log     *logger.Logger
}

func (h *handlers) candleBatch(ctx context.Context, msg *nats.CandleBatchMsg) error {
	if len(msg.Candles) == 0 {
		return nil
	}
	if err := h.candles.InsertBatch(ctx, msg.Candles); err != nil {
		h.log.Error("Failed to insert candles", logger.Error(err))
		return err
	}
	h.log.Debug("Inserted candles", logger.Int("count", len(msg.Candles)))
	return nil
}

func (h *handlers) series(ctx context.Context, msg *nats.SeriesMsg) error {
	if msg.Series == nil {
		return nil
	}
	if err := h.obs.ReplaceSeries(ctx, msg.Series); err != nil {
		h.log.Error("Failed to insert series", logger.String("series", msg.Series.Name), logger.Error(err))
		return err
	}
	h.log.Info("Stored series",
		logger.String("series", msg.Series.Name),
		logger.Int("observations", msg.Series.Len()),
	)
	return nil
}

func (h *handlers) scalerParams(ctx context.Context, msg *nats.ScalerParamsMsg) error {
	if err := h.scalers.Save(ctx, msg.Series, msg.Params); err != nil {
		h.log.Error("Failed to save scaler params", logger.String("series", msg.Series), logger.Error(err))
		return err
	}
	h.log.Info("Stored scaler params", logger.String("series", msg.Series), logger.String("kind", string(msg.Params.Kind)))
	return nil
}

func (h *handlers) sampleBatch(ctx context.Context, msg *nats.SampleBatchMsg) error {
	if len(msg.Samples) == 0 {
		return nil
	}

	var err error
	if msg.RunAt.IsZero() {
		err = h.samples.InsertBatch(ctx, msg.Samples)
	} else {
		err = h.samples.ReplaceRun(ctx, msg.Series, msg.RunAt, msg.Samples)
	}
	if errors.Is(err, duckdb.ErrStaleRun) {
		// a newer run already replaced this one; redelivery cannot help
		h.log.Warn("Dropping samples of an outdated run", logger.String("series", msg.Series), logger.Error(err))
		return nil
	}
	if err != nil {
		h.log.Error("Failed to insert samples", logger.String("series", msg.Series), logger.Error(err))
		return err
	}
	h.log.Debug("Inserted samples",
		logger.String("series", msg.Series),
		logger.String("split", msg.Split),
		logger.Int("count", len(msg.Samples)),
	)
	return nil
}

func (h *handlers) metricsMsg(ctx context.Context, msg *nats.MetricsMsg) error {
	if err := h.metrics.Upsert(ctx, msg.Series, msg.Metrics); err != nil {
		h.log.Error("Failed to upsert metrics", logger.String("series", msg.Series), logger.Error(err))
		return err
	}
	for _, m := range msg.Metrics {
		h.log.Info("Stored baseline metrics", logger.String("series", msg.Series), logger.String("summary", m.String()))
	}
	return nil
}
