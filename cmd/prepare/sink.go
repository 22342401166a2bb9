package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tunogya/seqprep/pkg/config"
	"github.com/tunogya/seqprep/pkg/logger"
	"github.com/tunogya/seqprep/pkg/queue/nats"
	"github.com/tunogya/seqprep/pkg/store/duckdb"
	"github.com/tunogya/seqprep/pkg/store/milvus"
)

// sink persists a prepared dataset
type sink interface {
	Write(ctx context.Context, ds dataset) error
	Close() error
}

type duckDBSink struct {
	client  *duckdb.Client
	candles *duckdb.CandleRepo
	obs     *duckdb.ObservationRepo
	scalers *duckdb.ScalerRepo
	samples *duckdb.SampleRepo
	metrics *duckdb.MetricsRepo
	log     *logger.Logger
}

func newDuckDBSink(ctx context.Context, cfg *config.Config, log *logger.Logger) (*duckDBSink, error) {
	log.Info("Connecting to DuckDB", logger.String("path", cfg.DuckDB.Path))
	client, err := duckdb.NewClient(cfg.DuckDB.Path)
	if err != nil {
		return nil, err
	}
	if err := duckdb.InitializeSchema(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	return &duckDBSink{
		client:  client,
		candles: duckdb.NewCandleRepo(client),
		obs:     duckdb.NewObservationRepo(client),
		scalers: duckdb.NewScalerRepo(client),
		samples: duckdb.NewSampleRepo(client),
		metrics: duckdb.NewMetricsRepo(client),
		log:     log,
	}, nil
}

func (s *duckDBSink) Write(ctx context.Context, ds dataset) error {
	if err := s.candles.InsertBatch(ctx, ds.candles); err != nil {
		return err
	}
	if err := s.obs.ReplaceSeries(ctx, ds.raw); err != nil {
		return err
	}
	if err := s.scalers.Save(ctx, ds.name, ds.result.Params); err != nil {
		return err
	}
	if err := s.samples.ReplaceRun(ctx, ds.name, ds.runAt(), ds.records); err != nil {
		return err
	}
	if err := s.metrics.Upsert(ctx, ds.name, ds.metrics); err != nil {
		return err
	}

	if err := s.client.Checkpoint(ctx); err != nil {
		return err
	}

	counts, err := s.samples.CountBySplit(ctx, ds.name)
	if err != nil {
		return err
	}
	s.log.Info("Stored dataset in DuckDB",
		logger.Int64("train", counts["train"]),
		logger.Int64("val", counts["val"]),
		logger.Int64("test", counts["test"]),
	)
	return nil
}

func (s *duckDBSink) Close() error {
	return s.client.Close()
}

type natsSink struct {
	client    *nats.Client
	batchSize int
	log       *logger.Logger
}

func newNATSSink(cfg *config.Config, log *logger.Logger) (*natsSink, error) {
	ncfg := nats.DefaultConfig()
	ncfg.URL = cfg.NATS.URL
	ncfg.StreamName = cfg.NATS.StreamName

	log.Info("Connecting to NATS", logger.String("url", ncfg.URL))
	client, err := nats.NewClient(ncfg, log)
	if err != nil {
		return nil, err
	}
	return &natsSink{client: client, batchSize: cfg.NATS.BatchSize, log: log}, nil
}

func (s *natsSink) Write(ctx context.Context, ds dataset) error {
	if err := s.client.CreateStream(ctx); err != nil {
		return err
	}

	published := 0
	publish := func(subject string, v interface{}) error {
		if err := s.client.PublishJSON(ctx, subject, v); err != nil {
			return fmt.Errorf("%s: %w", subject, err)
		}
		published++
		return nil
	}

	for i := 0; i < len(ds.candles); i += s.batchSize {
		end := min(i+s.batchSize, len(ds.candles))
		if err := publish(nats.SubjectCandleWrite, nats.CandleBatchMsg{Candles: ds.candles[i:end]}); err != nil {
			return err
		}
	}
	if err := publish(nats.SubjectSeriesWrite, nats.SeriesMsg{Series: ds.raw}); err != nil {
		return err
	}
	if err := publish(nats.SubjectScalerWrite, nats.ScalerParamsMsg{Series: ds.name, Params: ds.result.Params}); err != nil {
		return err
	}
	for _, batch := range nats.SampleBatches(ds.name, ds.records, s.batchSize) {
		if err := publish(nats.SubjectSampleWrite, batch); err != nil {
			return err
		}
	}
	if err := publish(nats.SubjectMetricsWrite, nats.MetricsMsg{Series: ds.name, Metrics: ds.metrics}); err != nil {
		return err
	}

	s.log.Info("Published dataset to NATS", logger.Int("messages", published))
	return nil
}

func (s *natsSink) Close() error {
	s.client.Close()
	return nil
}

// indexTrainingWindows stores the training embeddings in Milvus. Validation
// and test windows stay out of the search base.
func indexTrainingWindows(ctx context.Context, cfg *config.Config, log *logger.Logger, ds dataset) error {
	train := ds.trainRecords()
	if len(train) == 0 {
		return nil
	}

	client, err := milvus.NewClient(ctx, milvus.Config{
		Address:    cfg.Milvus.Address,
		Username:   cfg.Milvus.Username,
		Password:   cfg.Milvus.Password,
		Collection: cfg.Milvus.Collection,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.Milvus.Recreate {
		log.Info("Dropping collection", logger.String("collection", client.Collection()))
		if err := client.Drop(ctx); err != nil {
			return err
		}
	}

	existed, err := client.Exists(ctx)
	if err != nil {
		return err
	}

	dim := len(train[0].Flatten())
	if err := client.CreateCollection(ctx, dim, cfg.Milvus.Shards); err != nil {
		if errors.Is(err, milvus.ErrDimensionMismatch) {
			return fmt.Errorf("%w (set milvus.recreate to rebuild the collection)", err)
		}
		return err
	}

	// inserts are not idempotent: replace the series' windows from earlier runs
	if existed {
		if err := client.DeleteSeries(ctx, ds.name); err != nil {
			return fmt.Errorf("failed to remove previous windows of %s (set milvus.recreate to rebuild): %w", ds.name, err)
		}
	}

	for i := 0; i < len(train); i += cfg.Milvus.BatchSize {
		end := min(i+cfg.Milvus.BatchSize, len(train))
		if err := client.InsertBatch(ctx, train[i:end]); err != nil {
			return err
		}
	}

	if err := client.BuildIndex(ctx, cfg.Milvus.Nlist); err != nil {
		log.Warn("Failed to build index", logger.Error(err))
	}

	rows, err := client.RowCount(ctx)
	if err != nil {
		log.Warn("Failed to count vectors", logger.Error(err))
	}
	log.Info("Indexed training windows in Milvus",
		logger.String("collection", client.Collection()),
		logger.Int("inserted", len(train)),
		logger.Int64("rows", rows),
		logger.Int("dim", dim),
	)
	return nil
}
