package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tunogya/seqprep/pkg/config"
	"github.com/tunogya/seqprep/pkg/logger"
	"github.com/tunogya/seqprep/pkg/queue/nats"
	"github.com/tunogya/seqprep/pkg/store/duckdb"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Writer failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting writer worker",
		logger.String("nats", cfg.NATS.URL),
		logger.String("duckdb", cfg.DuckDB.Path),
	)

	duckClient, err := duckdb.NewClient(cfg.DuckDB.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to DuckDB: %w", err)
	}
	defer func() {
		if err := duckClient.Checkpoint(context.Background()); err != nil {
			log.Warn("Failed to checkpoint DuckDB", logger.Error(err))
		}
		duckClient.Close()
	}()

	if err := duckdb.InitializeSchema(ctx, duckClient); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	h := &handlers{
		candles: duckdb.NewCandleRepo(duckClient),
		obs:     duckdb.NewObservationRepo(duckClient),
		scalers: duckdb.NewScalerRepo(duckClient),
		samples: duckdb.NewSampleRepo(duckClient),
		metrics: duckdb.NewMetricsRepo(duckClient),
		log:     log,
	}

	ncfg := nats.DefaultConfig()
	ncfg.URL = cfg.NATS.URL
	ncfg.StreamName = cfg.NATS.StreamName
	ncfg.AckWait = cfg.NATS.AckWait
	ncfg.MaxDeliver = cfg.NATS.MaxDeliver

	natsClient, err := nats.NewClient(ncfg, log)
	if err != nil {
		return err
	}
	defer natsClient.Close()

	if err := natsClient.CreateStream(ctx); err != nil {
		return err
	}

	subscriptions := []struct {
		subject  string
		consumer string
		handler  nats.MessageHandler
	}{
		{nats.SubjectCandleWrite, "candle-writer", nats.JSONHandler(h.candleBatch)},
		{nats.SubjectSeriesWrite, "series-writer", nats.JSONHandler(h.series)},
		{nats.SubjectScalerWrite, "scaler-writer", nats.JSONHandler(h.scalerParams)},
		{nats.SubjectSampleWrite, "sample-writer", nats.JSONHandler(h.sampleBatch)},
		{nats.SubjectMetricsWrite, "metrics-writer", nats.JSONHandler(h.metricsMsg)},
	}

	for _, sub := range subscriptions {
		cc, err := natsClient.Subscribe(ctx, sub.subject, sub.consumer, sub.handler)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", sub.subject, err)
		}
		defer cc.Stop()
	}

	log.Info("Writer worker started, waiting for messages")
	<-ctx.Done()
	log.Info("Shutting down writer worker")
	return nil
}
