package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tunogya/seqprep/pkg/baseline"
	"github.com/tunogya/seqprep/pkg/config"
	"github.com/tunogya/seqprep/pkg/data"
	"github.com/tunogya/seqprep/pkg/feature"
	"github.com/tunogya/seqprep/pkg/logger"
	"github.com/tunogya/seqprep/pkg/model"
	"github.com/tunogya/seqprep/pkg/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	csvPath := flag.String("csv", "", "Path to kline CSV (overrides data.csv_path)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *csvPath != "" {
		cfg.Data.CSVPath = *csvPath
	}
	if cfg.Data.CSVPath == "" {
		fmt.Println("Usage: prepare -csv <path> [-config <file>]")
		flag.PrintDefaults()
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
		log.Error("Prepare failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	start := time.Now()
	name := seriesName(cfg)
	log = log.With(logger.String("series", name))

	log.Info("Loading candles", logger.String("path", cfg.Data.CSVPath))
	provider := data.NewCSVProvider(cfg.Data.CSVPath)
	candles, err := provider.FetchCandles(ctx, cfg.Data.Symbol, cfg.Data.Timeframe, time.Time{}, time.Now())
	if err != nil {
		return fmt.Errorf("failed to load candles: %w", err)
	}
	if n := provider.Skipped(); n > 0 {
		log.Warn("Skipped malformed CSV rows", logger.Int("rows", n))
	}
	for i := range candles {
		if candles[i].Symbol == "" {
			candles[i].Symbol = cfg.Data.Symbol
		}
		if candles[i].Timeframe == "" {
			candles[i].Timeframe = cfg.Data.Timeframe
		}
	}
	log.Info("Loaded candles", logger.Int("count", len(candles)))

	raw, err := feature.Extract(name, candles, cfg.Data.Fields)
	if err != nil {
		return fmt.Errorf("failed to extract features: %w", err)
	}

	res, err := pipeline.Prepare(ctx, raw, pipeline.Config{
		SeqLength:    cfg.Prepare.SeqLength,
		TestFraction: cfg.Prepare.TestFraction,
		ValFraction:  cfg.Prepare.ValFraction,
		Scaler:       cfg.Scaler.Scale(),
		FitScope:     cfg.Prepare.FitScope,
		TargetFields: cfg.Data.TargetFields,
		Workers:      cfg.Prepare.Workers,
	}, log)
	if err != nil {
		return err
	}

	metrics, err := baseline.EvaluatePartition(res.Partition, res.Params, res.TargetCols)
	if err != nil {
		return fmt.Errorf("failed to evaluate baseline: %w", err)
	}
	for _, m := range metrics {
		log.Info("Persistence baseline", logger.String("split", m.Split),
			logger.Int("windows", m.Count),
			logger.Float64("mae", m.MAE),
			logger.Float64("rmse", m.RMSE),
		)
	}

	ds := dataset{
		name:    name,
		candles: candles,
		raw:     raw,
		result:  res,
		records: res.Records(cfg.Prepare.FeatureVersion),
		metrics: metrics,
	}

	var out sink
	if cfg.NATS.Enabled {
		out, err = newNATSSink(cfg, log)
	} else {
		out, err = newDuckDBSink(ctx, cfg, log)
	}
	if err != nil {
		return err
	}
	defer out.Close()

	if err := out.Write(ctx, ds); err != nil {
		return err
	}

	if cfg.Milvus.Enabled {
		if err := indexTrainingWindows(ctx, cfg, log, ds); err != nil {
			return err
		}
	}

	log.Info("Prepare completed",
		logger.Int("candles", len(candles)),
		logger.Int("samples", len(ds.records)),
		logger.Duration("duration", time.Since(start)),
	)
	return nil
}

// dataset is everything one prepare run persists
type dataset struct {
	name    string
	candles []model.Candle
	raw     *model.Series
	result  *pipeline.Result
	records []model.SampleRecord
	metrics []baseline.Metrics
}

func (d dataset) trainRecords() []model.SampleRecord {
	var out []model.SampleRecord
	for _, r := range d.records {
		if r.Split == model.SplitTrain {
			out = append(out, r)
		}
	}
	return out
}

// runAt identifies this prepare run in the sample store
func (d dataset) runAt() time.Time {
	if len(d.records) == 0 {
		return time.Now().UTC()
	}
	return d.records[0].CreatedAt
}

func seriesName(cfg *config.Config) string {
	return fmt.Sprintf("%s_%s", cfg.Data.Symbol, cfg.Data.Timeframe)
}
