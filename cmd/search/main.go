package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tunogya/seqprep/pkg/config"
	"github.com/tunogya/seqprep/pkg/feature"
	"github.com/tunogya/seqprep/pkg/logger"
	"github.com/tunogya/seqprep/pkg/model"
	"github.com/tunogya/seqprep/pkg/rerank"
	"github.com/tunogya/seqprep/pkg/scale"
	"github.com/tunogya/seqprep/pkg/store/duckdb"
	"github.com/tunogya/seqprep/pkg/store/milvus"
	"github.com/tunogya/seqprep/pkg/window"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	topK := flag.Int("topk", 0, "Top K neighbors (overrides milvus.top_k)")
	segments := flag.Bool("segments", false, "Use segment weights instead of exponential time decay")
	lambda := flag.Float64("lambda", rerank.DefaultLambda, "Exponential time decay rate per day")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *topK > 0 {
		cfg.Milvus.TopK = *topK
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	weight := rerank.Exponential(*lambda)
	if *segments {
		weight = rerank.DefaultSegments().Weight
	}

	if err := run(context.Background(), cfg, rerank.NewReranker(weight), log); err != nil {
		log.Fatal("Search failed", logger.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, reranker *rerank.Reranker, log *logger.Logger) error {
	name := fmt.Sprintf("%s_%s", cfg.Data.Symbol, cfg.Data.Timeframe)

	duckClient, err := duckdb.NewClient(cfg.DuckDB.Path)
	if err != nil {
		return err
	}
	defer duckClient.Close()

	q, err := loadQuery(ctx, duckClient, cfg, name)
	if err != nil {
		return err
	}
	log.Info("Built query window",
		logger.String("series", name),
		logger.Int("rows", len(q.rows)),
		logger.String("t_end", q.tEnd.Format(time.RFC3339)),
	)
	milvusClient, err := milvus.NewClient(ctx, milvus.Config{
		Address:    cfg.Milvus.Address,
		Username:   cfg.Milvus.Username,
		Password:   cfg.Milvus.Password,
		Collection: cfg.Milvus.Collection,
	})
	if err != nil {
		return err
	}
	defer milvusClient.Close()

	if err := milvusClient.Load(ctx); err != nil {
		return err
	}

	filter := milvus.Filter(name, model.SplitTrain, q.tEnd)
	results, err := milvusClient.Search(ctx, model.FlattenRows(q.rows), filter, cfg.Milvus.TopK)
	if err != nil {
		return err
	}
	log.Info("Found analog windows", logger.Int("count", len(results)), logger.String("filter", filter))

	ranked := reranker.Rerank(results, q.tEnd)

	fmt.Printf("%-5s %-32s %-20s %-10s %-10s %-12s\n", "Rank", "SampleID", "Target Date", "Distance", "Weight", "Target")
	fmt.Println("--------------------------------------------------------------------------------------------")
	for i, r := range ranked {
		target, err := q.params.InverseValue(q.targetCol, r.Target)
		if err != nil {
			return err
		}
		fmt.Printf("%-5d %-32s %-20s %-10.4f %-10.4f %-12.4f\n",
			i+1, r.SampleID, r.TEnd.Format("2006-01-02 15:04"), r.Distance, r.FinalScore, target)
	}

	forecast, err := rerank.AnalogForecast(ranked)
	if err != nil {
		return err
	}
	value, err := q.params.InverseValue(q.targetCol, forecast)
	if err != nil {
		return err
	}

	fmt.Printf("\nAnalog forecast for %s after %s: %.4f\n", cfg.Data.TargetFields[0], q.tEnd.Format(time.RFC3339), value)
	return nil
}

// query is the normalized input window ending at the latest stored candle
type query struct {
	params    scale.Params
	rows      [][]float64
	tEnd      time.Time
	targetCol int
}

// loadQuery rebuilds the model input for the next, not yet observed, bar
// from the stored scaler params and the latest candles
func loadQuery(ctx context.Context, duckClient *duckdb.Client, cfg *config.Config, name string) (*query, error) {
	seqLength := cfg.Prepare.SeqLength

	params, err := duckdb.NewScalerRepo(duckClient).Get(ctx, name)
	if err != nil {
		return nil, err
	}

	// extra bars warm up the derived columns
	need := seqLength + feature.RealizedVolLookback + 1
	candles, err := duckdb.NewCandleRepo(duckClient).GetLatest(ctx, cfg.Data.Symbol, cfg.Data.Timeframe, need)
	if err != nil {
		return nil, err
	}
	if len(candles) < seqLength {
		return nil, fmt.Errorf("not enough candles: need %d, got %d", seqLength, len(candles))
	}

	raw, err := feature.Extract(name, candles, cfg.Data.Fields)
	if err != nil {
		return nil, err
	}
	scaled, err := params.Transform(raw.Values)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize query: %w", err)
	}

	builder := window.NewBuilder(window.Config{SeqLength: seqLength})
	for i, row := range scaled {
		builder.Push(raw.Timestamps[i], row)
	}
	rows, tEnd, ok := builder.Context()
	if !ok {
		return nil, fmt.Errorf("failed to build query window")
	}

	targetCol, err := raw.FieldIndex(cfg.Data.TargetFields[0])
	if err != nil {
		return nil, err
	}

	return &query{params: params, rows: rows, tEnd: tEnd, targetCol: targetCol}, nil
}
