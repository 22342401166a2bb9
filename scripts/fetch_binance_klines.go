package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tunogya/seqprep/pkg/data"
	"github.com/tunogya/seqprep/pkg/logger"
	"github.com/tunogya/seqprep/pkg/model"
)

const (
	klinesURL = "https://api.binance.com/api/v3/klines"
	pageLimit = 1000 // Binance max per request
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "Trading symbol")
	interval := flag.String("interval", "1d", "Kline interval (1m, 5m, 1h, 1d, 1w, etc.)")
	total := flag.Int("limit", 1000, "Number of klines to fetch, paged 1000 at a time")
	since := flag.String("since", "", "Start date (YYYY-MM-DD); latest klines when empty")
	output := flag.String("output", "", "Output CSV file path")
	flag.Parse()

	log, err := logger.New(&logger.Config{Level: "info", Format: "console", TimeFormat: time.RFC3339})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *output == "" {
		*output = filepath.Join("data", fmt.Sprintf("%s_%s.csv", *symbol, *interval))
	}

	var start time.Time
	if *since != "" {
		t, err := time.Parse("2006-01-02", *since)
		if err != nil {
			log.Fatal("Invalid -since date", logger.Error(err))
		}
		start = t
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Info("Fetching klines from Binance",
		logger.String("symbol", *symbol),
		logger.String("interval", *interval),
		logger.Int("limit", *total),
	)

	candles, err := fetch(ctx, *symbol, *interval, start, *total)
	if err != nil {
		log.Fatal("Failed to fetch klines", logger.Error(err))
	}
	log.Info("Fetched klines", logger.Int("count", len(candles)))

	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		log.Fatal("Failed to create output directory", logger.Error(err))
	}
	file, err := os.Create(*output)
	if err != nil {
		log.Fatal("Failed to create output file", logger.Error(err))
	}
	defer file.Close()

	if err := data.WriteCandlesCSV(file, candles); err != nil {
		log.Fatal("Failed to write CSV", logger.Error(err))
	}

	log.Info("Saved klines", logger.String("path", *output))
}

// fetch pages forward from start, or returns the latest page when start is zero
func fetch(ctx context.Context, symbol, interval string, start time.Time, total int) ([]model.Candle, error) {
	var candles []model.Candle
	for len(candles) < total {
		limit := min(pageLimit, total-len(candles))
		url := fmt.Sprintf("%s?symbol=%s&interval=%s&limit=%d", klinesURL, symbol, interval, limit)
		if !start.IsZero() {
			url += fmt.Sprintf("&startTime=%d", start.UnixMilli())
		}

		page, err := fetchPage(ctx, url, symbol, interval)
		if err != nil {
			return nil, err
		}
		candles = append(candles, page...)

		if start.IsZero() || len(page) < limit {
			break
		}
		start = page[len(page)-1].OpenTime.Add(time.Millisecond)
	}
	return candles, nil
}

func fetchPage(ctx context.Context, url, symbol, interval string) ([]model.Candle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var klines [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := parseKline(k, symbol, interval)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// parseKline reads Binance's array layout:
// [0] Open time (ms), [1] Open, [2] High, [3] Low, [4] Close, [5] Volume,
// [6] Close time (ms), [7] Quote volume, [8] Trades, ...
func parseKline(k []interface{}, symbol, interval string) (model.Candle, error) {
	if len(k) < 9 {
		return model.Candle{}, fmt.Errorf("short kline: %d fields", len(k))
	}
	openTime, ok1 := k[0].(float64)
	closeTime, ok2 := k[6].(float64)
	trades, ok3 := k[8].(float64)
	if !ok1 || !ok2 || !ok3 {
		return model.Candle{}, fmt.Errorf("malformed kline times")
	}

	var prices [5]float64
	for i := range prices {
		s, ok := k[i+1].(string)
		if !ok {
			return model.Candle{}, fmt.Errorf("malformed kline field %d", i+1)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("malformed kline field %d: %w", i+1, err)
		}
		prices[i] = v
	}

	return model.Candle{
		Symbol:    symbol,
		Timeframe: interval,
		OpenTime:  time.UnixMilli(int64(openTime)).UTC(),
		CloseTime: time.UnixMilli(int64(closeTime)).UTC(),
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
		Trades:    int64(trades),
	}, nil
}
