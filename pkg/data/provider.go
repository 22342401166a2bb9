package data

import (
	"context"
	"sort"
	"time"

	"github.com/tunogya/seqprep/pkg/model"
)

// CandleProvider defines the interface for fetching historical candle data
type CandleProvider interface {
	// FetchCandles retrieves candles with open time in [start, end], oldest first.
	// Empty symbol or timeframe match everything.
	FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]model.Candle, error)

	// FetchLatestCandles retrieves the most recent N candles, oldest first
	FetchLatestCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
}

// MemoryProvider implements CandleProvider with in-memory storage
type MemoryProvider struct {
	candles []model.Candle
}

// NewMemoryProvider creates a new in-memory candle provider
func NewMemoryProvider(candles []model.Candle) *MemoryProvider {
	p := &MemoryProvider{}
	p.AddCandles(candles)
	return p
}

// AddCandles adds candles to the provider, keeping them ordered by open time
func (p *MemoryProvider) AddCandles(candles []model.Candle) {
	p.candles = append(p.candles, candles...)
	sortByOpenTime(p.candles)
}

func (p *MemoryProvider) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]model.Candle, error) {
	return filterRange(p.candles, symbol, timeframe, start, end), nil
}

func (p *MemoryProvider) FetchLatestCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	return latest(p.candles, symbol, timeframe, limit), nil
}

// matches treats an empty filter or an empty candle field as a wildcard, so
// files without symbol/timeframe columns still load
func matches(c *model.Candle, symbol, timeframe string) bool {
	if symbol != "" && c.Symbol != "" && c.Symbol != symbol {
		return false
	}
	if timeframe != "" && c.Timeframe != "" && c.Timeframe != timeframe {
		return false
	}
	return true
}

func filterRange(candles []model.Candle, symbol, timeframe string, start, end time.Time) []model.Candle {
	var result []model.Candle
	for i := range candles {
		c := &candles[i]
		if c.OpenTime.Before(start) || c.OpenTime.After(end) {
			continue
		}
		if matches(c, symbol, timeframe) {
			result = append(result, *c)
		}
	}
	return result
}

func latest(candles []model.Candle, symbol, timeframe string, limit int) []model.Candle {
	var filtered []model.Candle
	for i := range candles {
		if matches(&candles[i], symbol, timeframe) {
			filtered = append(filtered, candles[i])
		}
	}
	if limit <= 0 || len(filtered) <= limit {
		return filtered
	}
	return filtered[len(filtered)-limit:]
}

// sortByOpenTime orders candles oldest first; equal times keep input order
func sortByOpenTime(candles []model.Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
}
