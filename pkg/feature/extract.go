package feature

import (
	"fmt"
	"math"
	"time"

	"github.com/tunogya/seqprep/pkg/model"
)

// Supported column names
const (
	Open        = "open"
	High        = "high"
	Low         = "low"
	Close       = "close"
	Volume      = "volume"
	Trades      = "trades"
	VWAP        = "vwap"
	Return      = "return"
	LogReturn   = "log_return"
	Range       = "range"
	UpperWick   = "upper_wick"
	LowerWick   = "lower_wick"
	Direction   = "direction"
	RealizedVol = "realized_vol"
)

// RealizedVolLookback is the number of log returns in the realized_vol window
const RealizedVolLookback = 20

type columnFunc func(candles []model.Candle) []float64

var columns = map[string]columnFunc{
	Open:        perCandle(func(c *model.Candle) float64 { return c.Open }),
	High:        perCandle(func(c *model.Candle) float64 { return c.High }),
	Low:         perCandle(func(c *model.Candle) float64 { return c.Low }),
	Close:       perCandle(func(c *model.Candle) float64 { return c.Close }),
	Volume:      perCandle(func(c *model.Candle) float64 { return c.Volume }),
	Trades:      perCandle(func(c *model.Candle) float64 { return float64(c.Trades) }),
	VWAP:        perCandle(func(c *model.Candle) float64 { return c.VWAP }),
	Return:      perCandle((*model.Candle).Returns),
	Range:       perCandle((*model.Candle).Range),
	UpperWick:   perCandle((*model.Candle).UpperWick),
	LowerWick:   perCandle((*model.Candle).LowerWick),
	Direction:   perCandle((*model.Candle).Direction),
	LogReturn:   logReturns,
	RealizedVol: realizedVol,
}

// Known reports whether name is a supported column
func Known(name string) bool {
	_, ok := columns[name]
	return ok
}

// Extract builds a series with one column per requested field, indexed by
// candle open time
func Extract(name string, candles []model.Candle, fields []string) (*model.Series, error) {
	if len(fields) == 0 {
		return nil, model.ErrNoFields
	}

	cols := make([][]float64, len(fields))
	for j, f := range fields {
		fn, ok := columns[f]
		if !ok {
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownField, f)
		}
		cols[j] = fn(candles)
	}

	s := &model.Series{
		Name:       name,
		Fields:     append([]string(nil), fields...),
		Timestamps: make([]time.Time, 0, len(candles)),
		Values:     make([][]float64, len(candles)),
	}
	for i := range candles {
		s.Timestamps = append(s.Timestamps, candles[i].OpenTime)
		row := make([]float64, len(fields))
		for j := range fields {
			row[j] = cols[j][i]
		}
		s.Values[i] = row
	}

	return s, nil
}

func perCandle(fn func(c *model.Candle) float64) columnFunc {
	return func(candles []model.Candle) []float64 {
		out := make([]float64, len(candles))
		for i := range candles {
			out[i] = fn(&candles[i])
		}
		return out
	}
}

// logReturns computes ln(C_t / C_{t-1}); the first bar has no predecessor and gets 0
func logReturns(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		out[i] = candles[i].LogReturnFrom(&candles[i-1])
	}
	return out
}

// realizedVol is the rolling sample std of the last RealizedVolLookback log
// returns, 0 until the window is full
func realizedVol(candles []model.Candle) []float64 {
	rets := logReturns(candles)
	out := make([]float64, len(candles))

	// rets[0] is a placeholder, real returns start at index 1
	for i := RealizedVolLookback; i < len(candles); i++ {
		window := rets[i-RealizedVolLookback+1 : i+1]
		_, std := meanStd(window)
		out[i] = std
	}
	return out
}

// meanStd returns the mean and sample standard deviation
func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return mean, math.Sqrt(sumSquares / (n - 1))
}
