package model

import (
	"errors"
	"math"
	"time"
)

var (
	ErrNonFinitePrice = errors.New("candle has a non-finite price or volume")
	ErrInvertedRange  = errors.New("candle high is below low")
)

// Candle represents a single K-line (candlestick) data point
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Trades    int64     `json:"trades,omitempty"`
	VWAP      float64   `json:"vwap,omitempty"`
}

// Validate rejects bars that cannot produce finite features. Zero OHLC
// values are allowed since CSV exports often leave unknown columns empty.
func (c *Candle) Validate() error {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume, c.VWAP} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinitePrice
		}
	}
	if c.High < c.Low {
		return ErrInvertedRange
	}
	return nil
}

// Returns is the open-to-close return of the bar
func (c *Candle) Returns() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open
}

// LogReturnFrom is ln(close / prev.close), 0 when either price is not positive
func (c *Candle) LogReturnFrom(prev *Candle) float64 {
	if prev == nil || prev.Close <= 0 || c.Close <= 0 {
		return 0
	}
	return math.Log(c.Close / prev.Close)
}

// Range is the high-low range as a fraction of open
func (c *Candle) Range() float64 {
	if c.Open == 0 {
		return 0
	}
	return c.spread() / c.Open
}

// UpperWick is the part of the range above the body, in [0, 1]
func (c *Candle) UpperWick() float64 {
	return c.shareOfRange(c.High - c.bodyTop())
}

// LowerWick is the part of the range below the body, in [0, 1]
func (c *Candle) LowerWick() float64 {
	return c.shareOfRange(c.bodyBottom() - c.Low)
}

// Direction is +1 for a bullish bar, -1 for a bearish one and 0 for a doji
func (c *Candle) Direction() float64 {
	switch {
	case c.IsBullish():
		return 1
	case c.IsBearish():
		return -1
	default:
		return 0
	}
}

func (c *Candle) IsBullish() bool { return c.Close > c.Open }

func (c *Candle) IsBearish() bool { return c.Close < c.Open }

func (c *Candle) spread() float64     { return c.High - c.Low }
func (c *Candle) bodyTop() float64    { return math.Max(c.Open, c.Close) }
func (c *Candle) bodyBottom() float64 { return math.Min(c.Open, c.Close) }

func (c *Candle) shareOfRange(v float64) float64 {
	if c.spread() == 0 {
		return 0
	}
	return v / c.spread()
}
