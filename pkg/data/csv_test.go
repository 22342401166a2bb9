package data

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/seqprep/pkg/model"
)

func sampleCandles() []model.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, 5)
	for i := range out {
		out[i] = model.Candle{
			Symbol:    "BTCUSDT",
			Timeframe: "1d",
			OpenTime:  base.AddDate(0, 0, i),
			CloseTime: base.AddDate(0, 0, i+1).Add(-time.Millisecond),
			Open:      100 + float64(i),
			High:      102.5 + float64(i),
			Low:       99.25 + float64(i),
			Close:     101 + float64(i),
			Volume:    1234.5,
			Trades:    int64(10 * i),
		}
	}
	return out
}

func TestCSVWriteRead(t *testing.T) {
	want := sampleCandles()

	var buf bytes.Buffer
	require.NoError(t, WriteCandlesCSV(&buf, want))

	got, skipped, err := ReadCandlesCSV(&buf)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, want, got)
}

func TestReadCandlesCSVSkipsMalformed(t *testing.T) {
	body := strings.Join([]string{
		"symbol,timeframe,open_time,close_time,open,high,low,close,volume,trades",
		"BTCUSDT,1d,1704067200000,1704153599999,1,2,0.5,1.5,10,3",
		"BTCUSDT,1d,not-a-time,1704239999999,1,2,0.5,1.5,10,3",
		"BTCUSDT,1d,1704240000000,1704326399999,1,2,0.5,,10,3",
		"BTCUSDT,1d,1704326400000,,1,2,0.5,1.7,10,3",
		"BTCUSDT,1d,1704412800000,1704499199999,1,0.5,2,1.5,10,3",
		"BTCUSDT,1d,1704499200000,1704585599999,1,2,0.5,NaN,10,3",
	}, "\n")

	got, skipped, err := ReadCandlesCSV(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	require.Len(t, got, 2)
	assert.Equal(t, 1.5, got[0].Close)
	assert.Equal(t, got[1].OpenTime.Add(time.Minute), got[1].CloseTime)
}

func TestReadCandlesCSVMissingColumn(t *testing.T) {
	_, _, err := ReadCandlesCSV(strings.NewReader("symbol,open_time\nX,1\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestCSVProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "klines.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteCandlesCSV(f, sampleCandles()))
	require.NoError(t, f.Close())

	p := NewCSVProvider(path)
	ctx := context.Background()

	all, err := p.FetchCandles(ctx, "BTCUSDT", "1d", time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := p.FetchCandles(ctx, "ETHUSDT", "", time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, none)

	last, err := p.FetchLatestCandles(ctx, "", "", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, 105.0, last[1].Close)

	_, err = NewCSVProvider(filepath.Join(t.TempDir(), "nope.csv")).FetchCandles(ctx, "", "", time.Time{}, time.Now())
	assert.Error(t, err)
}

func TestMemoryProvider(t *testing.T) {
	cs := sampleCandles()
	p := NewMemoryProvider(cs[:3])
	p.AddCandles(cs[3:])

	got, err := p.FetchCandles(context.Background(), "", "", cs[1].OpenTime, cs[3].OpenTime)
	require.NoError(t, err)
	assert.Equal(t, cs[1:4], got)

	all, err := p.FetchLatestCandles(context.Background(), "BTCUSDT", "1d", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestReadCandlesCSVSortsByOpenTime(t *testing.T) {
	want := sampleCandles()
	shuffled := []model.Candle{want[3], want[0], want[4], want[2], want[1]}

	var buf bytes.Buffer
	require.NoError(t, WriteCandlesCSV(&buf, shuffled))

	got, _, err := ReadCandlesCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMemoryProviderOrdersLateCandles(t *testing.T) {
	cs := sampleCandles()
	p := NewMemoryProvider(cs[3:])
	p.AddCandles(cs[:3])

	got, err := p.FetchLatestCandles(context.Background(), "", "", 4)
	require.NoError(t, err)
	assert.Equal(t, cs[1:], got)
}
