package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/tunogya/seqprep/pkg/model"
)

// CSVHeader is the kline column layout read and written by this package.
// Times are unix milliseconds.
var CSVHeader = []string{"symbol", "timeframe", "open_time", "close_time", "open", "high", "low", "close", "volume", "trades"}

var ErrMissingColumn = errors.New("missing csv column")

// CSVProvider implements CandleProvider for kline CSV files
type CSVProvider struct {
	filePath string

	once    sync.Once
	loadErr error
	candles []model.Candle
	skipped int
}

// NewCSVProvider creates a new CSV-based candle provider. The file is read
// lazily on first fetch.
func NewCSVProvider(filePath string) *CSVProvider {
	return &CSVProvider{filePath: filePath}
}

func (p *CSVProvider) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]model.Candle, error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	return filterRange(p.candles, symbol, timeframe, start, end), nil
}

func (p *CSVProvider) FetchLatestCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	return latest(p.candles, symbol, timeframe, limit), nil
}

// Skipped returns how many malformed rows were dropped while loading
func (p *CSVProvider) Skipped() int {
	return p.skipped
}

func (p *CSVProvider) load() error {
	p.once.Do(func() {
		file, err := os.Open(p.filePath)
		if err != nil {
			p.loadErr = fmt.Errorf("failed to open CSV file: %w", err)
			return
		}
		defer file.Close()

		p.candles, p.skipped, p.loadErr = ReadCandlesCSV(file)
	})
	return p.loadErr
}

// ReadCandlesCSV parses kline rows and returns them oldest first. Rows whose
// open_time or close price cannot be parsed, or that fail Candle.Validate,
// are skipped and counted.
func ReadCandlesCSV(r io.Reader) (candles []model.Candle, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int, len(header))
	for i, col := range header {
		colMap[col] = i
	}
	for _, required := range []string{"open_time", "close"} {
		if _, ok := colMap[required]; !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("failed to read CSV record: %w", err)
		}

		c, err := parseRecord(record, colMap)
		if err != nil {
			skipped++
			continue
		}
		candles = append(candles, c)
	}

	sortByOpenTime(candles)
	return candles, skipped, nil
}

func parseRecord(record []string, colMap map[string]int) (model.Candle, error) {
	get := func(name string) string {
		if idx, ok := colMap[name]; ok && idx < len(record) {
			return record[idx]
		}
		return ""
	}

	openTimeMs, err := strconv.ParseInt(get("open_time"), 10, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("invalid open_time: %w", err)
	}
	closePrice, err := strconv.ParseFloat(get("close"), 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("invalid close: %w", err)
	}

	closeTimeMs, err := strconv.ParseInt(get("close_time"), 10, 64)
	if err != nil {
		closeTimeMs = openTimeMs + 60000 // assume 1m bars
	}

	open, _ := strconv.ParseFloat(get("open"), 64)
	high, _ := strconv.ParseFloat(get("high"), 64)
	low, _ := strconv.ParseFloat(get("low"), 64)
	volume, _ := strconv.ParseFloat(get("volume"), 64)
	trades, _ := strconv.ParseInt(get("trades"), 10, 64)

	c := model.Candle{
		Symbol:    get("symbol"),
		Timeframe: get("timeframe"),
		OpenTime:  time.UnixMilli(openTimeMs).UTC(),
		CloseTime: time.UnixMilli(closeTimeMs).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		Trades:    trades,
	}
	if err := c.Validate(); err != nil {
		return model.Candle{}, err
	}
	return c, nil
}

// WriteCandlesCSV writes candles in the layout ReadCandlesCSV expects
func WriteCandlesCSV(w io.Writer, candles []model.Candle) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, c := range candles {
		row := []string{
			c.Symbol,
			c.Timeframe,
			strconv.FormatInt(c.OpenTime.UnixMilli(), 10),
			strconv.FormatInt(c.CloseTime.UnixMilli(), 10),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
			strconv.FormatInt(c.Trades, 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
