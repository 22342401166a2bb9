package nats

import (
	"encoding/json"
	"time"

	"github.com/tunogya/seqprep/pkg/baseline"
	"github.com/tunogya/seqprep/pkg/model"
	"github.com/tunogya/seqprep/pkg/scale"
)

// Subject constants
const (
	SubjectCandleWrite  = "seqprep.candles.write"
	SubjectSeriesWrite  = "seqprep.series.write"
	SubjectSampleWrite  = "seqprep.samples.write"
	SubjectScalerWrite  = "seqprep.scaler.write"
	SubjectMetricsWrite = "seqprep.metrics.write"
)

// Subjects lists every subject the writer consumes
func Subjects() []string {
	return []string{
		SubjectCandleWrite,
		SubjectSeriesWrite,
		SubjectSampleWrite,
		SubjectScalerWrite,
		SubjectMetricsWrite,
	}
}

// CandleBatchMsg represents a batch candle write request
type CandleBatchMsg struct {
	Candles []model.Candle `json:"candles"`
}

// SeriesMsg carries the raw feature series a dataset was prepared from
type SeriesMsg struct {
	Series *model.Series `json:"series"`
}

// SampleBatchMsg represents a batch of prepared samples of one split.
// Batches of one prepare run share RunAt.
type SampleBatchMsg struct {
	Series  string               `json:"series"`
	Split   string               `json:"split"`
	RunAt   time.Time            `json:"run_at"`
	Samples []model.SampleRecord `json:"samples"`
}

// ScalerParamsMsg carries the scaler fitted for a series
type ScalerParamsMsg struct {
	Series string       `json:"series"`
	Params scale.Params `json:"params"`
}

// MetricsMsg carries baseline metrics for a series
type MetricsMsg struct {
	Series  string             `json:"series"`
	Metrics []baseline.Metrics `json:"metrics"`
}

// Encode serializes a message to JSON bytes
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes a message from JSON bytes
func Decode[T any](data []byte) (*T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SampleBatches chunks records into messages of at most size samples,
// never mixing splits
func SampleBatches(series string, records []model.SampleRecord, size int) []SampleBatchMsg {
	if size < 1 {
		size = len(records)
	}
	var out []SampleBatchMsg
	var runAt time.Time
	if len(records) > 0 {
		runAt = records[0].CreatedAt
	}
	for len(records) > 0 {
		n := 0
		split := records[0].Split
		for n < len(records) && n < size && records[n].Split == split {
			n++
		}
		out = append(out, SampleBatchMsg{Series: series, Split: split, RunAt: runAt, Samples: records[:n]})
		records = records[n:]
	}
	return out
}
