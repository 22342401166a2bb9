package window

import (
	"time"

	"github.com/tunogya/seqprep/pkg/model"
)

// Config holds configuration for the streaming builder
type Config struct {
	SeqLength int // observations per input window
	Step      int // pushes between emitted samples (defaults to 1)
}

type observation struct {
	t    time.Time
	row  []float64
	seen int // position in the stream
}

// Builder turns a stream of observations into samples. Once SeqLength+1
// observations are buffered it emits one sample every Step pushes: the
// oldest SeqLength rows are the inputs and the newest row is the target.
type Builder struct {
	SeqLength int
	Step      int

	buffer    *RingBuffer[observation]
	pushed    int
	stepCount int
}

// NewBuilder creates a builder. It panics on a non-positive SeqLength,
// which is a programming error.
func NewBuilder(cfg Config) *Builder {
	if cfg.SeqLength < 1 {
		panic(ErrInvalidSeqLength)
	}
	step := cfg.Step
	if step <= 0 {
		step = 1
	}
	return &Builder{
		SeqLength: cfg.SeqLength,
		Step:      step,
		buffer:    NewRingBuffer[observation](cfg.SeqLength + 1),
	}
}

// Push adds an observation and reports whether a sample was produced
func (b *Builder) Push(t time.Time, row []float64) (*model.Sample, bool) {
	b.buffer.Push(observation{t: t, row: row, seen: b.pushed})
	b.pushed++

	if !b.buffer.IsFull() {
		return nil, false
	}

	b.stepCount++
	if b.stepCount < b.Step && b.pushed > b.SeqLength+1 {
		return nil, false
	}
	b.stepCount = 0

	obs := b.buffer.ToSlice()
	inputs := make([][]float64, b.SeqLength)
	for i := 0; i < b.SeqLength; i++ {
		inputs[i] = obs[i].row
	}
	target := obs[b.SeqLength]

	return &model.Sample{
		Start:  obs[0].seen,
		TEnd:   target.t,
		Inputs: inputs,
		Target: target.row,
	}, true
}

// Context returns the latest SeqLength rows: the input window for predicting
// the next, not yet observed, value. ok is false until enough rows arrived.
func (b *Builder) Context() (rows [][]float64, tEnd time.Time, ok bool) {
	if b.buffer.Size() < b.SeqLength {
		return nil, time.Time{}, false
	}
	obs := b.buffer.Last(b.SeqLength)
	rows = make([][]float64, len(obs))
	for i, o := range obs {
		rows[i] = o.row
	}
	return rows, obs[len(obs)-1].t, true
}

// Reset clears the builder state
func (b *Builder) Reset() {
	b.buffer.Clear()
	b.pushed = 0
	b.stepCount = 0
}

// Pushed returns how many observations were pushed since the last reset
func (b *Builder) Pushed() int {
	return b.pushed
}

// ProcessSeries streams a whole series through the builder
func (b *Builder) ProcessSeries(s *model.Series) []*model.Sample {
	var samples []*model.Sample
	for i, row := range s.Values {
		if sample, ok := b.Push(s.Timestamps[i], row); ok {
			samples = append(samples, sample)
		}
	}
	return samples
}
