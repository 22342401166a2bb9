package scale

import (
	"fmt"
	"math"
)

// Kind selects the scaling transform
type Kind string

const (
	KindMinMax   Kind = "minmax"
	KindStandard Kind = "standard"
)

// Config describes how to fit a scaler
type Config struct {
	Kind Kind    `json:"kind" yaml:"kind"`
	Low  float64 `json:"low" yaml:"low"`   // feature range lower bound (minmax)
	High float64 `json:"high" yaml:"high"` // feature range upper bound (minmax)
}

// DefaultConfig scales every field into [0, 1]
func DefaultConfig() Config {
	return Config{
		Kind: KindMinMax,
		Low:  0,
		High: 1,
	}
}

func (c Config) validate() error {
	switch c.Kind {
	case KindMinMax:
		if !(c.Low < c.High) {
			return fmt.Errorf("%w: low %v must be below high %v", ErrInvalidRange, c.Low, c.High)
		}
	case KindStandard:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return nil
}

// Params are fitted scaling parameters. A Params value never changes after
// Fit returns it; Transform and InverseTransform are pure functions of their
// input and the params.
type Params struct {
	Kind  Kind      `json:"kind"`
	Low   float64   `json:"low"`
	High  float64   `json:"high"`
	Count int       `json:"count"` // rows seen by Fit
	Min   []float64 `json:"min,omitempty"`
	Max   []float64 `json:"max,omitempty"`
	Mean  []float64 `json:"mean,omitempty"`
	Std   []float64 `json:"std,omitempty"`
}

// Fit computes per-field parameters over values (rows x fields).
// Constant fields are accepted; see Transform for how they are mapped.
func Fit(values [][]float64, cfg Config) (Params, error) {
	if err := cfg.validate(); err != nil {
		return Params{}, err
	}
	if len(values) == 0 || len(values[0]) == 0 {
		return Params{}, ErrEmptyInput
	}

	width := len(values[0])
	for i, row := range values {
		if len(row) != width {
			return Params{}, fmt.Errorf("%w: row %d has %d fields, want %d", ErrShapeMismatch, i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Params{}, fmt.Errorf("%w: row %d field %d", ErrNonFinite, i, j)
			}
		}
	}

	p := Params{
		Kind:  cfg.Kind,
		Low:   cfg.Low,
		High:  cfg.High,
		Count: len(values),
	}

	switch cfg.Kind {
	case KindMinMax:
		p.Min, p.Max = minMax(values, width)
	case KindStandard:
		p.Mean, p.Std = meanStd(values, width)
	}

	return p, nil
}

// FitColumn fits a single-field scaler
func FitColumn(values []float64, cfg Config) (Params, error) {
	return Fit(columnToRows(values), cfg)
}

// Fitted reports whether p came from a successful Fit
func (p Params) Fitted() bool {
	return p.Width() > 0
}

// Width is the number of fields the params were fitted on
func (p Params) Width() int {
	if p.Kind == KindStandard {
		return len(p.Mean)
	}
	return len(p.Min)
}

// Transform scales every row with the fitted parameters.
// minmax: low + (v - min) * (high - low) / (max - min); a constant field maps to low.
// standard: (v - mean) / std; a constant field maps to 0.
func (p Params) Transform(values [][]float64) ([][]float64, error) {
	return p.apply(values, p.scaleValue)
}

// InverseTransform undoes Transform. Constant fields map back to their fitted value.
func (p Params) InverseTransform(values [][]float64) ([][]float64, error) {
	return p.apply(values, p.unscaleValue)
}

// TransformColumn scales a single-field series
func (p Params) TransformColumn(values []float64) ([]float64, error) {
	out, err := p.Transform(columnToRows(values))
	if err != nil {
		return nil, err
	}
	return rowsToColumn(out), nil
}

// InverseTransformColumn undoes TransformColumn
func (p Params) InverseTransformColumn(values []float64) ([]float64, error) {
	out, err := p.InverseTransform(columnToRows(values))
	if err != nil {
		return nil, err
	}
	return rowsToColumn(out), nil
}

// InverseValue maps one scaled value of field j back to original units
func (p Params) InverseValue(j int, v float64) (float64, error) {
	if !p.Fitted() {
		return 0, ErrNotFitted
	}
	if j < 0 || j >= p.Width() {
		return 0, fmt.Errorf("%w: field %d of %d", ErrShapeMismatch, j, p.Width())
	}
	return p.unscaleValue(j, v), nil
}

// Clone returns a deep copy
func (p Params) Clone() Params {
	out := p
	out.Min = cloneFloats(p.Min)
	out.Max = cloneFloats(p.Max)
	out.Mean = cloneFloats(p.Mean)
	out.Std = cloneFloats(p.Std)
	return out
}

func (p Params) apply(values [][]float64, fn func(j int, v float64) float64) ([][]float64, error) {
	if !p.Fitted() {
		return nil, ErrNotFitted
	}
	width := p.Width()
	out := make([][]float64, len(values))
	for i, row := range values {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", ErrShapeMismatch, i, len(row), width)
		}
		scaled := make([]float64, width)
		for j, v := range row {
			scaled[j] = fn(j, v)
		}
		out[i] = scaled
	}
	return out, nil
}

func (p Params) scaleValue(j int, v float64) float64 {
	if p.Kind == KindStandard {
		if p.Std[j] == 0 {
			return 0
		}
		return (v - p.Mean[j]) / p.Std[j]
	}
	span := p.Max[j] - p.Min[j]
	if span == 0 {
		return p.Low
	}
	return p.Low + (v-p.Min[j])*(p.High-p.Low)/span
}

func (p Params) unscaleValue(j int, v float64) float64 {
	if p.Kind == KindStandard {
		if p.Std[j] == 0 {
			return p.Mean[j]
		}
		return v*p.Std[j] + p.Mean[j]
	}
	span := p.Max[j] - p.Min[j]
	if span == 0 {
		return p.Min[j]
	}
	return p.Min[j] + (v-p.Low)*span/(p.High-p.Low)
}

func minMax(values [][]float64, width int) (mins, maxs []float64) {
	mins = make([]float64, width)
	maxs = make([]float64, width)
	copy(mins, values[0])
	copy(maxs, values[0])

	for _, row := range values[1:] {
		for j, v := range row {
			if v < mins[j] {
				mins[j] = v
			}
			if v > maxs[j] {
				maxs[j] = v
			}
		}
	}
	return mins, maxs
}

// meanStd computes per-field mean and population standard deviation
func meanStd(values [][]float64, width int) (means, stds []float64) {
	means = make([]float64, width)
	stds = make([]float64, width)
	n := float64(len(values))

	for _, row := range values {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}

	for _, row := range values {
		for j, v := range row {
			diff := v - means[j]
			stds[j] += diff * diff
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
	}
	return means, stds
}

func columnToRows(values []float64) [][]float64 {
	rows := make([][]float64, len(values))
	for i, v := range values {
		rows[i] = []float64{v}
	}
	return rows
}

func rowsToColumn(rows [][]float64) []float64 {
	col := make([]float64, len(rows))
	for i, row := range rows {
		col[i] = row[0]
	}
	return col
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
