// Package baseline scores the persistence forecast on prepared windows so
// model results have a reference point.
package baseline

import (
	"fmt"
	"math"
	"sort"

	"github.com/tunogya/seqprep/pkg/model"
	"github.com/tunogya/seqprep/pkg/scale"
)

// Metrics holds error statistics for one split, in original units
type Metrics struct {
	Split string  `json:"split"`
	Count int     `json:"count"` // windows evaluated
	MAE   float64 `json:"mae"`
	RMSE  float64 `json:"rmse"`
	P10   float64 `json:"p10"` // absolute error percentiles
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
}

// Evaluate predicts each target with the last input observation of the same
// field and compares in original units. targetCols maps target positions to
// series columns, as returned by pipeline.Prepare.
func Evaluate(w *model.Windows[[]float64], params scale.Params, targetCols []int, split string) (Metrics, error) {
	m := Metrics{Split: split, Count: w.Len()}
	if w.Len() == 0 {
		return m, nil
	}

	errs := make([]float64, 0, w.Len()*len(targetCols))
	for k := 0; k < w.Len(); k++ {
		last := w.Inputs[k][len(w.Inputs[k])-1]
		target := w.Targets[k]
		if len(target) != len(targetCols) {
			return Metrics{}, fmt.Errorf("window %d has %d targets, want %d", k, len(target), len(targetCols))
		}

		for i, col := range targetCols {
			actual, err := params.InverseValue(col, target[i])
			if err != nil {
				return Metrics{}, err
			}
			predicted, err := params.InverseValue(col, last[col])
			if err != nil {
				return Metrics{}, err
			}
			errs = append(errs, math.Abs(actual-predicted))
		}
	}

	sumSq := 0.0
	for _, e := range errs {
		sumSq += e * e
	}

	sorted := make([]float64, len(errs))
	copy(sorted, errs)
	sort.Float64s(sorted)

	m.MAE = mean(errs)
	m.RMSE = math.Sqrt(sumSq / float64(len(errs)))
	m.P10 = percentile(sorted, 10)
	m.P50 = percentile(sorted, 50)
	m.P90 = percentile(sorted, 90)
	return m, nil
}

// EvaluatePartition runs Evaluate on train, val and test in that order
func EvaluatePartition(p model.Partition[[]float64], params scale.Params, targetCols []int) ([]Metrics, error) {
	named := p.Named()
	out := make([]Metrics, 0, len(named))
	for _, part := range named {
		m, err := Evaluate(part.Windows, params, targetCols, part.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", part.Name, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// String returns a formatted string representation
func (m Metrics) String() string {
	return fmt.Sprintf(
		"Split: %-5s | Windows: %d | MAE: %.4f | RMSE: %.4f | P10: %.4f | P50: %.4f | P90: %.4f",
		m.Split, m.Count, m.MAE, m.RMSE, m.P10, m.P50, m.P90,
	)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile calculates the p-th percentile (p in 0-100) of sorted values
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	// Linear interpolation method
	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return sorted[lower]
	}

	fraction := rank - float64(lower)
	return sorted[lower] + fraction*(sorted[upper]-sorted[lower])
}
