// Package split partitions windowed datasets into train, validation and test
// subsets in chronological order. Windows are never shuffled: shuffling would
// put observations from the future into the training set.
package split

import (
	"errors"
	"fmt"
	"math"

	"github.com/tunogya/seqprep/pkg/model"
)

var ErrInvalidFraction = errors.New("invalid split fraction")

// Sizes are the partition sizes for m windows
type Sizes struct {
	Train int `json:"train"`
	Val   int `json:"val"`
	Test  int `json:"test"`
}

// Total returns Train + Val + Test
func (s Sizes) Total() int {
	return s.Train + s.Val + s.Test
}

// ComputeSizes rounds the test share of m first and the validation share of
// the remainder second; training takes whatever is left, so the sizes always
// add up to m. Rounding is half-to-even.
func ComputeSizes(m int, testFraction, valFraction float64) (Sizes, error) {
	if err := checkFraction("test", testFraction); err != nil {
		return Sizes{}, err
	}
	if err := checkFraction("val", valFraction); err != nil {
		return Sizes{}, err
	}

	nTest := int(math.RoundToEven(float64(m) * testFraction))
	remaining := m - nTest
	nVal := int(math.RoundToEven(float64(remaining) * valFraction))
	nTrain := remaining - nVal

	if nTrain <= 0 {
		return Sizes{}, fmt.Errorf("%w: no training windows (m=%d, test=%v, val=%v)", ErrInvalidFraction, m, testFraction, valFraction)
	}

	return Sizes{Train: nTrain, Val: nVal, Test: nTest}, nil
}

// Split partitions w into contiguous train, val and test views
func Split[T any](w *model.Windows[T], testFraction, valFraction float64) (model.Partition[T], error) {
	sizes, err := ComputeSizes(w.Len(), testFraction, valFraction)
	if err != nil {
		return model.Partition[T]{}, err
	}
	return Apply(w, sizes), nil
}

// Apply cuts w at precomputed sizes. sizes.Total() must equal w.Len().
func Apply[T any](w *model.Windows[T], sizes Sizes) model.Partition[T] {
	trainEnd := sizes.Train
	valEnd := trainEnd + sizes.Val
	return model.Partition[T]{
		Train: w.Slice(0, trainEnd),
		Val:   w.Slice(trainEnd, valEnd),
		Test:  w.Slice(valEnd, w.Len()),
	}
}

func checkFraction(name string, f float64) error {
	if math.IsNaN(f) || f < 0 || f >= 1 {
		return fmt.Errorf("%w: %s fraction %v outside [0, 1)", ErrInvalidFraction, name, f)
	}
	return nil
}
