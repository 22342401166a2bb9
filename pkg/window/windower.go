package window

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tunogya/seqprep/pkg/model"
)

var (
	ErrInvalidSeqLength = errors.New("sequence length must be at least 1")
	ErrInsufficientData = errors.New("series too short for sequence length")
)

// Check validates windowing preconditions for a series of length n
func Check(n, seqLength int) error {
	if seqLength < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidSeqLength, seqLength)
	}
	if n <= seqLength {
		return fmt.Errorf("%w: %d observations, sequence length %d", ErrInsufficientData, n, seqLength)
	}
	return nil
}

// Count returns the number of windows a series of length n yields
func Count(n, seqLength int) int {
	return n - seqLength
}

// Make builds every (series[i:i+seqLength], series[i+seqLength]) pair in
// ascending i. It yields exactly len(series)-seqLength windows.
func Make[T any](series []T, seqLength int) (*model.Windows[T], error) {
	if err := Check(len(series), seqLength); err != nil {
		return nil, err
	}

	w := alloc[T](Count(len(series), seqLength), seqLength)
	fill(w, series, 0, w.Len())
	return w, nil
}

// MakeParallel is Make with the window range sharded across workers.
// The result is identical to Make.
func MakeParallel[T any](ctx context.Context, series []T, seqLength, workers int) (*model.Windows[T], error) {
	if err := Check(len(series), seqLength); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := Count(len(series), seqLength)
	if workers <= 1 || m < 2*workers {
		return Make(series, seqLength)
	}

	w := alloc[T](m, seqLength)
	shard := (m + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for from := 0; from < m; from += shard {
		from, to := from, min(from+shard, m)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fill(w, series, from, to)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return w, nil
}

// SelectTargets projects vector targets onto the given columns. Inputs keep
// every field.
func SelectTargets(w *model.Windows[[]float64], cols []int) *model.Windows[[]float64] {
	targets := make([][]float64, len(w.Targets))
	for k, row := range w.Targets {
		t := make([]float64, len(cols))
		for i, c := range cols {
			t[i] = row[c]
		}
		targets[k] = t
	}
	return &model.Windows[[]float64]{
		SeqLength: w.SeqLength,
		Starts:    w.Starts,
		Inputs:    w.Inputs,
		Targets:   targets,
	}
}

func alloc[T any](m, seqLength int) *model.Windows[T] {
	return &model.Windows[T]{
		SeqLength: seqLength,
		Starts:    make([]int, m),
		Inputs:    make([][]T, m),
		Targets:   make([]T, m),
	}
}

// fill writes windows [from, to); shards touch disjoint indices
func fill[T any](w *model.Windows[T], series []T, from, to int) {
	l := w.SeqLength
	for i := from; i < to; i++ {
		in := make([]T, l)
		copy(in, series[i:i+l])
		w.Starts[i] = i
		w.Inputs[i] = in
		w.Targets[i] = series[i+l]
	}
}
